package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
	"github.com/gin-gonic/gin"
)

func createBatch(c *gin.Context) {
	var input models.NewBatch
	if !bindJSON(c, &input) {
		return
	}
	batch, err := workflow.CreateBatch(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func listBatches(c *gin.Context) {
	batches, err := workflow.ListBatches(c.Request.Context(), optionalQuery(c, "item"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batches)
}

func getBatch(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	batch, err := workflow.GetBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func updateBatch(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	var input models.EditBatch
	if !bindJSON(c, &input) {
		return
	}
	batch, err := workflow.UpdateBatch(c.Request.Context(), id, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func deleteBatch(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	batch, err := workflow.DeleteBatch(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func batchAvailability(c *gin.Context) {
	item := optionalQuery(c, "item")
	if item == nil {
		respondError(c, utils.FieldError("item", "is required"))
		return
	}
	availability, err := workflow.BatchAvailability(c.Request.Context(), *item)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, availability)
}

func distribute(c *gin.Context) {
	var input workflow.DistributeInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := workflow.Distribute(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func distributeFanOut(c *gin.Context) {
	var input workflow.DistributeFanOutInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := workflow.DistributeFanOut(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}
