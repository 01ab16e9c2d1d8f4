package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
	"github.com/gin-gonic/gin"
)

func createShop(c *gin.Context) {
	var input models.NewShop
	if !bindJSON(c, &input) {
		return
	}
	shop, err := models.CreateShop(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shop)
}

func getShop(c *gin.Context) {
	shopId, ok := intParam(c, "id")
	if !ok {
		return
	}
	shop, err := models.GetShop(c.Request.Context(), shopId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shop)
}

func listShopStock(c *gin.Context) {
	shopId, ok := intParam(c, "id")
	if !ok {
		return
	}
	entries, err := workflow.ListShopStock(c.Request.Context(), shopId, optionalQuery(c, "item"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func registerManualStock(c *gin.Context) {
	shopId, ok := intParam(c, "id")
	if !ok {
		return
	}
	var input models.NewManualStock
	if !bindJSON(c, &input) {
		return
	}
	result, err := workflow.RegisterManualStock(c.Request.Context(), shopId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func addLiveStock(c *gin.Context) {
	shopId, ok := intParam(c, "id")
	if !ok {
		return
	}
	var input models.NewLiveStock
	if !bindJSON(c, &input) {
		return
	}
	pool, err := workflow.AddLiveStock(c.Request.Context(), shopId, &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pool)
}

func consume(c *gin.Context) {
	var input workflow.ConsumeInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := workflow.Consume(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func convertItem(c *gin.Context) {
	var input workflow.ConvertInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := workflow.ConvertItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func requestSpoilage(c *gin.Context) {
	var input workflow.SpoilageInput
	if !bindJSON(c, &input) {
		return
	}
	movement, err := workflow.RequestSpoilage(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

// reviewSpoilage serves both approve and reject; the review body is optional.
func reviewSpoilage(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := intParam(c, "id")
		if !ok {
			return
		}
		var review workflow.SpoilageReview
		if c.Request.ContentLength > 0 && !bindJSON(c, &review) {
			return
		}
		var movement *models.StockMovement
		var err error
		if approve {
			movement, err = workflow.ApproveSpoilage(c.Request.Context(), id, &review)
		} else {
			movement, err = workflow.RejectSpoilage(c.Request.Context(), id, &review)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, movement)
	}
}

func transfer(c *gin.Context) {
	var input workflow.TransferInput
	if !bindJSON(c, &input) {
		return
	}
	result, err := workflow.TransferBetweenShops(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func acceptTransfer(c *gin.Context) {
	result, err := workflow.AcceptTransfer(c.Request.Context(), c.Param("group"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func declineTransfer(c *gin.Context) {
	result, err := workflow.DeclineTransfer(c.Request.Context(), c.Param("group"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func returnStock(c *gin.Context) {
	var input workflow.ReturnInput
	if !bindJSON(c, &input) {
		return
	}
	movement, err := workflow.ReturnStock(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}

func listMovements(c *gin.Context) {
	var query struct {
		Type   models.MovementType   `form:"type"`
		Status models.MovementStatus `form:"status"`
		ShopId int                   `form:"shop_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, utils.ValidationError("invalid movement filter", map[string]string{"query": err.Error()}))
		return
	}
	movements, err := workflow.ListMovements(c.Request.Context(), query.Type, query.Status, query.ShopId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}

func getMovement(c *gin.Context) {
	id, ok := intParam(c, "id")
	if !ok {
		return
	}
	movement, err := workflow.GetMovement(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movement)
}
