package handlers

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"bitbucket.org/mmdatafocus/shopledger_backend/workflow"
	"github.com/gin-gonic/gin"
)

func recordSale(c *gin.Context) {
	var input models.NewSale
	if !bindJSON(c, &input) {
		return
	}
	result, err := workflow.RecordSale(c.Request.Context(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func createAccount(c *gin.Context) {
	var input models.NewAccount
	if !bindJSON(c, &input) {
		return
	}
	account, err := models.CreateAccount(c.Request.Context(), config.GetDB(), &input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func listAccounts(c *gin.Context) {
	accounts, err := models.ListAccounts(c.Request.Context(), config.GetDB())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// journalSource reads source_type and source_id from the query string.
func journalSource(c *gin.Context) (models.SourceType, int, bool) {
	sourceType := models.SourceType(c.Query("source_type"))
	switch sourceType {
	case models.SourceTypeBatch, models.SourceTypeMovement, models.SourceTypeTransfer, models.SourceTypeSale:
	default:
		respondError(c, utils.FieldError("source_type", "must be one of batch movement transfer sale"))
		return "", 0, false
	}
	sourceId, err := strconv.Atoi(c.Query("source_id"))
	if err != nil || sourceId <= 0 {
		respondError(c, utils.FieldError("source_id", "must be a positive integer"))
		return "", 0, false
	}
	return sourceType, sourceId, true
}

func journalBalance(c *gin.Context) {
	sourceType, sourceId, ok := journalSource(c)
	if !ok {
		return
	}
	result, err := workflow.JournalBalance(c.Request.Context(), sourceType, sourceId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func reverseJournal(c *gin.Context) {
	sourceType, sourceId, ok := journalSource(c)
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 && !bindJSON(c, &body) {
		return
	}
	reversals, err := workflow.ReverseJournal(c.Request.Context(), sourceType, sourceId, body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reversals)
}
