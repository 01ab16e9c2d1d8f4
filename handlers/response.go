package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type errorBody struct {
	Error *utils.AppError `json:"error"`
}

// respondError writes err as {"error": {code, message, details}} with the status its code maps to.
func respondError(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	} else {
		config.GetLogger().WithFields(logrus.Fields{
			"field":  c.FullPath(),
			"code":   appErr.Code,
			"status": status,
		}).Warn(appErr.Message)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: appErr})
}

// bindJSON decodes the request body; a malformed body is a validation error.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, utils.ValidationError("request body is not valid JSON for this operation",
			map[string]string{"body": err.Error()}))
		return false
	}
	return true
}

func intParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, utils.FieldError(name, "must be a positive integer"))
		return 0, false
	}
	annotate(c, name, id)
	return id, true
}

func optionalQuery(c *gin.Context, name string) *string {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return nil
	}
	return &value
}

func annotate(c *gin.Context, key string, id int) {
	trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.Int(key, id))
}
