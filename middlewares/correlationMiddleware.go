package middlewares

import (
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderCorrelationId = "x-correlation-id"

// CorrelationMiddleware generates a correlation id when the caller sent none and echoes it back.
// Ledger events published for the request carry the same id.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(HeaderCorrelationId)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header(HeaderCorrelationId, cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}
