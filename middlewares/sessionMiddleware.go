package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/utils"
	"github.com/gin-gonic/gin"
)

const (
	HeaderToken    = "token"
	HeaderUserName = "x-user-name"
)

// SessionMiddleware puts the acting user on the request context. A session token is resolved
// through redis; without one the x-user-name header is trusted as is.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userName := strings.TrimSpace(c.GetHeader(HeaderUserName))
		if token := c.GetHeader(HeaderToken); token != "" && config.GetRedisDB() != nil {
			var sessionUser string
			exists, err := config.GetRedisObject("Token:"+token, &sessionUser)
			if err != nil || !exists {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "unauthorized",
				}})
				return
			}
			userName = sessionUser
		}
		if userName != "" {
			c.Request = c.Request.WithContext(utils.SetUserNameInContext(c.Request.Context(), userName))
		}
		c.Next()
	}
}
