package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgermail/core/internal/services"
)

// RequestLogger records every API request through the log service
func RequestLogger(logService *services.LogService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		userID, _ := GetUserIDFromContext(c)
		logService.LogAPIRequest(
			userID,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
			c.ClientIP(),
			c.GetHeader("User-Agent"),
		)
	}
}
