package middleware

import (
	"github.com/gin-gonic/gin"

	"psychologist-records/utils"
)

// ErrorHandler forwards any errors the handlers attached to the context to
// Sentry once the request has finished.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			for _, ginErr := range c.Errors {
				utils.CaptureError(ginErr.Err, map[string]interface{}{
					"endpoint": c.Request.URL.Path,
					"method":   c.Request.Method,
					"status":   c.Writer.Status(),
				})
			}
		}
	}
}
