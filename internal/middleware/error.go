// File: internal/middleware/error.go
package middleware

import (
	"net/http"

	"artify/internal/auth"
	"artify/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler turns errors attached with c.Error into the JSON error
// envelope. Auth errors keep their kind as the error code.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() && len(c.Errors) == 0 {
			return
		}

		if ginErr := c.Errors.Last(); ginErr != nil {
			if c.Writer.Written() {
				return
			}
			if apiErr, ok := common.IsAPIError(ginErr.Err); ok {
				c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
				return
			}
			apiErr := auth.ToAPIError(ginErr.Err)
			if apiErr.StatusCode >= http.StatusInternalServerError {
				logger.Error("Unhandled application error",
					zap.Error(ginErr.Err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", common.GetRequestIDFromContext(c)),
				)
				if gin.Mode() == gin.DebugMode {
					apiErr = apiErr.WithDetails(ginErr.Err.Error())
				}
			}
			c.AbortWithStatusJSON(apiErr.StatusCode, apiErr)
			return
		}

		switch c.Writer.Status() {
		case http.StatusNotFound:
			notFound := common.ErrNotFound.WithDetails("The requested endpoint does not exist.")
			c.AbortWithStatusJSON(notFound.StatusCode, notFound)
		case http.StatusMethodNotAllowed:
			notAllowed := common.NewAPIError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "The method is not allowed for the requested URL.")
			c.AbortWithStatusJSON(notAllowed.StatusCode, notAllowed)
		}
	}
}
