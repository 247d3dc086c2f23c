// File: internal/common/context_helpers.go
package common

import (
	"github.com/gin-gonic/gin"
)

// GetUserIDFromContext retrieves the user ID from the Gin context.
// Returns an empty string if the route was not guarded.
func GetUserIDFromContext(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetUserEmailFromContext retrieves the user email from the Gin context.
func GetUserEmailFromContext(c *gin.Context) string {
	return c.GetString(UserEmailKey)
}

// GetUserRoleFromContext retrieves the user role from the Gin context.
func GetUserRoleFromContext(c *gin.Context) Role {
	val, exists := c.Get(UserRoleKey)
	if !exists {
		return ""
	}
	role, ok := val.(Role)
	if !ok {
		return ""
	}
	return role
}

// GetRequestIDFromContext returns the id assigned by the request logger.
func GetRequestIDFromContext(c *gin.Context) string {
	return c.GetString(RequestIDContextKey)
}
