// File: internal/common/context_keys.go
package common

const (
	// UserIDKey is the context key for storing the authenticated user's ID
	UserIDKey = "userID"
	// UserEmailKey is the context key for storing the authenticated user's email
	UserEmailKey = "userEmail"
	// UserRoleKey is the context key for storing the authenticated user's role
	UserRoleKey = "userRole"
	// CurrentUserKey holds the full user value resolved by the route guard.
	CurrentUserKey = "currentUser"
	// RequestIDContextKey is set by the request logger.
	RequestIDContextKey = "requestID"
	// LoggerContextKey holds the request scoped *zap.Logger.
	LoggerContextKey = "logger"
)
