package middleware

import (
	"net/http"

	"artify/internal/auth"
	"artify/internal/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StateReader exposes the current auth state. *auth.Provider satisfies it.
type StateReader interface {
	Snapshot() auth.Snapshot
}

// GuardOptions configures RouteGuard.
type GuardOptions struct {
	SignInPath   string
	FallbackPath string
	// Roles lists the roles admitted; empty admits any signed-in user.
	Roles []common.Role
	// API answers with JSON errors instead of redirects and the loading page.
	API bool
}

const loadingPage = `<!doctype html><html><head><meta charset="utf-8"><title>Loading</title></head>` +
	`<body><p>Loading&hellip;</p></body></html>`

// RouteGuard gates the routes behind it on the auth state. The state is
// read again on every request, so a sign-out that happened elsewhere takes
// effect on the next request.
func RouteGuard(state StateReader, opts GuardOptions, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("guard")
	return func(c *gin.Context) {
		snap := state.Snapshot()

		switch {
		case snap.IsLoading:
			c.Header("Retry-After", "1")
			c.Header("Cache-Control", "no-store")
			if opts.API {
				common.RespondWithError(c, common.ErrServiceUnavailable.WithDetails("Authentication state is loading."))
				return
			}
			c.Data(http.StatusServiceUnavailable, "text/html; charset=utf-8", []byte(loadingPage))
			c.Abort()

		case snap.User == nil:
			logger.Debug("Anonymous request to guarded route", zap.String("path", c.Request.URL.Path))
			if opts.API {
				common.RespondWithError(c, auth.ToAPIError(auth.ErrUnauthenticated))
				return
			}
			c.Redirect(http.StatusFound, opts.SignInPath)
			c.Abort()

		case !auth.RequireRole(snap.User, opts.Roles...):
			logger.Info("Role not admitted to guarded route",
				zap.String("path", c.Request.URL.Path),
				zap.String("uid", snap.User.ID),
				zap.String("role", snap.User.Role.String()))
			if opts.API {
				common.RespondWithError(c, common.ErrForbidden)
				return
			}
			c.Redirect(http.StatusFound, opts.FallbackPath)
			c.Abort()

		default:
			c.Set(common.UserIDKey, snap.User.ID)
			c.Set(common.UserEmailKey, snap.User.Email)
			c.Set(common.UserRoleKey, snap.User.Role)
			c.Set(common.CurrentUserKey, snap.User)
			c.Next()
		}
	}
}

// CurrentUser returns the user stored by RouteGuard, or nil.
func CurrentUser(c *gin.Context) *auth.User {
	v, ok := c.Get(common.CurrentUserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*auth.User)
	return u
}
