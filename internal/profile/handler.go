// File: internal/profile/handler.go
package profile

import (
	"context"
	"errors"

	"artify/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// RoleChangedFunc is called after an administrator changes a user's role.
type RoleChangedFunc func(ctx context.Context, userID string)

// Handler struct holds dependencies for profile handlers.
type Handler struct {
	service       Service
	logger        *zap.Logger
	onRoleChanged RoleChangedFunc
}

// NewHandler creates a new profile handler. onRoleChanged may be nil.
func NewHandler(service Service, logger *zap.Logger, onRoleChanged RoleChangedFunc) *Handler {
	return &Handler{service: service, logger: logger, onRoleChanged: onRoleChanged}
}

// RegisterRoutes mounts the public profile lookup and the admin user routes.
// adminGuard must only admit administrators.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, adminGuard gin.HandlerFunc) {
	router.GET("/profiles/:username", h.getByUsername)

	admin := router.Group("/admin/users")
	admin.Use(adminGuard)
	{
		admin.GET("", h.listUsers)
		admin.PATCH("/:id/role", h.updateRole)
	}
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin seller buyer"`
}

func (h *Handler) getByUsername(c *gin.Context) {
	p, err := h.service.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile retrieved successfully.", ToPublicResponse(p))
}

func (h *Handler) listUsers(c *gin.Context) {
	// An unknown role is passed through so the service rejects it.
	role, _ := common.ParseRole(c.Query("role"))
	profiles, pagination, err := h.service.ListByRole(c.Request.Context(), role, common.GetPaginationParams(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Users retrieved successfully.", profiles, pagination)
}

func (h *Handler) updateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Role update: invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}

	id := c.Param("id")
	p, err := h.service.UpdateUserRole(c.Request.Context(), id, common.Role(req.Role))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	if h.onRoleChanged != nil {
		h.onRoleChanged(c.Request.Context(), id)
	}
	common.RespondOK(c, "User role updated successfully.", p)
}

// PublicResponse is what anyone may see of a profile.
type PublicResponse struct {
	Username  string      `json:"username"`
	FullName  *string     `json:"full_name,omitempty"`
	AvatarURL *string     `json:"avatar_url,omitempty"`
	Website   *string     `json:"website,omitempty"`
	Bio       *string     `json:"bio,omitempty"`
	Role      common.Role `json:"user_type"`
	IsArtist  bool        `json:"is_artist"`
}

// ToPublicResponse strips internal fields.
func ToPublicResponse(p *Profile) PublicResponse {
	return PublicResponse{
		Username:  p.Username,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
		Website:   p.Website,
		Bio:       p.Bio,
		Role:      p.Role,
		IsArtist:  p.IsArtist,
	}
}
