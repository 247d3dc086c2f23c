// File: internal/invitation/handler.go
package invitation

import (
	"errors"

	"artify/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler serves the admin invitation routes.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new invitation handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts /admin/invitations behind adminGuard.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, adminGuard gin.HandlerFunc) {
	group := router.Group("/admin/invitations")
	group.Use(adminGuard)
	{
		group.POST("", h.create)
		group.GET("", h.list)
		group.DELETE("/:id", h.revoke)
	}
}

func (h *Handler) create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("CreateInvitation: Invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return
	}
	created, err := h.service.Create(c.Request.Context(), common.GetUserIDFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Invitation created successfully.", created)
}

func (h *Handler) list(c *gin.Context) {
	invitations, pagination, err := h.service.List(c.Request.Context(), common.GetPaginationParams(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondPaginated(c, "Invitations retrieved successfully.", invitations, pagination)
}

func (h *Handler) revoke(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid invitation ID format."))
		return
	}
	if err := h.service.Revoke(c.Request.Context(), id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondNoContent(c)
}
