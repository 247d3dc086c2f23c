// File: internal/auth/handler.go
package auth

import (
	"errors"
	"mime/multipart"
	"net/http"
	"net/url"

	"artify/internal/common"
	"artify/internal/config"
	"artify/internal/filestorage"
	"artify/internal/profile"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// AvatarStore keeps uploaded profile pictures.
type AvatarStore interface {
	Save(fh *multipart.FileHeader) (string, error)
	Delete(url string) error
}

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	provider *Provider
	profiles profile.Service
	avatars  AvatarStore
	cfg      *config.Config
	logger   *zap.Logger
}

// NewHandler creates a new auth handler. Without avatars the upload route
// is not mounted.
func NewHandler(provider *Provider, profiles profile.Service, avatars AvatarStore, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		provider: provider,
		profiles: profiles,
		avatars:  avatars,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterRoutes sets up the API routes. requireUser must admit only
// signed-in users.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, requireUser gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/sign-in", h.signIn)
		authGroup.POST("/sign-up", h.signUp)
		authGroup.POST("/sign-out", h.signOut)
		authGroup.POST("/reset-password", h.resetPassword)
		authGroup.GET("/me", h.me)
		authGroup.POST("/update-password", requireUser, h.updatePassword)
	}

	profileGroup := router.Group("/profile")
	profileGroup.Use(requireUser)
	{
		profileGroup.GET("", h.getProfile)
		profileGroup.PATCH("", h.updateProfile)
		profileGroup.POST("/become-artist", h.becomeArtist)
		if h.avatars != nil {
			profileGroup.POST("/avatar", h.uploadAvatar)
		}
	}
}

// RegisterPages mounts the browser-facing callback and error pages.
func (h *Handler) RegisterPages(router gin.IRoutes) {
	router.GET("/auth/callback", h.callback)
	router.GET(h.cfg.AuthErrorPath, h.errorPage)
}

func (h *Handler) bind(c *gin.Context, req interface{}, op string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn(op+": Invalid request body", zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails(err.Error()))
		return false
	}
	return true
}

func (h *Handler) signIn(c *gin.Context) {
	var req SignInRequest
	if !h.bind(c, &req, "Sign-in") {
		return
	}
	user, err := h.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondWithError(c, ToAPIError(err))
		return
	}
	common.RespondOK(c, "Signed in successfully.", user)
}

func (h *Handler) signUp(c *gin.Context) {
	var req SignUpHTTPRequest
	if !h.bind(c, &req, "Sign-up") {
		return
	}
	result, err := h.provider.SignUp(c.Request.Context(), SignUpRequest{
		Email:       req.Email,
		Password:    req.Password,
		Role:        common.Role(req.Role),
		InviteToken: req.InviteToken,
	})
	if err != nil {
		apiErr := ToAPIError(err)
		if result != nil && result.Identity != nil {
			// The identity exists; say so, so the client does not retry the sign-up.
			apiErr = apiErr.WithDetails(gin.H{"user_id": result.Identity.ID})
		}
		common.RespondWithError(c, apiErr)
		return
	}

	resp := SignUpResponse{
		UserID:              result.Identity.ID,
		Email:               result.Identity.Email,
		User:                result.User,
		ConfirmationPending: result.ConfirmationPending,
	}
	msg := "Account created successfully."
	if result.ConfirmationPending {
		msg = "Account created. Check your email to confirm your address."
	}
	common.RespondCreated(c, msg, resp)
}

func (h *Handler) signOut(c *gin.Context) {
	if err := h.provider.SignOut(c.Request.Context()); err != nil {
		common.RespondWithError(c, ToAPIError(err))
		return
	}
	common.RespondOK(c, "Signed out successfully.", nil)
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !h.bind(c, &req, "Reset password") {
		return
	}
	if err := h.provider.ResetPassword(c.Request.Context(), req.Email); err != nil {
		common.RespondWithError(c, ToAPIError(err))
		return
	}
	common.RespondOK(c, "If an account exists for this email, a reset link has been sent.", nil)
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req UpdatePasswordRequest
	if !h.bind(c, &req, "Update password") {
		return
	}
	if err := h.provider.UpdatePassword(c.Request.Context(), req.Password); err != nil {
		common.RespondWithError(c, ToAPIError(err))
		return
	}
	common.RespondOK(c, "Password updated successfully.", nil)
}

func (h *Handler) me(c *gin.Context) {
	common.RespondOK(c, "", h.provider.Snapshot())
}

func (h *Handler) getProfile(c *gin.Context) {
	p, err := h.profiles.GetProfile(c.Request.Context(), common.GetUserIDFromContext(c))
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile retrieved successfully.", p)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !h.bind(c, &req, "Update profile") {
		return
	}
	user, err := h.provider.UpdateProfile(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, ToAPIError(err))
		return
	}
	common.RespondOK(c, "Profile updated successfully.", user)
}

func (h *Handler) becomeArtist(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.profiles.BecomeArtist(ctx, common.GetUserIDFromContext(c)); err != nil {
		common.RespondWithError(c, err)
		return
	}
	user, err := h.provider.Refresh(ctx)
	if err != nil {
		common.RespondWithError(c, ToAPIError(err))
		return
	}
	common.RespondOK(c, "You are now a seller.", user)
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	fh, err := c.FormFile("avatar")
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("An image file is required in the 'avatar' field."))
		return
	}

	link, err := h.avatars.Save(fh)
	switch {
	case errors.Is(err, filestorage.ErrUnsupportedType):
		common.RespondWithError(c, common.NewAPIError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Avatars must be JPEG, PNG, GIF or WebP images."))
		return
	case errors.Is(err, filestorage.ErrTooLarge):
		common.RespondWithError(c, common.NewAPIError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "The image is too large."))
		return
	case err != nil:
		common.RespondWithError(c, err)
		return
	}

	var previous string
	if u := h.provider.Snapshot().User; u != nil {
		previous = u.AvatarURL
	}
	user, err := h.provider.UpdateProfile(c.Request.Context(), profile.Updates{AvatarURL: &link})
	if err != nil {
		if delErr := h.avatars.Delete(link); delErr != nil {
			h.logger.Warn("Failed to remove orphaned avatar", zap.String("url", link), zap.Error(delErr))
		}
		common.RespondWithError(c, ToAPIError(err))
		return
	}
	if previous != "" && previous != link {
		if err := h.avatars.Delete(previous); err != nil {
			h.logger.Warn("Failed to remove replaced avatar", zap.String("url", previous), zap.Error(err))
		}
	}
	common.RespondOK(c, "Avatar updated successfully.", user)
}

// callback receives the identity provider's redirect after an email link
// is followed. Provider error codes are reduced to a neutral reason.
func (h *Handler) callback(c *gin.Context) {
	errParam := c.Query("error")
	if errParam == "" {
		c.Redirect(http.StatusFound, h.cfg.FallbackPath)
		return
	}
	reason := callbackReason(errParam, c.Query("error_code"))
	h.logger.Warn("Auth callback reported an error",
		zap.String("error", errParam),
		zap.String("errorCode", c.Query("error_code")),
		zap.String("description", c.Query("error_description")),
		zap.String("reason", reason))

	q := url.Values{}
	q.Set("reason", reason)
	c.Redirect(http.StatusFound, h.cfg.AuthErrorPath+"?"+q.Encode())
}

func callbackReason(errParam, code string) string {
	switch {
	case code == "otp_expired":
		return "expired"
	case errParam == "access_denied":
		return "denied"
	case errParam == "invalid_request":
		return "invalid"
	}
	return "unknown"
}

func (h *Handler) errorPage(c *gin.Context) {
	page := ErrorPage{
		Reason:    c.DefaultQuery("reason", "unknown"),
		Title:     "Authentication Error",
		Message:   "Please try signing in again or contact support if the problem persists.",
		RetryPath: h.cfg.SignInPath,
	}
	switch page.Reason {
	case "expired":
		page.Title = "Access Denied"
		page.Message = "The email verification link has expired. Please request a new verification link."
		page.SignUp = true
	case "denied":
		page.Title = "Access Denied"
	case "invalid":
		page.Title = "Invalid Request"
	default:
		page.Reason = "unknown"
	}
	c.JSON(http.StatusOK, page)
}
