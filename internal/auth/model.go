// File: internal/auth/model.go
package auth

import "artify/internal/profile"

// SignInRequest defines the structure for sign-in requests.
type SignInRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUpHTTPRequest defines the structure for sign-up requests.
type SignUpHTTPRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	Role        string `json:"role" binding:"omitempty,oneof=buyer seller admin"`
	InviteToken string `json:"invite_token"`
}

// ResetPasswordRequest defines the structure for password reset requests.
type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// UpdatePasswordRequest defines the structure for password changes.
type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

// UpdateProfileRequest is a partial profile edit.
type UpdateProfileRequest = profile.Updates

// SignUpResponse is returned by the sign-up endpoint.
type SignUpResponse struct {
	UserID              string `json:"user_id"`
	Email               string `json:"email"`
	User                *User  `json:"user,omitempty"`
	ConfirmationPending bool   `json:"confirmation_pending"`
}

// ErrorPage describes a neutral auth-failure page with a retry path.
type ErrorPage struct {
	Reason    string `json:"reason"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RetryPath string `json:"retry_path"`
	SignUp    bool   `json:"offer_sign_up"`
}
