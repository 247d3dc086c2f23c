package auth

import (
	"errors"
	"fmt"
	"net/http"

	"artify/internal/common"
	"artify/internal/session"
)

// Kind classifies the errors returned by Provider operations.
type Kind string

const (
	KindInvalidCredentials    Kind = "INVALID_CREDENTIALS"
	KindEmailAlreadyInUse     Kind = "EMAIL_ALREADY_IN_USE"
	KindWeakPassword          Kind = "WEAK_PASSWORD"
	KindProfileCreationFailed Kind = "PROFILE_CREATION_FAILED"
	KindProfileFetchFailed    Kind = "PROFILE_FETCH_FAILED"
	KindUnauthenticated       Kind = "UNAUTHENTICATED"
	KindInvitationInvalid     Kind = "INVITATION_INVALID"
	KindRoleNotAllowed        Kind = "ROLE_NOT_ALLOWED"
	KindUnknown               Kind = "UNKNOWN"
)

// Error is returned by every Provider operation that fails.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrInvalidCredentials) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Message: "Invalid email or password"}
	ErrEmailAlreadyInUse     = &Error{Kind: KindEmailAlreadyInUse, Message: "An account with this email already exists"}
	ErrWeakPassword          = &Error{Kind: KindWeakPassword, Message: "Password does not meet the strength requirements"}
	ErrProfileCreationFailed = &Error{Kind: KindProfileCreationFailed, Message: "Account created but the profile could not be saved"}
	ErrProfileFetchFailed    = &Error{Kind: KindProfileFetchFailed, Message: "Profile could not be loaded"}
	ErrUnauthenticated       = &Error{Kind: KindUnauthenticated, Message: "You must be signed in"}
	ErrInvitationInvalid     = &Error{Kind: KindInvitationInvalid, Message: "Invitation is invalid or has expired"}
	ErrRoleNotAllowed        = &Error{Kind: KindRoleNotAllowed, Message: "This role cannot be chosen at sign-up"}
)

func newError(sentinel *Error, err error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: err}
}

func unknownError(message string, err error) *Error {
	return &Error{Kind: KindUnknown, Message: message, Err: err}
}

// classifySignIn never distinguishes an unknown email from a wrong password.
func classifySignIn(err error) *Error {
	switch {
	case errors.Is(err, session.ErrInvalidCredentials), errors.Is(err, session.ErrUserDisabled):
		return newError(ErrInvalidCredentials, err)
	}
	return unknownError("Sign-in failed", err)
}

func classifySignUp(err error) *Error {
	switch {
	case errors.Is(err, session.ErrEmailExists):
		return newError(ErrEmailAlreadyInUse, err)
	case errors.Is(err, session.ErrWeakPassword):
		return newError(ErrWeakPassword, err)
	}
	return unknownError("Sign-up failed", err)
}

var kindStatus = map[Kind]*common.APIError{
	KindInvalidCredentials:    common.ErrUnauthorized,
	KindUnauthenticated:       common.ErrUnauthorized,
	KindEmailAlreadyInUse:     common.ErrConflict,
	KindWeakPassword:          common.ErrUnprocessableEntity,
	KindRoleNotAllowed:        common.ErrForbidden,
	KindInvitationInvalid:     common.ErrForbidden,
	KindProfileCreationFailed: common.ErrInternalServer,
	KindProfileFetchFailed:    common.ErrInternalServer,
	KindUnknown:               common.ErrInternalServer,
}

// ToAPIError maps err onto the HTTP error envelope. Messages are the
// user-facing ones; wrapped causes are not exposed.
func ToAPIError(err error) *common.APIError {
	var ae *Error
	if !errors.As(err, &ae) {
		if apiErr, ok := common.IsAPIError(err); ok {
			return apiErr
		}
		return common.ErrInternalServer
	}
	base, ok := kindStatus[ae.Kind]
	if !ok {
		base = common.ErrInternalServer
	}
	out := common.NewAPIError(base.StatusCode, string(ae.Kind), ae.Message)
	if ae.Kind == KindUnknown {
		out.Message = http.StatusText(base.StatusCode)
	}
	return out
}
