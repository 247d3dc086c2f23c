// Package session defines the contract with the external identity
// provider ("Session Store") and the pieces shared by its implementations.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Session is an authenticated session issued by the identity provider.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Email        string
	ExpiresAt    time.Time
	// Metadata is what was attached to the identity at sign-up, e.g. the
	// requested role.
	Metadata map[string]string
}

// ExpiresWithin reports whether s expires within d of now.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(s.ExpiresAt) <= d
}

// Expired reports whether the access token is past its expiry.
func (s *Session) Expired() bool {
	return s.ExpiresWithin(0)
}

// Clone returns a deep copy so callers cannot mutate a store's cached session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Metadata != nil {
		cp.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Identity is the account created by SignUp. It exists even when no
// session is issued because email confirmation is pending.
type Identity struct {
	ID             string
	Email          string
	EmailConfirmed bool
	Metadata       map[string]string
}

// EventType names a session change.
type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is delivered to OnSessionChange listeners. Session is nil for
// EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}

// Store is the identity provider as seen by the auth context.
type Store interface {
	// GetCurrentSession restores the session, refreshing it when expired.
	// It returns (nil, nil) when nobody is signed in.
	GetCurrentSession(ctx context.Context) (*Session, error)
	// Current returns the cached session without any I/O.
	Current() *Session
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	// SignUp returns a nil session when the identity must confirm its email first.
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Identity, *Session, error)
	// SignOut is a no-op when nobody is signed in.
	SignOut(ctx context.Context) error
	OnSessionChange(fn func(Event)) (unsubscribe func())
	// ResetPasswordForEmail does not reveal whether the address is registered.
	ResetPasswordForEmail(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, newPassword string) (*Session, error)
	Refresh(ctx context.Context) (*Session, error)
}

// Metadata keys attached at sign-up.
const (
	MetaRole     = "role"
	MetaUsername = "username"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password too weak")
	ErrUserDisabled       = errors.New("user disabled")
	ErrNoSession          = errors.New("no active session")
	ErrSessionExpired     = errors.New("session expired")
)

// StoreError carries the provider's own error code alongside the sentinel
// it maps to.
type StoreError struct {
	Code  string
	Kind  error
	Cause error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session store: %s: %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("session store: %s", e.Code)
}

func (e *StoreError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}
