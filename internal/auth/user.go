// File: internal/auth/user.go
package auth

import (
	"time"

	"artify/internal/common"
	"artify/internal/profile"
	"artify/internal/session"
)

// SessionFields are the parts of a session a User is built from.
type SessionFields struct {
	ID       string
	Email    string
	Metadata map[string]string
}

// FieldsOf extracts SessionFields from s.
func FieldsOf(s *session.Session) SessionFields {
	return SessionFields{ID: s.UserID, Email: s.Email, Metadata: s.Metadata}
}

// User merges the identity's session fields with its profile. A User is
// never mutated after construction; a change produces a new value.
type User struct {
	ID         string      `json:"id"`
	Email      string      `json:"email"`
	Username   string      `json:"username"`
	FullName   string      `json:"full_name,omitempty"`
	AvatarURL  string      `json:"avatar_url,omitempty"`
	Website    string      `json:"website,omitempty"`
	Bio        string      `json:"bio,omitempty"`
	Role       common.Role `json:"user_type"`
	IsArtist   bool        `json:"is_artist"`
	IsVerified bool        `json:"is_verified"`
	CreatedAt  time.Time   `json:"created_at,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at,omitempty"`
}

// NewUser builds a User. With a nil profile the role is buyer, both flags
// are false and the username is the email's local part.
func NewUser(s SessionFields, p *profile.Profile) *User {
	u := &User{
		ID:       s.ID,
		Email:    s.Email,
		Username: profile.DeriveUsername(s.Email),
		Role:     common.DefaultRole,
	}
	if p == nil {
		return u
	}
	if p.Username != "" {
		u.Username = p.Username
	}
	u.FullName = deref(p.FullName)
	u.AvatarURL = deref(p.AvatarURL)
	u.Website = deref(p.Website)
	u.Bio = deref(p.Bio)
	u.Role = common.RoleOrDefault(p.Role)
	u.IsArtist = p.IsArtist
	u.IsVerified = p.IsVerified
	u.CreatedAt = p.CreatedAt
	u.UpdatedAt = p.UpdatedAt
	return u
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (u *User) IsAdmin() bool  { return u != nil && u.Role == common.RoleAdmin }
func (u *User) IsSeller() bool { return u != nil && u.Role == common.RoleSeller }
func (u *User) IsBuyer() bool  { return u != nil && u.Role == common.RoleBuyer }

// RequireRole reports whether u is authenticated and, when roles are
// given, holds one of them.
func RequireRole(u *User, roles ...common.Role) bool {
	if u == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}
