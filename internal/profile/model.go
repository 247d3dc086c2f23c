// File: internal/profile/model.go
package profile

import (
	"strings"
	"time"

	"artify/internal/common"

	"github.com/gosimple/slug"
)

// Profile is the application-owned record keyed by the identity id.
type Profile struct {
	ID         string      `gorm:"primaryKey;size:128" json:"id"`
	Username   string      `gorm:"size:64;not null;index" json:"username"`
	FullName   *string     `gorm:"size:255" json:"full_name,omitempty"`
	AvatarURL  *string     `gorm:"type:text" json:"avatar_url,omitempty"`
	Website    *string     `gorm:"type:text" json:"website,omitempty"`
	Bio        *string     `gorm:"type:text" json:"bio,omitempty"`
	Role       common.Role `gorm:"column:user_type;size:20;not null;default:buyer;index" json:"user_type"`
	IsArtist   bool        `gorm:"not null;default:false" json:"is_artist"`
	IsVerified bool        `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Profile) TableName() string {
	return "profiles"
}

// Updates is a partial profile change. Nil fields are left untouched.
type Updates struct {
	Username  *string `json:"username,omitempty" binding:"omitempty,min=3,max=64"`
	FullName  *string `json:"full_name,omitempty" binding:"omitempty,max=255"`
	AvatarURL *string `json:"avatar_url,omitempty" binding:"omitempty,url"`
	Website   *string `json:"website,omitempty" binding:"omitempty,url"`
	Bio       *string `json:"bio,omitempty" binding:"omitempty,max=2000"`
}

// Columns returns the column assignments for the non-nil fields.
func (u Updates) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Username != nil {
		cols["username"] = DeriveUsername(*u.Username)
	}
	if u.FullName != nil {
		cols["full_name"] = strings.TrimSpace(*u.FullName)
	}
	if u.AvatarURL != nil {
		cols["avatar_url"] = *u.AvatarURL
	}
	if u.Website != nil {
		cols["website"] = *u.Website
	}
	if u.Bio != nil {
		cols["bio"] = *u.Bio
	}
	return cols
}

// DeriveUsername turns an email or free-form name into a username. For an
// email only the local part is used.
func DeriveUsername(s string) string {
	local := s
	if at := strings.IndexByte(s, '@'); at >= 0 {
		local = s[:at]
	}
	u := slug.Make(local)
	if u == "" {
		return "user"
	}
	if len(u) > 64 {
		u = strings.TrimRight(u[:64], "-")
	}
	return u
}

// NewForIdentity builds the profile created at sign-up. Unknown roles
// fall back to buyer.
func NewForIdentity(id, email string, role common.Role) *Profile {
	role = common.RoleOrDefault(role)
	return &Profile{
		ID:       id,
		Username: DeriveUsername(email),
		Role:     role,
		IsArtist: role == common.RoleSeller,
	}
}

func strPtr(s string) *string { return &s }

// DemoProfiles pairs with session.DemoAccounts.
func DemoProfiles() []Profile {
	return []Profile{
		{
			ID: "admin-user-id", Username: "admin", FullName: strPtr("Admin User"),
			AvatarURL: strPtr("https://ui-avatars.com/api/?name=Admin+User&background=random"),
			Bio:       strPtr("Platform administrator"),
			Role:      common.RoleAdmin, IsVerified: true,
		},
		{
			ID: "seller-user-id", Username: "artistuser", FullName: strPtr("Artist User"),
			AvatarURL: strPtr("https://ui-avatars.com/api/?name=Artist+User&background=random"),
			Website:   strPtr("https://artistportfolio.com"),
			Bio:       strPtr("Digital artist specializing in fantasy illustrations"),
			Role:      common.RoleSeller, IsArtist: true, IsVerified: true,
		},
		{
			ID: "buyer-user-id", Username: "collector", FullName: strPtr("Art Collector"),
			AvatarURL: strPtr("https://ui-avatars.com/api/?name=Art+Collector&background=random"),
			Bio:       strPtr("Passionate about collecting digital art"),
			Role:      common.RoleBuyer,
		},
	}
}
