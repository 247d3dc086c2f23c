// File: internal/invitation/model.go
package invitation

import (
	"time"

	"artify/internal/common"
)

// Invitation grants one email address the right to sign up with a role.
// Only the hash of the token is stored.
type Invitation struct {
	common.BaseModel
	Email     string      `gorm:"size:255;not null;index" json:"email"`
	Role      common.Role `gorm:"size:20;not null;default:buyer" json:"role"`
	TokenHash string      `gorm:"size:64;not null;uniqueIndex" json:"-"`
	CreatedBy string      `gorm:"size:128;not null" json:"created_by"`
	ExpiresAt time.Time   `gorm:"not null;index" json:"expires_at"`
	IsUsed    bool        `gorm:"not null;default:false" json:"is_used"`
	UsedAt    *time.Time  `json:"used_at,omitempty"`
	UsedBy    *string     `gorm:"size:128" json:"used_by,omitempty"`
}

// TableName specifies the table name for the Invitation model.
func (Invitation) TableName() string {
	return "invitations"
}

// Expired reports whether the invitation can no longer be redeemed at now.
func (i *Invitation) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// CreateRequest is the admin input for a new invitation.
type CreateRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Role       string `json:"role" binding:"omitempty,oneof=buyer seller admin"`
	ExpiryDays int    `json:"expiry_days" binding:"omitempty,gte=1,lte=90"`
}

// Created is returned once, at creation; the raw token is not kept.
type Created struct {
	Invitation *Invitation `json:"invitation"`
	Token      string      `json:"token"`
	InviteLink string      `json:"invite_link"`
}
