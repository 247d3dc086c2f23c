// File: internal/invitation/repository.go
package invitation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artify/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for invitation data operations.
type Repository interface {
	Create(ctx context.Context, inv *Invitation) error
	FindRedeemable(ctx context.Context, email, tokenHash string) (*Invitation, error)
	MarkUsed(ctx context.Context, id uuid.UUID, usedBy string, at time.Time) error
	List(ctx context.Context, pq common.PaginationQuery) ([]Invitation, int64, error)
	// DeleteUnused removes an invitation unless it was already redeemed.
	DeleteUnused(ctx context.Context, id uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountExpired(ctx context.Context, now time.Time) (int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM invitation repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates or updates the invitations table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Invitation{})
}

func (r *gormRepository) Create(ctx context.Context, inv *Invitation) error {
	if err := r.db.WithContext(ctx).Create(inv).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return common.ErrConflict.WithDetails("Invitation token collision; try again.")
		}
		return fmt.Errorf("failed to create invitation: %w", err)
	}
	return nil
}

func (r *gormRepository) FindRedeemable(ctx context.Context, email, tokenHash string) (*Invitation, error) {
	var inv Invitation
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND email = ? AND is_used = ?", tokenHash, email, false).
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Invitation not found.")
		}
		return nil, err
	}
	return &inv, nil
}

func (r *gormRepository) MarkUsed(ctx context.Context, id uuid.UUID, usedBy string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&Invitation{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{"is_used": true, "used_at": at, "used_by": usedBy, "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("failed to mark invitation used: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrConflict.WithDetails("Invitation was already used.")
	}
	return nil
}

func (r *gormRepository) List(ctx context.Context, pq common.PaginationQuery) ([]Invitation, int64, error) {
	var (
		invitations []Invitation
		total       int64
	)
	if err := r.db.WithContext(ctx).Model(&Invitation{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invitations: %w", err)
	}
	err := r.db.WithContext(ctx).Order("created_at DESC").Offset(pq.Offset()).Limit(pq.Limit()).Find(&invitations).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invitations, total, nil
}

func (r *gormRepository) DeleteUnused(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND is_used = ?", id, false).Delete(&Invitation{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete invitation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("No unused invitation with this ID.")
	}
	return nil
}

func (r *gormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ? AND is_used = ?", now, false).Delete(&Invitation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge invitations: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *gormRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Invitation{}).Where("expires_at <= ? AND is_used = ?", now, false).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count expired invitations: %w", err)
	}
	return n, nil
}
