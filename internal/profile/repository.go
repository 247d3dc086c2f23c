// File: internal/profile/repository.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"artify/internal/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for profile data operations.
type Repository interface {
	// Upsert inserts p, or on an existing id refreshes its role fields.
	Upsert(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByUsername(ctx context.Context, username string) (*Profile, error)
	Update(ctx context.Context, id string, upd Updates) (*Profile, error)
	SetRole(ctx context.Context, id string, role common.Role, isArtist bool) (*Profile, error)
	ListByRole(ctx context.Context, role common.Role, pq common.PaginationQuery) ([]Profile, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM profile repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// AutoMigrate creates or updates the profiles table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Profile{})
}

func (r *gormRepository) Upsert(ctx context.Context, p *Profile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_type", "is_artist", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		if isDuplicate(err) {
			return common.ErrConflict.WithDetails("Profile conflicts with an existing record.")
		}
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *gormRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Profile not found with this ID.")
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetByUsername(ctx context.Context, username string) (*Profile, error) {
	var p Profile
	err := r.db.WithContext(ctx).Where("username = ?", strings.ToLower(strings.TrimSpace(username))).
		Order("created_at").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Profile not found with this username.")
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) Update(ctx context.Context, id string, upd Updates) (*Profile, error) {
	cols := upd.Columns()
	if len(cols) == 0 {
		return r.GetByID(ctx, id)
	}
	cols["updated_at"] = time.Now()
	if err := r.apply(ctx, id, cols); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *gormRepository) SetRole(ctx context.Context, id string, role common.Role, isArtist bool) (*Profile, error) {
	if !role.Valid() {
		return nil, common.ErrBadRequest.WithDetails(fmt.Sprintf("Unknown role %q.", role))
	}
	cols := map[string]interface{}{
		"user_type":  role,
		"is_artist":  isArtist,
		"updated_at": time.Now(),
	}
	if err := r.apply(ctx, id, cols); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *gormRepository) apply(ctx context.Context, id string, cols map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&Profile{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return common.ErrConflict.WithDetails("Update failed due to a conflict.")
		}
		return fmt.Errorf("failed to update profile: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Profile not found with this ID.")
	}
	return nil
}

func (r *gormRepository) ListByRole(ctx context.Context, role common.Role, pq common.PaginationQuery) ([]Profile, int64, error) {
	var (
		profiles []Profile
		total    int64
	)
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&Profile{})
		if role != "" {
			q = q.Where("user_type = ?", role)
		}
		return q
	}
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	err := scope().Order("created_at DESC").Order("id").Offset(pq.Offset()).Limit(pq.Limit()).Find(&profiles).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, total, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
