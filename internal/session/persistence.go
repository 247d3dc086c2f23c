package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Persistence keeps the current session across process restarts.
type Persistence interface {
	// Load returns (nil, nil) when nothing is stored.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}

const currentSlot = "current"

// storedSession is the single row holding the signed-in session.
type storedSession struct {
	Slot         string            `gorm:"primaryKey;size:16"`
	AccessToken  string            `gorm:"not null"`
	RefreshToken string            `gorm:"not null"`
	UserID       string            `gorm:"size:128;not null"`
	Email        string            `gorm:"size:320"`
	ExpiresAt    time.Time         `gorm:"not null"`
	Metadata     map[string]string `gorm:"serializer:json"`
	UpdatedAt    time.Time
}

func (storedSession) TableName() string { return "auth_sessions" }

// GormPersistence stores the session in a local database.
type GormPersistence struct {
	db *gorm.DB
}

// NewGormPersistence migrates the session table and returns the persistence.
func NewGormPersistence(db *gorm.DB) (*GormPersistence, error) {
	if err := db.AutoMigrate(&storedSession{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session table: %w", err)
	}
	return &GormPersistence{db: db}, nil
}

func (p *GormPersistence) Load(ctx context.Context) (*Session, error) {
	var row storedSession
	err := p.db.WithContext(ctx).Where("slot = ?", currentSlot).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &Session{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		UserID:       row.UserID,
		Email:        row.Email,
		ExpiresAt:    row.ExpiresAt,
		Metadata:     row.Metadata,
	}, nil
}

func (p *GormPersistence) Save(ctx context.Context, s *Session) error {
	row := storedSession{
		Slot:         currentSlot,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		UserID:       s.UserID,
		Email:        s.Email,
		ExpiresAt:    s.ExpiresAt,
		Metadata:     s.Metadata,
	}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (p *GormPersistence) Clear(ctx context.Context) error {
	if err := p.db.WithContext(ctx).Where("slot = ?", currentSlot).Delete(&storedSession{}).Error; err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// NopPersistence keeps nothing.
type NopPersistence struct{}

func (NopPersistence) Load(context.Context) (*Session, error) { return nil, nil }
func (NopPersistence) Save(context.Context, *Session) error   { return nil }
func (NopPersistence) Clear(context.Context) error            { return nil }
