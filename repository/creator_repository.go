// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kitsune-chat/Kitsune/models"
	"gorm.io/gorm"
)

// CreatorRepositoryImpl implements CreatorRepository interface
type CreatorRepositoryImpl struct {
	*BaseRepository[models.Creator, models.CreatorFilter]
}

// NewCreatorRepository creates a new creator repository
func NewCreatorRepository(db *gorm.DB) CreatorRepository {
	return &CreatorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Creator, models.CreatorFilter](db),
	}
}

// ByUUID retrieves a creator by UUID
func (r *CreatorRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Creator, error) {
	db := r.getDB(ctx)

	var creator models.Creator
	err := db.Where("uuid = ?", uuid).Last(&creator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find creator by UUID: %w", err)
	}

	return &creator, nil
}

// ByEmail retrieves a creator by email address
func (r *CreatorRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.Creator, error) {
	db := r.getDB(ctx)

	var creator models.Creator
	err := db.Where("email = ?", email).Last(&creator).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find creator by email: %w", err)
	}

	return &creator, nil
}

// UpdateLastLogin records the most recent successful login time
func (r *CreatorRepositoryImpl) UpdateLastLogin(ctx context.Context, creatorID uint, at time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Creator{}).
		Where("id = ?", creatorID).
		Updates(map[string]any{
			"last_login_at": at,
			"updated_at":    time.Now().UTC(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to update creator last login: %w", err)
	}

	return nil
}
