// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kitsune-chat/Kitsune/models"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// FanRepositoryImpl implements FanRepository interface
type FanRepositoryImpl struct {
	*BaseRepository[models.Fan, models.FanFilter]
}

// NewFanRepository creates a new fan repository
func NewFanRepository(db *gorm.DB) FanRepository {
	return &FanRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Fan, models.FanFilter](db),
	}
}

// ByUUID retrieves a fan by UUID
func (r *FanRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Fan, error) {
	db := r.getDB(ctx)

	var fan models.Fan
	err := db.Where("uuid = ?", uuid).Last(&fan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find fan by UUID: %w", err)
	}

	return &fan, nil
}

// ByPlatformHandle retrieves a fan by external platform handle
func (r *FanRepositoryImpl) ByPlatformHandle(ctx context.Context, handle string) (*models.Fan, error) {
	db := r.getDB(ctx)

	var fan models.Fan
	err := db.Where("platform_handle = ?", handle).Last(&fan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find fan by platform handle: %w", err)
	}

	return &fan, nil
}

// ListBySpendTier retrieves fans in a given spend tier with pagination
func (r *FanRepositoryImpl) ListBySpendTier(ctx context.Context, tier string, limit, offset int) ([]*models.Fan, error) {
	db := r.getDB(ctx)

	var fans []*models.Fan
	err := db.Where("spend_tier = ?", tier).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&fans).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list fans by spend tier: %w", err)
	}

	return fans, nil
}

// UpdateConsent records an age and romantic-content affirmation as a single
// UPDATE so the consent record is never half-written.
func (r *FanRepositoryImpl) UpdateConsent(ctx context.Context, fanID uint, ageAffirmed, romanticConsent bool, affirmedAt time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Fan{}).
		Where("id = ?", fanID).
		Updates(map[string]any{
			"age_affirmed":        ageAffirmed,
			"romantic_consent":    romanticConsent,
			"consent_affirmed_at": affirmedAt,
			"updated_at":          time.Now().UTC(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to update fan consent: %w", err)
	}

	return nil
}

// ApplyStopRequest overwrites boundaries and preferences for a full opt-out.
// The consent record and all other columns are left untouched.
func (r *FanRepositoryImpl) ApplyStopRequest(ctx context.Context, fanID uint, boundaries []string, preferences json.RawMessage) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Fan{}).
		Where("id = ?", fanID).
		Updates(map[string]any{
			"boundaries":  pq.StringArray(boundaries),
			"preferences": preferences,
			"updated_at":  time.Now().UTC(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to apply stop request: %w", err)
	}

	return nil
}
