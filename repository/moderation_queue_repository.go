// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/utils"
	"gorm.io/gorm"
)

// ModerationQueueRepositoryImpl implements ModerationQueueRepository interface
type ModerationQueueRepositoryImpl struct {
	*BaseRepository[models.ModerationQueueItem, models.ModerationQueueItemFilter]
}

// NewModerationQueueRepository creates a new moderation queue repository
func NewModerationQueueRepository(db *gorm.DB) ModerationQueueRepository {
	return &ModerationQueueRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ModerationQueueItem, models.ModerationQueueItemFilter](db),
	}
}

// ByUUID retrieves a queue item by UUID
func (r *ModerationQueueRepositoryImpl) ByUUID(ctx context.Context, uid string) (*models.ModerationQueueItem, error) {
	db := r.getDB(ctx)

	var item models.ModerationQueueItem
	err := db.Where("uuid = ?", uid).Last(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find moderation item by UUID: %w", err)
	}

	return &item, nil
}

// List retrieves queue items in reverse-chronological order with pagination,
// optionally filtered by status.
func (r *ModerationQueueRepositoryImpl) List(ctx context.Context, status *string, limit, offset int) ([]*models.ModerationQueueItem, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.ModerationQueueItem{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var items []*models.ModerationQueueItem
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list moderation items: %w", err)
	}

	return items, nil
}

// Resolve conditionally transitions a pending item to approved or blocked. The
// WHERE clause on the current status makes the transition a compare-and-set:
// a second resolution attempt affects zero rows and writes nothing.
func (r *ModerationQueueRepositoryImpl) Resolve(ctx context.Context, itemID uint, status string, reviewerID uint, reviewedAt time.Time) (int64, error) {
	db := r.getDB(ctx)

	res := db.Model(&models.ModerationQueueItem{}).
		Where("id = ? AND status = ?", itemID, models.ModerationStatusPending).
		Updates(map[string]any{
			"status":      status,
			"reviewer_id": reviewerID,
			"reviewed_at": reviewedAt,
		})

	if res.Error != nil {
		return 0, fmt.Errorf("failed to resolve moderation item: %w", res.Error)
	}

	return res.RowsAffected, nil
}

// CountByStatusOn returns per-status counts for items created on the UTC day
// containing the given time. Feeds the compliance dashboard widgets.
func (r *ModerationQueueRepositoryImpl) CountByStatusOn(ctx context.Context, day time.Time) (map[string]int64, error) {
	db := r.getDB(ctx)

	start := utils.StartOfDayUTC(day)
	end := start.Add(24 * time.Hour)

	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := db.Model(&models.ModerationQueueItem{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("status").
		Find(&rows).Error

	if err != nil {
		return nil, fmt.Errorf("failed to count moderation items by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

// ScoreCounts returns the queue-scoped populations for the compliance score.
func (r *ModerationQueueRepositoryImpl) ScoreCounts(ctx context.Context) (total, blocked, critical int64, err error) {
	db := r.getDB(ctx)

	if err = db.Model(&models.ModerationQueueItem{}).Count(&total).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count moderation items: %w", err)
	}

	if err = db.Model(&models.ModerationQueueItem{}).
		Where("status = ?", models.ModerationStatusBlocked).
		Count(&blocked).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count blocked moderation items: %w", err)
	}

	if err = db.Model(&models.ModerationQueueItem{}).
		Where("severity = ?", models.SeverityCritical).
		Count(&critical).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count critical moderation items: %w", err)
	}

	return total, blocked, critical, nil
}
