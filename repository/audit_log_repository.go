// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kitsune-chat/Kitsune/models"
	"gorm.io/gorm"
)

// AuditLogRepositoryImpl implements AuditLogRepository interface. Append-only:
// the implementation deliberately provides no update or delete path.
type AuditLogRepositoryImpl struct {
	*BaseRepository[models.AuditLog, models.AuditLogFilter]
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &AuditLogRepositoryImpl{
		BaseRepository: NewBaseRepository[models.AuditLog, models.AuditLogFilter](db),
	}
}

// ListByEntity retrieves audit logs concerning a specific entity with pagination
func (r *AuditLogRepositoryImpl) ListByEntity(ctx context.Context, entityType string, entityID uint, limit, offset int) ([]*models.AuditLog, error) {
	db := r.getDB(ctx)

	var logs []*models.AuditLog
	err := db.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by entity: %w", err)
	}

	return logs, nil
}

// ListByAction retrieves audit logs for a specific action with pagination
func (r *AuditLogRepositoryImpl) ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error) {
	db := r.getDB(ctx)

	var logs []*models.AuditLog
	err := db.Where("action = ?", action).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs by action: %w", err)
	}

	return logs, nil
}

// ListSafetyEventsBetween retrieves the safety-relevant entries within
// [start, end), most recent first, optionally scoped to a persona.
func (r *AuditLogRepositoryImpl) ListSafetyEventsBetween(ctx context.Context, personaID *uint, start, end time.Time, limit int) ([]*models.AuditLog, error) {
	db := r.getDB(ctx)

	safetyActions := []string{
		models.AuditActionModerationAction,
		models.AuditActionStopRequest,
		models.AuditActionEscalationTriggered,
		models.AuditActionConsentAffirmed,
	}

	query := db.Where("action IN ? AND created_at >= ? AND created_at < ?",
		safetyActions, start, end)
	if personaID != nil {
		query = query.Where("persona_id = ?", *personaID)
	}

	var logs []*models.AuditLog
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list safety events: %w", err)
	}

	return logs, nil
}

// CountByActionBetween counts entries for an action within [start, end),
// optionally scoped to a persona.
func (r *AuditLogRepositoryImpl) CountByActionBetween(ctx context.Context, personaID *uint, action string, start, end time.Time) (int64, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.AuditLog{}).
		Where("action = ? AND created_at >= ? AND created_at < ?", action, start, end)
	if personaID != nil {
		query = query.Where("persona_id = ?", *personaID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count audit logs by action: %w", err)
	}

	return count, nil
}

// CountVerdictsBetween groups pipeline verdict entries in [start, end) by the
// verdict recorded in their detail payload. Escalations carry their own audit
// action, so both actions contribute.
func (r *AuditLogRepositoryImpl) CountVerdictsBetween(ctx context.Context, personaID *uint, start, end time.Time) (map[string]int64, error) {
	db := r.getDB(ctx)

	type verdictCount struct {
		Verdict string
		Count   int64
	}

	verdictActions := []string{
		models.AuditActionModerationAction,
		models.AuditActionEscalationTriggered,
	}

	query := db.Model(&models.AuditLog{}).
		Select("detail->>'verdict' AS verdict, COUNT(*) AS count").
		Where("action IN ? AND created_at >= ? AND created_at < ?",
			verdictActions, start, end)
	if personaID != nil {
		query = query.Where("persona_id = ?", *personaID)
	}

	var rows []verdictCount
	if err := query.Group("detail->>'verdict'").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count audit verdicts: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Verdict] = row.Count
	}

	return counts, nil
}
