// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/utils"
	"gorm.io/gorm"
)

// ConversationRepositoryImpl implements ConversationRepository interface
type ConversationRepositoryImpl struct {
	*BaseRepository[models.Conversation, models.ConversationFilter]
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &ConversationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Conversation, models.ConversationFilter](db),
	}
}

// ByUUID retrieves a conversation by UUID
func (r *ConversationRepositoryImpl) ByUUID(ctx context.Context, uid string) (*models.Conversation, error) {
	db := r.getDB(ctx)

	var conversation models.Conversation
	err := db.Where("uuid = ?", uid).Last(&conversation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find conversation by UUID: %w", err)
	}

	return &conversation, nil
}

// GetOrCreateActive returns the single active conversation for a (fan, persona)
// pair, creating it lazily when none exists. The partial unique index on
// (fan_id, persona_id) WHERE is_active guards against concurrent double-create;
// on a conflict the existing row is re-read.
func (r *ConversationRepositoryImpl) GetOrCreateActive(ctx context.Context, fanID, personaID uint) (*models.Conversation, error) {
	db := r.getDB(ctx)

	var conversation models.Conversation
	err := db.Where("fan_id = ? AND persona_id = ? AND is_active = ?", fanID, personaID, true).
		Last(&conversation).Error
	if err == nil {
		return &conversation, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find active conversation: %w", err)
	}

	now := utils.UTCNow()
	conversation = models.Conversation{
		UUID:           uuid.New(),
		FanID:          fanID,
		PersonaID:      personaID,
		Sentiment:      models.SentimentNeutral,
		LastActivityAt: now,
		IsActive:       utils.ToPtr(true),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.Create(&conversation).Error; err != nil {
		// Lost a race with a concurrent first message for the same pair.
		var existing models.Conversation
		findErr := db.Where("fan_id = ? AND persona_id = ? AND is_active = ?", fanID, personaID, true).
			Last(&existing).Error
		if findErr != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return &existing, nil
	}

	return &conversation, nil
}

// UpdateSummaryAndSentiment writes the rolling summary, sentiment label, and
// last-activity timestamp. Last write wins between concurrent turns.
func (r *ConversationRepositoryImpl) UpdateSummaryAndSentiment(ctx context.Context, conversationID uint, summary, sentiment string, lastActivityAt time.Time) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"summary":          summary,
			"sentiment":        sentiment,
			"last_activity_at": lastActivityAt,
			"updated_at":       time.Now().UTC(),
		}).Error

	if err != nil {
		return fmt.Errorf("failed to update conversation summary and sentiment: %w", err)
	}

	return nil
}
