// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kitsune-chat/Kitsune/models"
	"gorm.io/gorm"
)

// MessageRepositoryImpl implements MessageRepository interface
type MessageRepositoryImpl struct {
	*BaseRepository[models.Message, models.MessageFilter]
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &MessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Message, models.MessageFilter](db),
	}
}

// ByUUID retrieves a message by UUID
func (r *MessageRepositoryImpl) ByUUID(ctx context.Context, uid string) (*models.Message, error) {
	db := r.getDB(ctx)

	var message models.Message
	err := db.Where("uuid = ?", uid).Last(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find message by UUID: %w", err)
	}

	return &message, nil
}

// RecentByConversation returns up to limit most recent messages in
// chronological order, oldest first, ready for prompt assembly.
func (r *MessageRepositoryImpl) RecentByConversation(ctx context.Context, conversationID uint, limit int) ([]*models.Message, error) {
	db := r.getDB(ctx)

	var messages []*models.Message
	err := db.Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// UpdateModerationStatus changes the moderation status of a message. This is
// the only column that may change after creation.
func (r *MessageRepositoryImpl) UpdateModerationStatus(ctx context.Context, messageID uint, status string) error {
	db := r.getDB(ctx)

	err := db.Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("moderation_status", status).Error

	if err != nil {
		return fmt.Errorf("failed to update message moderation status: %w", err)
	}

	return nil
}
