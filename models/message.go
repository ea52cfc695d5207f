// Package models contains domain entities and business models for the persona messaging system
package models

import (
	"time"

	"github.com/google/uuid"
)

// Message sender constants
const (
	MessageSenderAI  = "ai"
	MessageSenderFan = "fan"
)

// Message moderation status constants
const (
	MessageModerationApproved = "approved"
	MessageModerationFlagged  = "flagged"
	MessageModerationRemoved  = "removed"
)

// Message is one turn in a conversation. Content is immutable once sent; only
// the moderation status may change after creation, via retroactive review.
type Message struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_messages_uuid" json:"uuid"`
	ConversationID uint          `gorm:"not null;index:idx_messages_conversation_id" json:"conversation_id"`
	Conversation   *Conversation `gorm:"foreignKey:ConversationID;references:ID" json:"conversation,omitempty"`

	Sender           string `gorm:"size:10;not null;index:idx_messages_sender" json:"sender"`
	Content          string `gorm:"type:text;not null" json:"content"`
	ModerationStatus string `gorm:"size:20;not null;default:'approved'" json:"moderation_status"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	SentAt      *time.Time `json:"sent_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_messages_created_at" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

// MessageFilter represents filter criteria for message queries
type MessageFilter struct {
	ID               *uint
	UUID             *uuid.UUID
	ConversationID   *uint
	Sender           *string
	ModerationStatus *string
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}

func (m *Message) IsFromFan() bool {
	return m.Sender == MessageSenderFan
}
