// Package models contains domain entities and business models for the persona messaging system
package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Conversation is one persona-fan pairing's ongoing thread. At most one active
// conversation exists per (fan, persona) pair; enforced by a partial unique
// index and the GetOrCreate repository operation.
type Conversation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_conversations_uuid" json:"uuid"`
	FanID     uint      `gorm:"not null;index:idx_conversations_fan_id;uniqueIndex:uk_conversations_fan_persona,where:is_active = true" json:"fan_id"`
	PersonaID uint      `gorm:"not null;index:idx_conversations_persona_id;uniqueIndex:uk_conversations_fan_persona,where:is_active = true" json:"persona_id"`
	Fan       *Fan      `gorm:"foreignKey:FanID;references:ID" json:"fan,omitempty"`
	Persona   *Persona  `gorm:"foreignKey:PersonaID;references:ID" json:"persona,omitempty"`

	Sentiment      string    `gorm:"size:20;not null;default:'neutral'" json:"sentiment"`
	Summary        string    `gorm:"type:text" json:"summary"`
	LastActivityAt time.Time `gorm:"index:idx_conversations_last_activity_at" json:"last_activity_at"`
	IsActive       *bool     `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Messages []Message `gorm:"foreignKey:ConversationID" json:"-"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// ConversationFilter represents filter criteria for conversation queries
type ConversationFilter struct {
	ID         *uint
	UUID       *uuid.UUID
	FanID      *uint
	PersonaID  *uint
	Sentiment  *string
	IsActive   *bool
	ActiveWith *time.Time
}

// IsValidSentiment reports whether the given string names a known sentiment label.
func IsValidSentiment(s string) bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}
