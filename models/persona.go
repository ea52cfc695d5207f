// Package models contains domain entities and business models for the persona messaging system
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Persona is a creator-authored AI character configuration.
type Persona struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_personas_uuid" json:"uuid"`
	CreatorID uint      `gorm:"not null;index:idx_personas_creator_id" json:"creator_id"`
	Creator   *Creator  `gorm:"foreignKey:CreatorID;references:ID" json:"creator,omitempty"`

	Name        string `gorm:"size:120;not null" json:"name"`
	DisplayName string `gorm:"size:120" json:"display_name"`

	// VoicePrompt is the system prompt handed to the responder verbatim.
	VoicePrompt     string         `gorm:"type:text;not null" json:"voice_prompt"`
	DisclosureText  string         `gorm:"type:text" json:"disclosure_text"`
	AllowedTopics   pq.StringArray `gorm:"type:text[]" json:"allowed_topics"`
	ForbiddenTopics pq.StringArray `gorm:"type:text[]" json:"forbidden_topics"`

	IsActive *bool `gorm:"default:true;index:idx_personas_is_active" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Conversations []Conversation `gorm:"foreignKey:PersonaID" json:"-"`
}

func (Persona) TableName() string {
	return "personas"
}

// PersonaFilter represents filter criteria for persona queries
type PersonaFilter struct {
	ID        *uint
	UUID      *uuid.UUID
	CreatorID *uint
	Name      *string
	IsActive  *bool
}
