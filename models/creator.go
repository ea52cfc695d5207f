// Package models contains domain entities and business models for the persona messaging system
package models

import (
	"time"

	"github.com/google/uuid"
)

// Creator is a dashboard user who owns personas and reviews flagged content.
// Creators are provisioned out of band; there is no self-service signup.
type Creator struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_creators_uuid" json:"uuid"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:uk_creators_email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"` // Never serialize password hash
	DisplayName  string    `gorm:"size:120;not null" json:"display_name"`
	IsActive     *bool     `gorm:"default:true;index:idx_creators_is_active" json:"is_active"`

	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	// Relations
	Personas []Persona `gorm:"foreignKey:CreatorID" json:"-"`
}

func (Creator) TableName() string {
	return "creators"
}

// CreatorFilter represents filter criteria for creator queries
type CreatorFilter struct {
	ID       *uint
	UUID     *uuid.UUID
	Email    *string
	IsActive *bool
}
