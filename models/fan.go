// Package models contains domain entities and business models for the persona messaging system
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Spend tier constants (ordered from lowest to highest)
const (
	SpendTierFree    = "free"
	SpendTierRegular = "regular"
	SpendTierPremium = "premium"
	SpendTierVIP     = "vip"
)

// spendTierRank orders spend tiers for comparisons; unknown tiers rank lowest
var spendTierRank = map[string]int{
	SpendTierFree:    0,
	SpendTierRegular: 1,
	SpendTierPremium: 2,
	SpendTierVIP:     3,
}

// BoundaryStopAll is the sentinel boundary written on a stop request. It replaces
// all prior boundaries because a stop request is a full opt-out.
const BoundaryStopAll = "stop_all_messages"

type Fan struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_fans_uuid" json:"uuid"`
	PlatformHandle string         `gorm:"size:255;not null;uniqueIndex:uk_fans_platform_handle" json:"platform_handle"`
	SpendTier      string         `gorm:"size:20;not null;default:'free';index:idx_fans_spend_tier" json:"spend_tier"`
	Boundaries     pq.StringArray `gorm:"type:text[]" json:"boundaries"`

	// Consent record. Romantic content requires both flags true and an
	// affirmation timestamp.
	AgeAffirmed       *bool      `gorm:"default:false" json:"age_affirmed"`
	RomanticConsent   *bool      `gorm:"default:false" json:"romantic_consent"`
	ConsentAffirmedAt *time.Time `json:"consent_affirmed_at,omitempty"`

	Preferences json.RawMessage `gorm:"type:jsonb" json:"preferences,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_fans_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Conversations []Conversation `gorm:"foreignKey:FanID" json:"-"`
	AuditLogs     []AuditLog     `gorm:"foreignKey:FanID" json:"-"`
}

func (Fan) TableName() string {
	return "fans"
}

// FanFilter represents filter criteria for fan queries
type FanFilter struct {
	ID             *uint
	UUID           *uuid.UUID
	PlatformHandle *string
	SpendTier      *string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time
}

// HasFullConsent reports whether the fan may receive romantic or flirtatious
// content. Partial affirmation never satisfies the gate.
func (f *Fan) HasFullConsent() bool {
	return f.AgeAffirmed != nil && *f.AgeAffirmed &&
		f.RomanticConsent != nil && *f.RomanticConsent &&
		f.ConsentAffirmedAt != nil
}

// HasOptedOut reports whether the fan has issued a stop request.
func (f *Fan) HasOptedOut() bool {
	for _, b := range f.Boundaries {
		if b == BoundaryStopAll {
			return true
		}
	}
	return false
}

// SpendTierAtLeast compares the fan's spend tier against a minimum tier.
func (f *Fan) SpendTierAtLeast(tier string) bool {
	return spendTierRank[f.SpendTier] >= spendTierRank[tier]
}
