// Package models contains domain entities and business models for the persona messaging system
package models

import (
	"time"

	"github.com/google/uuid"
)

// Moderation severity constants (ordered from lowest to highest)
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// severityRank orders severities for comparisons; unknown severities rank lowest
var severityRank = map[string]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Moderation queue status constants. Pending is the only non-terminal status;
// approved and blocked are reachable only through explicit human review.
const (
	ModerationStatusPending  = "pending"
	ModerationStatusApproved = "approved"
	ModerationStatusBlocked  = "blocked"
)

// Flag reason categories reported by the pattern classifier
const (
	FlagReasonMinorSafety        = "minor_safety"
	FlagReasonSelfHarmThreat     = "self_harm_threat"
	FlagReasonDoxxingStalking    = "doxxing_stalking"
	FlagReasonProfanity          = "profanity"
	FlagReasonMeetupSolicitation = "meetup_solicitation"
	FlagReasonAgeAdjacent        = "age_adjacent"
	FlagReasonViolence           = "violence"
	FlagReasonIllegalSubstance   = "illegal_substance"
	FlagReasonAgePlay            = "age_play"
	FlagReasonNonConsent         = "non_consent_language"
	FlagReasonFreeContentDemand  = "free_content_demand"
	FlagReasonOffPlatformPayment = "off_platform_payment"
)

// ModerationQueueItem is a flagged message awaiting human disposition. The
// flagged text is copied, not referenced, so the record survives alteration or
// removal of the source message.
type ModerationQueueItem struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_moderation_items_uuid" json:"uuid"`

	// Weak references by id; the referenced rows may have changed or gone away.
	PersonaID *uint `gorm:"index:idx_moderation_items_persona_id" json:"persona_id,omitempty"`
	FanID     *uint `gorm:"index:idx_moderation_items_fan_id" json:"fan_id,omitempty"`
	MessageID *uint `json:"message_id,omitempty"`

	ContentText string `gorm:"type:text;not null" json:"content_text"`
	FlagReason  string `gorm:"size:40;not null;index:idx_moderation_items_flag_reason" json:"flag_reason"`
	Severity    string `gorm:"size:20;not null;index:idx_moderation_items_severity" json:"severity"`
	Status      string `gorm:"size:20;not null;default:'pending';index:idx_moderation_items_status" json:"status"`

	ReviewerID *uint      `json:"reviewer_id,omitempty"`
	Reviewer   *Creator   `gorm:"foreignKey:ReviewerID;references:ID" json:"reviewer,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_moderation_items_created_at" json:"created_at"`
}

func (ModerationQueueItem) TableName() string {
	return "moderation_queue_items"
}

// ModerationQueueItemFilter represents filter criteria for queue queries
type ModerationQueueItemFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	PersonaID     *uint
	FanID         *uint
	Status        *string
	Severity      *string
	FlagReason    *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// IsResolved reports whether the item has reached a terminal status.
func (m *ModerationQueueItem) IsResolved() bool {
	return m.Status == ModerationStatusApproved || m.Status == ModerationStatusBlocked
}

// IsResolutionStatus reports whether the given status is a valid review outcome.
func IsResolutionStatus(status string) bool {
	return status == ModerationStatusApproved || status == ModerationStatusBlocked
}

// SeverityAtLeast compares the item's severity against a minimum severity.
func (m *ModerationQueueItem) SeverityAtLeast(severity string) bool {
	return severityRank[m.Severity] >= severityRank[severity]
}

// IsValidSeverity reports whether the given string names a known severity.
func IsValidSeverity(severity string) bool {
	_, ok := severityRank[severity]
	return ok
}
