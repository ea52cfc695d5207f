// Package models contains domain entities and business models for the persona messaging system
package models

import (
	"encoding/json"
	"time"
)

// AuditLog is an append-only fact about a safety-relevant action. Rows are never
// updated or deleted; the repository exposes only append and read operations.
// This table is the ground truth for compliance reporting.
type AuditLog struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Action string `gorm:"size:40;not null;index:idx_audit_action" json:"action"`

	// The entity the fact concerns, referenced weakly by id.
	EntityType string `gorm:"size:40;not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   uint   `gorm:"not null;index:idx_audit_entity,priority:2" json:"entity_id"`

	// Optional actor attribution.
	ActorType *string `gorm:"size:20" json:"actor_type,omitempty"`
	ActorID   *uint   `json:"actor_id,omitempty"`

	// Persona/fan association for time-bounded compliance reports.
	PersonaID *uint `gorm:"index:idx_audit_persona_id" json:"persona_id,omitempty"`
	FanID     *uint `gorm:"index:idx_audit_fan_id" json:"fan_id,omitempty"`

	Detail json.RawMessage `gorm:"type:jsonb" json:"detail,omitempty"`

	// Request provenance.
	IPAddress *string `gorm:"type:inet" json:"ip_address,omitempty"`
	UserAgent *string `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID *string `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`

	Success   *bool     `gorm:"default:true;index:idx_audit_success" json:"success"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants. Every action tag carries a known minimal detail
// subset; AuditActionModerationAction always carries reason and severity.
const (
	AuditActionAIConversation      = "ai_conversation"
	AuditActionPaymentEvent        = "payment_event"
	AuditActionContentAccess       = "content_access"
	AuditActionPersonaUpdated      = "persona_updated"
	AuditActionModerationAction    = "moderation_action"
	AuditActionFanInteraction      = "fan_interaction"
	AuditActionStopRequest         = "stop_request"
	AuditActionConsentAffirmed     = "consent_affirmed"
	AuditActionEscalationTriggered = "escalation_triggered"
	AuditActionConsentPromptIssued = "consent_prompt_issued"
	AuditActionCreatorLoginSuccess = "creator_login_success"
	AuditActionCreatorLoginFailed  = "creator_login_failed"
)

// Actor type constants
const (
	ActorTypeCreator = "creator"
	ActorTypeFan     = "fan"
	ActorTypeSystem  = "system"
)

// Audit entity type constants
const (
	EntityTypeFan            = "fan"
	EntityTypePersona        = "persona"
	EntityTypeConversation   = "conversation"
	EntityTypeMessage        = "message"
	EntityTypeModerationItem = "moderation_queue_item"
	EntityTypeCreator        = "creator"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	Action        *string
	EntityType    *string
	EntityID      *uint
	PersonaID     *uint
	FanID         *uint
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

// IsSafetyEvent reports whether the entry belongs to the safety-relevant subset
// surfaced as key events in compliance reports.
func (a *AuditLog) IsSafetyEvent() bool {
	safetyActions := map[string]bool{
		AuditActionModerationAction:    true,
		AuditActionStopRequest:         true,
		AuditActionEscalationTriggered: true,
		AuditActionConsentAffirmed:     true,
	}
	return safetyActions[a.Action]
}
