// Package businessflow contains the business logic for the persona messaging system.
package businessflow

import (
	"time"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToModerationQueueItemDTO converts a moderation queue item model to its API representation
func ToModerationQueueItemDTO(item models.ModerationQueueItem, personaUUID, fanUUID string) dto.ModerationQueueItemDTO {
	return dto.ModerationQueueItemDTO{
		UUID:        item.UUID.String(),
		ContentText: item.ContentText,
		FlagReason:  item.FlagReason,
		Severity:    item.Severity,
		Status:      item.Status,
		PersonaUUID: personaUUID,
		FanUUID:     fanUUID,
		ReviewedAt:  item.ReviewedAt,
		CreatedAt:   item.CreatedAt.Format(time.RFC3339),
	}
}

// ToSafetyEventDTO converts an audit log entry to its report representation
func ToSafetyEventDTO(entry models.AuditLog) dto.SafetyEventDTO {
	out := dto.SafetyEventDTO{
		Action:    entry.Action,
		Success:   utils.IsTrue(entry.Success),
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	}
	if len(entry.Detail) > 0 {
		out.Detail = entry.Detail
	}
	return out
}
