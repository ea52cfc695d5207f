// Package dto contains Data Transfer Objects for API request and response structures
package dto

// SubmitMessageRequest represents an inbound fan message addressed to a persona
type SubmitMessageRequest struct {
	PersonaUUID    string `json:"persona_uuid" validate:"required,uuid4" example:"550e8400-e29b-41d4-a716-446655440000"`
	FanUUID        string `json:"fan_uuid" validate:"required,uuid4" example:"650e8400-e29b-41d4-a716-446655440000"`
	Content        string `json:"content" validate:"required,min=1,max=4000" example:"hey, how was your day?"`
	PlatformHandle string `json:"platform_handle,omitempty" validate:"omitempty,max=255"`
}

// SubmitMessageResponse represents the pipeline outcome for a submitted message
type SubmitMessageResponse struct {
	Message          string  `json:"message"`
	State            string  `json:"state" example:"responded"`
	Reply            *string `json:"reply,omitempty"`
	ConversationUUID string  `json:"conversation_uuid,omitempty"`
	FlagReason       string  `json:"flag_reason,omitempty"`
	Severity         string  `json:"severity,omitempty"`
}
