package dto

import "time"

// ModerationQueueItemDTO represents a flagged message awaiting review
type ModerationQueueItemDTO struct {
	UUID        string     `json:"uuid"`
	ContentText string     `json:"content_text"`
	FlagReason  string     `json:"flag_reason"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	PersonaUUID string     `json:"persona_uuid,omitempty"`
	FanUUID     string     `json:"fan_uuid,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt   string     `json:"created_at"`
}

// ListModerationQueueRequest represents the query for listing queue items
type ListModerationQueueRequest struct {
	Status      *string `json:"-" validate:"omitempty,oneof=pending approved blocked"`
	MinSeverity *string `json:"-"`
	Limit       int     `json:"-" validate:"omitempty,min=1,max=100"`
	Offset      int     `json:"-" validate:"omitempty,min=0"`
}

// ListModerationQueueResponse represents a page of moderation queue items
type ListModerationQueueResponse struct {
	Message string                   `json:"message"`
	Items   []ModerationQueueItemDTO `json:"items"`
	Limit   int                      `json:"limit"`
	Offset  int                      `json:"offset"`
}

// ResolveModerationItemRequest represents a reviewer decision on a pending item
type ResolveModerationItemRequest struct {
	ItemUUID   string `json:"-"`
	ReviewerID uint   `json:"-"`
	Status     string `json:"status" validate:"required,oneof=approved blocked" example:"approved"`
}

// ResolveModerationItemResponse represents the result of resolving a queue item
type ResolveModerationItemResponse struct {
	Message    string    `json:"message"`
	UUID       string    `json:"uuid"`
	Status     string    `json:"status"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// ModerationStatusCountsResponse represents per-status queue counts for a day
type ModerationStatusCountsResponse struct {
	Message string           `json:"message"`
	Day     string           `json:"day"`
	Counts  map[string]int64 `json:"counts"`
}
