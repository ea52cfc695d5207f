package dto

import "time"

// ComplianceScoreResponse represents the moderation-queue compliance score
type ComplianceScoreResponse struct {
	Message  string  `json:"message"`
	Score    float64 `json:"score" example:"94.5"`
	Total    int64   `json:"total"`
	Blocked  int64   `json:"blocked"`
	Critical int64   `json:"critical"`
}

// ComplianceReportRequest represents the query for a compliance report window
type ComplianceReportRequest struct {
	PersonaUUID *string    `json:"-" validate:"omitempty,uuid4"`
	StartDate   *time.Time `json:"-"`
	EndDate     *time.Time `json:"-"`
	Format      string     `json:"-" validate:"omitempty,oneof=json xlsx"`
}

// SafetyEventDTO represents one safety-relevant audit entry in a report
type SafetyEventDTO struct {
	Action    string `json:"action"`
	Success   bool   `json:"success"`
	Detail    any    `json:"detail,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ComplianceReportResponse represents an audit-scoped compliance report
type ComplianceReportResponse struct {
	Message        string           `json:"message"`
	StartDate      time.Time        `json:"start_date"`
	EndDate        time.Time        `json:"end_date"`
	Score          float64          `json:"score"`
	TotalEvents    int64            `json:"total_events"`
	VerdictCounts  map[string]int64 `json:"verdict_counts"`
	Escalations    int64            `json:"escalations"`
	StopRequests   int64            `json:"stop_requests"`
	ConsentPrompts int64            `json:"consent_prompts"`
	KeyEvents      []SafetyEventDTO `json:"key_events"`
}
