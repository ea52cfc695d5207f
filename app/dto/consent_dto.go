package dto

import "time"

// RecordConsentRequest represents a fan affirming age and romantic-roleplay consent
type RecordConsentRequest struct {
	FanUUID         string `json:"-"`
	AgeAffirmed     *bool  `json:"age_affirmed" validate:"required" example:"true"`
	RomanticConsent *bool  `json:"romantic_consent" validate:"required" example:"true"`
}

// RecordConsentResponse represents the result of recording consent
type RecordConsentResponse struct {
	Message           string     `json:"message"`
	AgeAffirmed       bool       `json:"age_affirmed"`
	RomanticConsent   bool       `json:"romantic_consent"`
	ConsentAffirmedAt *time.Time `json:"consent_affirmed_at,omitempty"`
}
