package dto

import "time"

// LoginRequest represents the request payload for creator login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"creator@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// CreatorInfo represents creator information returned in login responses
type CreatorInfo struct {
	ID          uint   `json:"id" example:"123"`
	UUID        string `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email       string `json:"email" example:"creator@example.com"`
	DisplayName string `json:"display_name" example:"Luna"`
	IsActive    *bool  `json:"is_active" example:"true"`
	CreatedAt   string `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Message      string      `json:"message"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type" example:"Bearer"`
	ExpiresIn    int         `json:"expires_in" example:"3600"`
	Creator      CreatorInfo `json:"creator"`
}

// RefreshTokenRequest represents the request to refresh an access token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Common error codes for auth operations
const (
	ErrorCreatorNotFound   = "CREATOR_NOT_FOUND"
	ErrorIncorrectPassword = "INCORRECT_PASSWORD"
	ErrorAccountInactive   = "ACCOUNT_INACTIVE"
	ErrorTokenInvalid      = "TOKEN_INVALID"
	ErrorTokenExpired      = "TOKEN_EXPIRED"
)

// ToCreatorInfo builds CreatorInfo fields from raw values
func ToCreatorInfo(id uint, uuid, email, displayName string, isActive *bool, createdAt time.Time) CreatorInfo {
	return CreatorInfo{
		ID:          id,
		UUID:        uuid,
		Email:       email,
		DisplayName: displayName,
		IsActive:    isActive,
		CreatedAt:   createdAt.Format(time.RFC3339),
	}
}
