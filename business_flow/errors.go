// Package businessflow contains the core business logic for message safety and moderation workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Fan-related errors
	ErrFanNotFound           = errors.New("fan not found")
	ErrFanOptedOut           = errors.New("fan has opted out of messaging")
	ErrConsentNotAffirmative = errors.New("both age and romantic consent must be affirmed")

	// Persona-related errors
	ErrPersonaNotFound = errors.New("persona not found")
	ErrPersonaInactive = errors.New("persona is inactive")

	// Creator-related errors
	ErrCreatorNotFound   = errors.New("creator not found")
	ErrAccountInactive   = errors.New("account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")

	// Message-related errors
	ErrMessageContentRequired = errors.New("message content is required")
	ErrConversationNotFound   = errors.New("conversation not found")

	// Moderation-related errors
	ErrModerationItemNotFound  = errors.New("moderation queue item not found")
	ErrItemAlreadyResolved     = errors.New("moderation queue item is already resolved")
	ErrInvalidResolutionStatus = errors.New("resolution status must be approved or blocked")
	ErrInvalidSeverity         = errors.New("invalid severity")

	// Report/filter errors
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsFanNotFound(err error) bool {
	return errors.Is(err, ErrFanNotFound)
}

func IsFanOptedOut(err error) bool {
	return errors.Is(err, ErrFanOptedOut)
}

func IsConsentNotAffirmative(err error) bool {
	return errors.Is(err, ErrConsentNotAffirmative)
}

func IsPersonaNotFound(err error) bool {
	return errors.Is(err, ErrPersonaNotFound)
}

func IsPersonaInactive(err error) bool {
	return errors.Is(err, ErrPersonaInactive)
}

func IsCreatorNotFound(err error) bool {
	return errors.Is(err, ErrCreatorNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsMessageContentRequired(err error) bool {
	return errors.Is(err, ErrMessageContentRequired)
}

func IsConversationNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

func IsModerationItemNotFound(err error) bool {
	return errors.Is(err, ErrModerationItemNotFound)
}

func IsItemAlreadyResolved(err error) bool {
	return errors.Is(err, ErrItemAlreadyResolved)
}

func IsInvalidResolutionStatus(err error) bool {
	return errors.Is(err, ErrInvalidResolutionStatus)
}

func IsInvalidSeverity(err error) bool {
	return errors.Is(err, ErrInvalidSeverity)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
