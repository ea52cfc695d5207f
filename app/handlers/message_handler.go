// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/kitsune-chat/Kitsune/app/dto"
	businessflow "github.com/kitsune-chat/Kitsune/business_flow"
)

// MessageHandlerInterface defines the contract for the fan-facing handlers
type MessageHandlerInterface interface {
	SubmitMessage(c fiber.Ctx) error
	RecordConsent(c fiber.Ctx) error
}

// MessageHandler handles fan-facing HTTP requests
type MessageHandler struct {
	messageFlow businessflow.MessageFlow
	consentFlow businessflow.ConsentFlow
	validator   *validator.Validate
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(messageFlow businessflow.MessageFlow, consentFlow businessflow.ConsentFlow) *MessageHandler {
	return &MessageHandler{
		messageFlow: messageFlow,
		consentFlow: consentFlow,
		validator:   validator.New(),
	}
}

func (h *MessageHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *MessageHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SubmitMessage runs one inbound fan message through the safety pipeline
// @Summary Submit Fan Message
// @Description Submit an inbound fan message to a persona and receive the pipeline outcome
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body dto.SubmitMessageRequest true "Inbound fan message"
// @Success 200 {object} dto.APIResponse{data=dto.SubmitMessageResponse} "Pipeline reached a terminal state"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Fan has opted out"
// @Failure 404 {object} dto.APIResponse "Fan or persona not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/messages [post]
func (h *MessageHandler) SubmitMessage(c fiber.Ctx) error {
	var req dto.SubmitMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))

	// Reply generation can take most of a minute.
	result, err := h.messageFlow.SubmitMessage(h.createRequestContext(c, 60*time.Second), &req, metadata)
	if err != nil {
		if businessflow.IsFanNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Fan not found", "FAN_NOT_FOUND", nil)
		}
		if businessflow.IsFanOptedOut(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Fan has opted out of messaging", "FAN_OPTED_OUT", nil)
		}
		if businessflow.IsPersonaNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Persona not found", "PERSONA_NOT_FOUND", nil)
		}
		if businessflow.IsPersonaInactive(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Persona is inactive", "PERSONA_INACTIVE", nil)
		}
		if businessflow.IsMessageContentRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Message content is required", "CONTENT_REQUIRED", nil)
		}

		log.Println("Message submission failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Message submission failed", "MESSAGE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// RecordConsent records a fan's age and romantic-content affirmation
// @Summary Record Consent
// @Description Record a fan's consent affirmation for romantic content
// @Tags Fans
// @Accept json
// @Produce json
// @Param uuid path string true "Fan UUID"
// @Param request body dto.RecordConsentRequest true "Consent affirmation"
// @Success 200 {object} dto.APIResponse{data=dto.RecordConsentResponse} "Consent recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Fan not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/fans/{uuid}/consent [post]
func (h *MessageHandler) RecordConsent(c fiber.Ctx) error {
	var req dto.RecordConsentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.FanUUID = c.Params("uuid")

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))

	result, err := h.consentFlow.RecordConsent(h.createRequestContext(c, 30*time.Second), &req, metadata)
	if err != nil {
		if businessflow.IsFanNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Fan not found", "FAN_NOT_FOUND", nil)
		}
		if businessflow.IsConsentNotAffirmative(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Both flags must be affirmed", "CONSENT_NOT_AFFIRMATIVE", nil)
		}

		log.Println("Consent recording failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Consent recording failed", "CONSENT_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *MessageHandler) createRequestContext(c fiber.Ctx, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup
	return ctx
}
