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

// AuthHandlerInterface defines the contract for authentication handlers
type AuthHandlerInterface interface {
	Login(c fiber.Ctx) error
	Refresh(c fiber.Ctx) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	loginFlow businessflow.LoginFlow
	validator *validator.Validate
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(loginFlow businessflow.LoginFlow) *AuthHandler {
	return &AuthHandler{
		loginFlow: loginFlow,
		validator: validator.New(),
	}
}

func (h *AuthHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AuthHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Login authenticates a creator
// @Summary Creator Login
// @Description Authenticate a creator with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Creator credentials"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Login successful"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid credentials"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var req dto.LoginRequest
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

	result, err := h.loginFlow.Login(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsCreatorNotFound(err) || businessflow.IsIncorrectPassword(err) {
			// One message for both cases so the endpoint doesn't leak which emails exist
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid email or password", "INVALID_CREDENTIALS", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Login failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Login failed", "LOGIN_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh Tokens
// @Description Exchange a valid refresh token for a new token pair
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} dto.APIResponse{data=dto.LoginResponse} "Tokens refreshed"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Invalid or expired refresh token"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var req dto.RefreshTokenRequest
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

	result, err := h.loginFlow.Refresh(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsCreatorNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid refresh token", "TOKEN_INVALID", nil)
		}
		if businessflow.IsAccountInactive(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Account is inactive", "ACCOUNT_INACTIVE", nil)
		}

		log.Println("Token refresh failed", err)
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Token refresh failed", "TOKEN_REFRESH_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *AuthHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup
	return ctx
}
