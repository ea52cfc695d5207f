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

// ComplianceHandlerInterface defines the contract for compliance handlers
type ComplianceHandlerInterface interface {
	Score(c fiber.Ctx) error
	Report(c fiber.Ctx) error
}

// ComplianceHandler handles compliance reporting HTTP requests
type ComplianceHandler struct {
	moderationFlow businessflow.ModerationFlow
	complianceFlow businessflow.ComplianceFlow
	validator      *validator.Validate
}

// NewComplianceHandler creates a new compliance handler
func NewComplianceHandler(moderationFlow businessflow.ModerationFlow, complianceFlow businessflow.ComplianceFlow) *ComplianceHandler {
	return &ComplianceHandler{
		moderationFlow: moderationFlow,
		complianceFlow: complianceFlow,
		validator:      validator.New(),
	}
}

func (h *ComplianceHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ComplianceHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Score returns the queue-scoped compliance score
// @Summary Compliance Score
// @Description Current compliance score computed from the moderation queue
// @Tags Compliance
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ComplianceScoreResponse} "Score computed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/compliance/score [get]
func (h *ComplianceHandler) Score(c fiber.Ctx) error {
	result, err := h.moderationFlow.ComplianceScore(h.createRequestContext(c))
	if err != nil {
		log.Println("Compliance score failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute compliance score", "COMPLIANCE_SCORE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// Report returns the audit-scoped compliance report, as JSON or XLSX
// @Summary Compliance Report
// @Description Audit-trail compliance report over a time window, optionally scoped to a persona
// @Tags Compliance
// @Produce json
// @Param persona_uuid query string false "Persona UUID"
// @Param start query string false "Window start (RFC3339)"
// @Param end query string false "Window end (RFC3339)"
// @Param format query string false "json (default) or xlsx"
// @Success 200 {object} dto.APIResponse{data=dto.ComplianceReportResponse} "Report generated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Persona not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/compliance/report [get]
func (h *ComplianceHandler) Report(c fiber.Ctx) error {
	req := dto.ComplianceReportRequest{
		Format: fiber.Query(c, "format", "json"),
	}
	if personaUUID := c.Query("persona_uuid"); personaUUID != "" {
		req.PersonaUUID = &personaUUID
	}
	if raw := c.Query("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid start date, expected RFC3339", "INVALID_START_DATE", nil)
		}
		req.StartDate = &parsed
	}
	if raw := c.Query("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid end date, expected RFC3339", "INVALID_END_DATE", nil)
		}
		req.EndDate = &parsed
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	ctx := h.createRequestContext(c)

	if req.Format == "xlsx" {
		filename, content, err := h.complianceFlow.ExportReportXLSX(ctx, &req)
		if err != nil {
			return h.reportError(c, err)
		}
		c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set("Content-Disposition", "attachment; filename=\""+filename+"\"")
		return c.Send(content)
	}

	result, err := h.complianceFlow.Report(ctx, &req)
	if err != nil {
		return h.reportError(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *ComplianceHandler) reportError(c fiber.Ctx, err error) error {
	if businessflow.IsPersonaNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Persona not found", "PERSONA_NOT_FOUND", nil)
	}
	if businessflow.IsStartDateAfterEndDate(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_REPORT_WINDOW", nil)
	}

	log.Println("Compliance report failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate compliance report", "COMPLIANCE_REPORT_FAILED", nil)
}

func (h *ComplianceHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup
	return ctx
}
