package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/kitsune-chat/Kitsune/app/dto"
	businessflow "github.com/kitsune-chat/Kitsune/business_flow"
	"github.com/kitsune-chat/Kitsune/utils"
)

// ModerationHandlerInterface defines the contract for moderation handlers
type ModerationHandlerInterface interface {
	ListQueue(c fiber.Ctx) error
	ResolveItem(c fiber.Ctx) error
	DailyStatusCounts(c fiber.Ctx) error
}

// ModerationHandler handles moderation queue HTTP requests
type ModerationHandler struct {
	moderationFlow businessflow.ModerationFlow
	validator      *validator.Validate
}

// NewModerationHandler creates a new moderation handler
func NewModerationHandler(moderationFlow businessflow.ModerationFlow) *ModerationHandler {
	return &ModerationHandler{
		moderationFlow: moderationFlow,
		validator:      validator.New(),
	}
}

func (h *ModerationHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ModerationHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ListQueue returns moderation queue items
// @Summary List Moderation Queue
// @Description List moderation queue items, newest first, optionally filtered by status
// @Tags Moderation
// @Produce json
// @Param status query string false "Filter by status (pending, approved, blocked)"
// @Param min_severity query string false "Minimum severity (low, medium, high, critical)"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} dto.APIResponse{data=dto.ListModerationQueueResponse} "Queue retrieved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/moderation/queue [get]
func (h *ModerationHandler) ListQueue(c fiber.Ctx) error {
	req := dto.ListModerationQueueRequest{
		Limit:  fiber.Query(c, "limit", 50),
		Offset: fiber.Query(c, "offset", 0),
	}
	if status := c.Query("status"); status != "" {
		req.Status = &status
	}
	if minSeverity := c.Query("min_severity"); minSeverity != "" {
		req.MinSeverity = &minSeverity
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	result, err := h.moderationFlow.ListQueue(h.createRequestContext(c), &req)
	if err != nil {
		if businessflow.IsInvalidSeverity(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid severity", "INVALID_SEVERITY", nil)
		}

		log.Println("Moderation queue listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list moderation queue", "MODERATION_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ResolveItem resolves one pending moderation queue item
// @Summary Resolve Moderation Item
// @Description Move a pending moderation queue item to approved or blocked
// @Tags Moderation
// @Accept json
// @Produce json
// @Param uuid path string true "Moderation item UUID"
// @Param request body dto.ResolveModerationItemRequest true "Resolution decision"
// @Success 200 {object} dto.APIResponse{data=dto.ResolveModerationItemResponse} "Item resolved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Item not found"
// @Failure 409 {object} dto.APIResponse "Item already resolved"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/moderation/queue/{uuid}/resolve [post]
func (h *ModerationHandler) ResolveItem(c fiber.Ctx) error {
	var req dto.ResolveModerationItemRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	req.ItemUUID = c.Params("uuid")

	reviewerID, ok := c.Locals("creator_id").(uint)
	if !ok || reviewerID == 0 {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Reviewer identity missing", "REVIEWER_REQUIRED", nil)
	}
	req.ReviewerID = reviewerID

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))

	result, err := h.moderationFlow.Resolve(h.createRequestContext(c), &req, metadata)
	if err != nil {
		if businessflow.IsModerationItemNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Moderation item not found", "ITEM_NOT_FOUND", nil)
		}
		if businessflow.IsItemAlreadyResolved(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Moderation item is already resolved", "ITEM_ALREADY_RESOLVED", nil)
		}
		if businessflow.IsInvalidResolutionStatus(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid resolution status", "INVALID_RESOLUTION_STATUS", nil)
		}

		log.Println("Moderation resolution failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to resolve moderation item", "MODERATION_RESOLVE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DailyStatusCounts returns per-status queue counts for a UTC day
// @Summary Daily Queue Status Counts
// @Description Per-status moderation queue counts for a given UTC day
// @Tags Moderation
// @Produce json
// @Param day query string false "UTC day in YYYY-MM-DD format, defaults to today"
// @Success 200 {object} dto.APIResponse{data=dto.ModerationStatusCountsResponse} "Counts retrieved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/moderation/queue/status-counts [get]
func (h *ModerationHandler) DailyStatusCounts(c fiber.Ctx) error {
	day := utils.UTCNow()
	if raw := c.Query("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid day format, expected YYYY-MM-DD", "INVALID_DAY", nil)
		}
		day = parsed
	}

	result, err := h.moderationFlow.DailyStatusCounts(h.createRequestContext(c), day)
	if err != nil {
		log.Println("Status count retrieval failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to count queue statuses", "STATUS_COUNTS_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

func (h *ModerationHandler) createRequestContext(c fiber.Ctx) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	ctx = context.WithValue(ctx, businessflow.RequestIDKey, c.Get(businessflow.RequestIDKey))
	ctx = context.WithValue(ctx, "cancel_func", cancel) // Store cancel function for cleanup
	return ctx
}
