package businessflow

import (
	"context"
	"encoding/json"
	"log"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/repository"
	"github.com/kitsune-chat/Kitsune/utils"
)

// ConsentFlow handles fan consent affirmation
type ConsentFlow interface {
	RecordConsent(ctx context.Context, request *dto.RecordConsentRequest, metadata *ClientMetadata) (*dto.RecordConsentResponse, error)
}

// ConsentFlowImpl implements the consent affirmation flow
type ConsentFlowImpl struct {
	fanRepo   repository.FanRepository
	auditRepo repository.AuditLogRepository
}

// NewConsentFlow creates a new consent flow instance
func NewConsentFlow(fanRepo repository.FanRepository, auditRepo repository.AuditLogRepository) ConsentFlow {
	return &ConsentFlowImpl{
		fanRepo:   fanRepo,
		auditRepo: auditRepo,
	}
}

// RecordConsent writes both consent flags and the affirmation timestamp in a
// single update. Partial affirmation is rejected: the gate requires both flags,
// so recording one without the other would leave a misleading timestamp.
func (cf *ConsentFlowImpl) RecordConsent(ctx context.Context, request *dto.RecordConsentRequest, metadata *ClientMetadata) (*dto.RecordConsentResponse, error) {
	if !utils.IsTrue(request.AgeAffirmed) || !utils.IsTrue(request.RomanticConsent) {
		return nil, NewBusinessError("CONSENT_NOT_AFFIRMATIVE", "Consent must affirm both flags", ErrConsentNotAffirmative)
	}

	fan, err := cf.fanRepo.ByUUID(ctx, request.FanUUID)
	if err != nil {
		return nil, NewBusinessError("FAN_LOOKUP_FAILED", "Failed to look up fan", err)
	}
	if fan == nil {
		return nil, NewBusinessError("FAN_NOT_FOUND", "Fan not found", ErrFanNotFound)
	}

	affirmedAt := utils.UTCNow()
	if err := cf.fanRepo.UpdateConsent(ctx, fan.ID, true, true, affirmedAt); err != nil {
		return nil, NewBusinessError("CONSENT_UPDATE_FAILED", "Failed to record consent", err)
	}

	cf.logConsentAffirmed(ctx, fan, metadata)

	return &dto.RecordConsentResponse{
		Message:           "Consent recorded",
		AgeAffirmed:       true,
		RomanticConsent:   true,
		ConsentAffirmedAt: &affirmedAt,
	}, nil
}

func (cf *ConsentFlowImpl) logConsentAffirmed(ctx context.Context, fan *models.Fan, metadata *ClientMetadata) {
	detail, _ := json.Marshal(map[string]any{
		"age_affirmed":     true,
		"romantic_consent": true,
	})

	entry := &models.AuditLog{
		Action:     models.AuditActionConsentAffirmed,
		EntityType: models.EntityTypeFan,
		EntityID:   fan.ID,
		ActorType:  utils.ToPtr(models.ActorTypeFan),
		ActorID:    &fan.ID,
		FanID:      &fan.ID,
		Detail:     detail,
		Success:    utils.ToPtr(true),
		CreatedAt:  utils.UTCNow(),
	}
	if metadata != nil {
		entry.IPAddress = &metadata.IPAddress
		entry.UserAgent = &metadata.UserAgent
		if metadata.RequestID != "" {
			entry.RequestID = &metadata.RequestID
		}
	}

	if err := cf.auditRepo.Save(ctx, entry); err != nil {
		log.Printf("audit write failed for consent affirmation: %v", err)
	}
}
