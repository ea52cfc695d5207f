package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/repository"
	"github.com/kitsune-chat/Kitsune/utils"
)

const statusCountsCacheTTL = time.Minute

// ModerationFlow handles moderation queue review operations
type ModerationFlow interface {
	ListQueue(ctx context.Context, request *dto.ListModerationQueueRequest) (*dto.ListModerationQueueResponse, error)
	Resolve(ctx context.Context, request *dto.ResolveModerationItemRequest, metadata *ClientMetadata) (*dto.ResolveModerationItemResponse, error)
	ComplianceScore(ctx context.Context) (*dto.ComplianceScoreResponse, error)
	DailyStatusCounts(ctx context.Context, day time.Time) (*dto.ModerationStatusCountsResponse, error)
}

// ModerationFlowImpl implements the moderation queue flow
type ModerationFlowImpl struct {
	moderationRepo repository.ModerationQueueRepository
	personaRepo    repository.PersonaRepository
	fanRepo        repository.FanRepository
	auditRepo      repository.AuditLogRepository
	rc             *redis.Client
}

// NewModerationFlow creates a new moderation flow instance
func NewModerationFlow(
	moderationRepo repository.ModerationQueueRepository,
	personaRepo repository.PersonaRepository,
	fanRepo repository.FanRepository,
	auditRepo repository.AuditLogRepository,
	rc *redis.Client,
) ModerationFlow {
	return &ModerationFlowImpl{
		moderationRepo: moderationRepo,
		personaRepo:    personaRepo,
		fanRepo:        fanRepo,
		auditRepo:      auditRepo,
		rc:             rc,
	}
}

// ListQueue returns queue items in reverse-chronological order, optionally
// filtered by status and minimum severity
func (mf *ModerationFlowImpl) ListQueue(ctx context.Context, request *dto.ListModerationQueueRequest) (*dto.ListModerationQueueResponse, error) {
	if request.MinSeverity != nil && !models.IsValidSeverity(*request.MinSeverity) {
		return nil, NewBusinessError("INVALID_SEVERITY", "Invalid severity", ErrInvalidSeverity)
	}

	limit := request.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := request.Offset
	if offset < 0 {
		offset = 0
	}

	items, err := mf.moderationRepo.List(ctx, request.Status, limit, offset)
	if err != nil {
		return nil, NewBusinessError("MODERATION_LIST_FAILED", "Failed to list moderation queue", err)
	}

	personaUUIDs := map[uint]string{}
	fanUUIDs := map[uint]string{}

	out := make([]dto.ModerationQueueItemDTO, 0, len(items))
	for _, item := range items {
		// The severity floor applies within the fetched page.
		if request.MinSeverity != nil && !item.SeverityAtLeast(*request.MinSeverity) {
			continue
		}
		personaUUID := ""
		if item.PersonaID != nil {
			personaUUID = mf.resolvePersonaUUID(ctx, *item.PersonaID, personaUUIDs)
		}
		fanUUID := ""
		if item.FanID != nil {
			fanUUID = mf.resolveFanUUID(ctx, *item.FanID, fanUUIDs)
		}
		out = append(out, ToModerationQueueItemDTO(*item, personaUUID, fanUUID))
	}

	return &dto.ListModerationQueueResponse{
		Message: "Moderation queue retrieved",
		Items:   out,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// Resolve moves a pending item to approved or blocked. Only the pending to
// approved/blocked transition exists; resolving a resolved item is rejected.
func (mf *ModerationFlowImpl) Resolve(ctx context.Context, request *dto.ResolveModerationItemRequest, metadata *ClientMetadata) (*dto.ResolveModerationItemResponse, error) {
	if !models.IsResolutionStatus(request.Status) {
		return nil, NewBusinessError("INVALID_RESOLUTION_STATUS", "Invalid resolution status", ErrInvalidResolutionStatus)
	}

	item, err := mf.moderationRepo.ByUUID(ctx, request.ItemUUID)
	if err != nil {
		return nil, NewBusinessError("MODERATION_LOOKUP_FAILED", "Failed to look up moderation item", err)
	}
	if item == nil {
		return nil, NewBusinessError("MODERATION_ITEM_NOT_FOUND", "Moderation item not found", ErrModerationItemNotFound)
	}

	reviewedAt := utils.UTCNow()
	affected, err := mf.moderationRepo.Resolve(ctx, item.ID, request.Status, request.ReviewerID, reviewedAt)
	if err != nil {
		return nil, NewBusinessError("MODERATION_RESOLVE_FAILED", "Failed to resolve moderation item", err)
	}
	if affected == 0 {
		return nil, NewBusinessError("ITEM_ALREADY_RESOLVED", "Moderation item is already resolved", ErrItemAlreadyResolved)
	}

	mf.logResolution(ctx, item, request.Status, request.ReviewerID, metadata)
	mf.invalidateStatusCounts(ctx, item.CreatedAt)

	return &dto.ResolveModerationItemResponse{
		Message:    "Moderation item resolved",
		UUID:       item.UUID.String(),
		Status:     request.Status,
		ReviewedAt: reviewedAt,
	}, nil
}

// ComplianceScore computes the queue-scoped score:
// 100 - min(100, 100*(blocked + 2*critical)/total), 100 when the queue is empty
func (mf *ModerationFlowImpl) ComplianceScore(ctx context.Context) (*dto.ComplianceScoreResponse, error) {
	total, blocked, critical, err := mf.moderationRepo.ScoreCounts(ctx)
	if err != nil {
		return nil, NewBusinessError("COMPLIANCE_SCORE_FAILED", "Failed to compute compliance score", err)
	}

	return &dto.ComplianceScoreResponse{
		Message:  "Compliance score computed",
		Score:    ComputeComplianceScore(total, blocked, critical),
		Total:    total,
		Blocked:  blocked,
		Critical: critical,
	}, nil
}

// DailyStatusCounts returns per-status counts for items created on the given
// UTC day, served from cache when available
func (mf *ModerationFlowImpl) DailyStatusCounts(ctx context.Context, day time.Time) (*dto.ModerationStatusCountsResponse, error) {
	dayKey := utils.StartOfDayUTC(day).Format("2006-01-02")
	cacheKey := statusCountsCacheKey(dayKey)

	if mf.rc != nil {
		if bs, err := mf.rc.Get(ctx, cacheKey).Bytes(); err == nil && len(bs) > 0 {
			var counts map[string]int64
			if err := json.Unmarshal(bs, &counts); err == nil {
				return &dto.ModerationStatusCountsResponse{
					Message: "Status counts retrieved from cache",
					Day:     dayKey,
					Counts:  counts,
				}, nil
			}
		}
	}

	counts, err := mf.moderationRepo.CountByStatusOn(ctx, day)
	if err != nil {
		return nil, NewBusinessError("STATUS_COUNTS_FAILED", "Failed to count queue statuses", err)
	}

	if mf.rc != nil {
		if bs, err := json.Marshal(counts); err == nil {
			_ = mf.rc.Set(ctx, cacheKey, bs, statusCountsCacheTTL).Err()
		}
	}

	return &dto.ModerationStatusCountsResponse{
		Message: "Status counts retrieved",
		Day:     dayKey,
		Counts:  counts,
	}, nil
}

// ComputeComplianceScore applies the shared scoring formula to one population
func ComputeComplianceScore(total, blocked, critical int64) float64 {
	if total == 0 {
		return 100
	}
	penalty := 100 * float64(blocked+2*critical) / float64(total)
	if penalty > 100 {
		penalty = 100
	}
	return 100 - penalty
}

func (mf *ModerationFlowImpl) resolvePersonaUUID(ctx context.Context, personaID uint, memo map[uint]string) string {
	if cached, ok := memo[personaID]; ok {
		return cached
	}
	persona, err := mf.personaRepo.ByID(ctx, personaID)
	if err != nil || persona == nil {
		memo[personaID] = ""
		return ""
	}
	memo[personaID] = persona.UUID.String()
	return memo[personaID]
}

func (mf *ModerationFlowImpl) resolveFanUUID(ctx context.Context, fanID uint, memo map[uint]string) string {
	if cached, ok := memo[fanID]; ok {
		return cached
	}
	fan, err := mf.fanRepo.ByID(ctx, fanID)
	if err != nil || fan == nil {
		memo[fanID] = ""
		return ""
	}
	memo[fanID] = fan.UUID.String()
	return memo[fanID]
}

func (mf *ModerationFlowImpl) logResolution(ctx context.Context, item *models.ModerationQueueItem, status string, reviewerID uint, metadata *ClientMetadata) {
	detail, _ := json.Marshal(map[string]any{
		"verdict":  status,
		"reason":   item.FlagReason,
		"severity": item.Severity,
	})

	entry := &models.AuditLog{
		Action:     models.AuditActionModerationAction,
		EntityType: models.EntityTypeModerationItem,
		EntityID:   item.ID,
		ActorType:  utils.ToPtr(models.ActorTypeCreator),
		ActorID:    &reviewerID,
		PersonaID:  item.PersonaID,
		FanID:      item.FanID,
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

	if err := mf.auditRepo.Save(ctx, entry); err != nil {
		log.Printf("audit write failed for moderation resolution: %v", err)
	}
}

func (mf *ModerationFlowImpl) invalidateStatusCounts(ctx context.Context, createdAt time.Time) {
	if mf.rc == nil {
		return
	}
	dayKey := utils.StartOfDayUTC(createdAt).Format("2006-01-02")
	_ = mf.rc.Del(ctx, statusCountsCacheKey(dayKey)).Err()
}

func statusCountsCacheKey(dayKey string) string {
	return fmt.Sprintf("kitsune:moderation:status_counts:%s", dayKey)
}
