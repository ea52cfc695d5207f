package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kitsune-chat/Kitsune/models"
)

// In-memory repository fakes for flow unit tests. Only the methods the flows
// touch have real behavior; the rest satisfy the interfaces.

type fakeFanRepo struct {
	fans map[string]*models.Fan

	stopRequests []stopRequestCall
	consentCalls []consentCall
	failStop     error
}

type stopRequestCall struct {
	fanID       uint
	boundaries  []string
	preferences json.RawMessage
}

type consentCall struct {
	fanID           uint
	ageAffirmed     bool
	romanticConsent bool
	affirmedAt      time.Time
}

func newFakeFanRepo(fans ...*models.Fan) *fakeFanRepo {
	repo := &fakeFanRepo{fans: map[string]*models.Fan{}}
	for _, fan := range fans {
		repo.fans[fan.UUID.String()] = fan
	}
	return repo
}

func (r *fakeFanRepo) ByID(_ context.Context, id uint) (*models.Fan, error) {
	for _, fan := range r.fans {
		if fan.ID == id {
			return fan, nil
		}
	}
	return nil, nil
}

func (r *fakeFanRepo) Save(_ context.Context, fan *models.Fan) error {
	r.fans[fan.UUID.String()] = fan
	return nil
}

func (r *fakeFanRepo) SaveBatch(_ context.Context, fans []*models.Fan) error {
	for _, fan := range fans {
		r.fans[fan.UUID.String()] = fan
	}
	return nil
}

func (r *fakeFanRepo) ByUUID(_ context.Context, uuid string) (*models.Fan, error) {
	return r.fans[uuid], nil
}

func (r *fakeFanRepo) ByPlatformHandle(_ context.Context, handle string) (*models.Fan, error) {
	for _, fan := range r.fans {
		if fan.PlatformHandle == handle {
			return fan, nil
		}
	}
	return nil, nil
}

func (r *fakeFanRepo) ListBySpendTier(_ context.Context, tier string, _, _ int) ([]*models.Fan, error) {
	var out []*models.Fan
	for _, fan := range r.fans {
		if fan.SpendTier == tier {
			out = append(out, fan)
		}
	}
	return out, nil
}

func (r *fakeFanRepo) UpdateConsent(_ context.Context, fanID uint, ageAffirmed, romanticConsent bool, affirmedAt time.Time) error {
	r.consentCalls = append(r.consentCalls, consentCall{fanID, ageAffirmed, romanticConsent, affirmedAt})
	return nil
}

func (r *fakeFanRepo) ApplyStopRequest(_ context.Context, fanID uint, boundaries []string, preferences json.RawMessage) error {
	if r.failStop != nil {
		return r.failStop
	}
	r.stopRequests = append(r.stopRequests, stopRequestCall{fanID, boundaries, preferences})
	return nil
}

type fakePersonaRepo struct {
	personas map[string]*models.Persona
}

func newFakePersonaRepo(personas ...*models.Persona) *fakePersonaRepo {
	repo := &fakePersonaRepo{personas: map[string]*models.Persona{}}
	for _, persona := range personas {
		repo.personas[persona.UUID.String()] = persona
	}
	return repo
}

func (r *fakePersonaRepo) ByID(_ context.Context, id uint) (*models.Persona, error) {
	for _, persona := range r.personas {
		if persona.ID == id {
			return persona, nil
		}
	}
	return nil, nil
}

func (r *fakePersonaRepo) Save(_ context.Context, persona *models.Persona) error {
	r.personas[persona.UUID.String()] = persona
	return nil
}

func (r *fakePersonaRepo) SaveBatch(_ context.Context, personas []*models.Persona) error {
	for _, persona := range personas {
		r.personas[persona.UUID.String()] = persona
	}
	return nil
}

func (r *fakePersonaRepo) ByUUID(_ context.Context, uuid string) (*models.Persona, error) {
	return r.personas[uuid], nil
}

func (r *fakePersonaRepo) ListByCreator(_ context.Context, creatorID uint) ([]*models.Persona, error) {
	var out []*models.Persona
	for _, persona := range r.personas {
		if persona.CreatorID == creatorID {
			out = append(out, persona)
		}
	}
	return out, nil
}

type fakeModerationRepo struct {
	items map[uint]*models.ModerationQueueItem

	nextID   uint
	failSave error
}

func newFakeModerationRepo() *fakeModerationRepo {
	return &fakeModerationRepo{items: map[uint]*models.ModerationQueueItem{}}
}

func (r *fakeModerationRepo) ByID(_ context.Context, id uint) (*models.ModerationQueueItem, error) {
	return r.items[id], nil
}

func (r *fakeModerationRepo) Save(_ context.Context, item *models.ModerationQueueItem) error {
	if r.failSave != nil {
		return r.failSave
	}
	if item.ID == 0 {
		r.nextID++
		item.ID = r.nextID
	}
	r.items[item.ID] = item
	return nil
}

func (r *fakeModerationRepo) SaveBatch(ctx context.Context, items []*models.ModerationQueueItem) error {
	for _, item := range items {
		if err := r.Save(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeModerationRepo) ByUUID(_ context.Context, uuid string) (*models.ModerationQueueItem, error) {
	for _, item := range r.items {
		if item.UUID.String() == uuid {
			return item, nil
		}
	}
	return nil, nil
}

func (r *fakeModerationRepo) List(_ context.Context, status *string, limit, offset int) ([]*models.ModerationQueueItem, error) {
	var out []*models.ModerationQueueItem
	for _, item := range r.items {
		if status == nil || item.Status == *status {
			out = append(out, item)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeModerationRepo) Resolve(_ context.Context, itemID uint, status string, reviewerID uint, reviewedAt time.Time) (int64, error) {
	item, ok := r.items[itemID]
	if !ok || item.Status != models.ModerationStatusPending {
		return 0, nil
	}
	item.Status = status
	item.ReviewerID = &reviewerID
	item.ReviewedAt = &reviewedAt
	return 1, nil
}

func (r *fakeModerationRepo) CountByStatusOn(_ context.Context, day time.Time) (map[string]int64, error) {
	counts := map[string]int64{}
	dayKey := day.UTC().Format("2006-01-02")
	for _, item := range r.items {
		if item.CreatedAt.UTC().Format("2006-01-02") == dayKey {
			counts[item.Status]++
		}
	}
	return counts, nil
}

func (r *fakeModerationRepo) ScoreCounts(_ context.Context) (int64, int64, int64, error) {
	var total, blocked, critical int64
	for _, item := range r.items {
		total++
		if item.Status == models.ModerationStatusBlocked {
			blocked++
		}
		if item.Severity == models.SeverityCritical {
			critical++
		}
	}
	return total, blocked, critical, nil
}

type fakeAuditRepo struct {
	entries []*models.AuditLog

	verdictCounts map[string]int64
	actionCounts  map[string]int64
	safetyEvents  []*models.AuditLog
	failSave      error
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{
		verdictCounts: map[string]int64{},
		actionCounts:  map[string]int64{},
	}
}

func (r *fakeAuditRepo) ByID(_ context.Context, id uint) (*models.AuditLog, error) {
	for _, entry := range r.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return nil, nil
}

func (r *fakeAuditRepo) Save(_ context.Context, entry *models.AuditLog) error {
	if r.failSave != nil {
		return r.failSave
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, entries []*models.AuditLog) error {
	for _, entry := range entries {
		if err := r.Save(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeAuditRepo) ListByEntity(_ context.Context, entityType string, entityID uint, _, _ int) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	for _, entry := range r.entries {
		if entry.EntityType == entityType && entry.EntityID == entityID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ListByAction(_ context.Context, action string, _, _ int) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	for _, entry := range r.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) ListSafetyEventsBetween(_ context.Context, personaID *uint, start, end time.Time, limit int) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	for _, entry := range r.safetyEvents {
		if personaID != nil && (entry.PersonaID == nil || *entry.PersonaID != *personaID) {
			continue
		}
		if entry.CreatedAt.Before(start) || !entry.CreatedAt.Before(end) {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeAuditRepo) CountByActionBetween(_ context.Context, _ *uint, action string, _, _ time.Time) (int64, error) {
	return r.actionCounts[action], nil
}

func (r *fakeAuditRepo) CountVerdictsBetween(_ context.Context, _ *uint, _, _ time.Time) (map[string]int64, error) {
	return r.verdictCounts, nil
}

// byAction filters recorded entries by action tag
func (r *fakeAuditRepo) byAction(action string) []*models.AuditLog {
	var out []*models.AuditLog
	for _, entry := range r.entries {
		if entry.Action == action {
			out = append(out, entry)
		}
	}
	return out
}
