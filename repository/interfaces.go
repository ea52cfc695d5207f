// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kitsune-chat/Kitsune/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// FanRepository defines operations for fans
type FanRepository interface {
	Repository[models.Fan, models.FanFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Fan, error)
	ByPlatformHandle(ctx context.Context, handle string) (*models.Fan, error)
	ListBySpendTier(ctx context.Context, tier string, limit, offset int) ([]*models.Fan, error)
	// UpdateConsent writes both consent flags and the affirmation timestamp in
	// a single statement; it must not touch any other column.
	UpdateConsent(ctx context.Context, fanID uint, ageAffirmed, romanticConsent bool, affirmedAt time.Time) error
	// ApplyStopRequest overwrites boundaries and preferences without touching
	// the consent record.
	ApplyStopRequest(ctx context.Context, fanID uint, boundaries []string, preferences json.RawMessage) error
}

// PersonaRepository defines operations for personas
type PersonaRepository interface {
	Repository[models.Persona, models.PersonaFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Persona, error)
	ListByCreator(ctx context.Context, creatorID uint) ([]*models.Persona, error)
}

// CreatorRepository defines operations for creators
type CreatorRepository interface {
	Repository[models.Creator, models.CreatorFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Creator, error)
	ByEmail(ctx context.Context, email string) (*models.Creator, error)
	UpdateLastLogin(ctx context.Context, creatorID uint, at time.Time) error
}

// ConversationRepository defines operations for conversations
type ConversationRepository interface {
	Repository[models.Conversation, models.ConversationFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Conversation, error)
	// GetOrCreateActive returns the active conversation for the pair, creating
	// it lazily on first inbound message.
	GetOrCreateActive(ctx context.Context, fanID, personaID uint) (*models.Conversation, error)
	UpdateSummaryAndSentiment(ctx context.Context, conversationID uint, summary, sentiment string, lastActivityAt time.Time) error
}

// MessageRepository defines operations for messages
type MessageRepository interface {
	Repository[models.Message, models.MessageFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Message, error)
	// RecentByConversation returns up to limit most recent messages in
	// chronological order.
	RecentByConversation(ctx context.Context, conversationID uint, limit int) ([]*models.Message, error)
	// UpdateModerationStatus is the only permitted post-creation mutation.
	UpdateModerationStatus(ctx context.Context, messageID uint, status string) error
}

// ModerationQueueRepository defines operations for the moderation queue
type ModerationQueueRepository interface {
	Repository[models.ModerationQueueItem, models.ModerationQueueItemFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ModerationQueueItem, error)
	// List returns items in reverse-chronological order, optionally filtered
	// by status.
	List(ctx context.Context, status *string, limit, offset int) ([]*models.ModerationQueueItem, error)
	// Resolve conditionally moves a pending item to approved or blocked. The
	// returned count is zero when the item was not pending (already resolved
	// or missing), in which case nothing was written.
	Resolve(ctx context.Context, itemID uint, status string, reviewerID uint, reviewedAt time.Time) (int64, error)
	// CountByStatusOn returns per-status counts for items created on the UTC
	// day containing the given time.
	CountByStatusOn(ctx context.Context, day time.Time) (map[string]int64, error)
	// ScoreCounts returns the populations the queue-scoped compliance score is
	// computed from: all items, blocked items, and critical-severity items.
	ScoreCounts(ctx context.Context) (total, blocked, critical int64, err error)
}

// AuditLogRepository defines operations for audit logs. The log is append-only:
// no update or delete operation exists on this interface.
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByEntity(ctx context.Context, entityType string, entityID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	// ListSafetyEventsBetween returns the safety-relevant entries within
	// [start, end), most recent first, optionally scoped to a persona.
	ListSafetyEventsBetween(ctx context.Context, personaID *uint, start, end time.Time, limit int) ([]*models.AuditLog, error)
	CountByActionBetween(ctx context.Context, personaID *uint, action string, start, end time.Time) (int64, error)
	// CountVerdictsBetween groups moderation_action and escalation_triggered
	// entries by the verdict recorded in their detail payload.
	CountVerdictsBetween(ctx context.Context, personaID *uint, start, end time.Time) (map[string]int64, error)
}
