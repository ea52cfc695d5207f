// Package businessflow contains the core business logic for message safety and moderation workflows
package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/app/services"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/repository"
	"github.com/kitsune-chat/Kitsune/utils"
)

// Terminal states of the message pipeline
const (
	StateStopped         = "stopped"
	StateBlocked         = "blocked"
	StateEscalated       = "escalated"
	StateReview          = "review"
	StateConsentRequired = "consent_required"
	StateResponded       = "responded"
)

var pipelineOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "message_pipeline_outcomes_total",
		Help: "Total pipeline runs partitioned by terminal state",
	},
	[]string{"state"},
)

// MessageFlow handles the inbound fan message pipeline
type MessageFlow interface {
	SubmitMessage(ctx context.Context, request *dto.SubmitMessageRequest, metadata *ClientMetadata) (*dto.SubmitMessageResponse, error)
}

// MessageFlowImpl implements the message pipeline: stop check, classification,
// consent gate, reply generation. Each inbound message runs the steps in that
// fixed order and ends in exactly one terminal state.
type MessageFlowImpl struct {
	fanRepo        repository.FanRepository
	personaRepo    repository.PersonaRepository
	convRepo       repository.ConversationRepository
	messageRepo    repository.MessageRepository
	moderationRepo repository.ModerationQueueRepository
	auditRepo      repository.AuditLogRepository
	classifier     *PatternClassifier
	responder      services.ResponderService
	db             *gorm.DB
}

// NewMessageFlow creates a new message flow instance
func NewMessageFlow(
	fanRepo repository.FanRepository,
	personaRepo repository.PersonaRepository,
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	moderationRepo repository.ModerationQueueRepository,
	auditRepo repository.AuditLogRepository,
	classifier *PatternClassifier,
	responder services.ResponderService,
	db *gorm.DB,
) MessageFlow {
	return &MessageFlowImpl{
		fanRepo:        fanRepo,
		personaRepo:    personaRepo,
		convRepo:       convRepo,
		messageRepo:    messageRepo,
		moderationRepo: moderationRepo,
		auditRepo:      auditRepo,
		classifier:     classifier,
		responder:      responder,
		db:             db,
	}
}

// SubmitMessage runs one inbound fan message through the safety pipeline
func (mf *MessageFlowImpl) SubmitMessage(ctx context.Context, request *dto.SubmitMessageRequest, metadata *ClientMetadata) (*dto.SubmitMessageResponse, error) {
	if strings.TrimSpace(request.Content) == "" {
		return nil, NewBusinessError("MESSAGE_VALIDATION_FAILED", "Message validation failed", ErrMessageContentRequired)
	}

	fan, err := mf.fanRepo.ByUUID(ctx, request.FanUUID)
	if err != nil {
		return nil, NewBusinessError("FAN_LOOKUP_FAILED", "Failed to look up fan", err)
	}
	if fan == nil {
		return nil, NewBusinessError("FAN_NOT_FOUND", "Fan not found", ErrFanNotFound)
	}
	// A prior stop request blocks everything, including classification.
	if fan.HasOptedOut() {
		return nil, NewBusinessError("FAN_OPTED_OUT", "Fan has opted out of messaging", ErrFanOptedOut)
	}

	persona, err := mf.personaRepo.ByUUID(ctx, request.PersonaUUID)
	if err != nil {
		return nil, NewBusinessError("PERSONA_LOOKUP_FAILED", "Failed to look up persona", err)
	}
	if persona == nil {
		return nil, NewBusinessError("PERSONA_NOT_FOUND", "Persona not found", ErrPersonaNotFound)
	}
	if !utils.IsTrue(persona.IsActive) {
		return nil, NewBusinessError("PERSONA_INACTIVE", "Persona is inactive", ErrPersonaInactive)
	}

	// Step 1: stop check. Runs before classification so an opt-out is honored
	// even when the same text also trips a moderation rule.
	if IsStopRequest(request.Content) {
		return mf.handleStopRequest(ctx, fan, persona, metadata)
	}

	// Step 2: classification.
	verdict := mf.classifier.Classify(request.Content)
	if !verdict.IsAllowed() {
		return mf.handleFlaggedMessage(ctx, fan, persona, request.Content, verdict, metadata)
	}

	// Step 3: consent gate. Only reached for content deemed safe to send.
	if !fan.HasFullConsent() {
		mf.logSafetyEvent(ctx, fan, persona, models.AuditActionConsentPromptIssued, nil, true, metadata)
		pipelineOutcomes.WithLabelValues(StateConsentRequired).Inc()
		return &dto.SubmitMessageResponse{
			Message: "Consent affirmation required",
			State:   StateConsentRequired,
			Reply:   utils.ToPtr(utils.ConsentPromptText),
		}, nil
	}

	// Step 4: generate and persist the reply.
	return mf.respond(ctx, fan, persona, request.Content, verdict, metadata)
}

// handleStopRequest performs the full opt-out: boundaries are overwritten with
// the stop sentinel and preferences are marked opted-out in one update.
func (mf *MessageFlowImpl) handleStopRequest(ctx context.Context, fan *models.Fan, persona *models.Persona, metadata *ClientMetadata) (*dto.SubmitMessageResponse, error) {
	preferences, err := optedOutPreferences(fan.Preferences)
	if err != nil {
		return nil, NewBusinessError("STOP_REQUEST_FAILED", "Failed to apply stop request", err)
	}

	err = mf.fanRepo.ApplyStopRequest(ctx, fan.ID, []string{models.BoundaryStopAll}, preferences)
	if err != nil {
		return nil, NewBusinessError("STOP_REQUEST_FAILED", "Failed to apply stop request", err)
	}

	mf.logSafetyEvent(ctx, fan, persona, models.AuditActionStopRequest, nil, true, metadata)

	pipelineOutcomes.WithLabelValues(StateStopped).Inc()
	return &dto.SubmitMessageResponse{
		Message: "Stop request honored",
		State:   StateStopped,
		Reply:   utils.ToPtr(utils.StopAcknowledgmentText),
	}, nil
}

// handleFlaggedMessage queues the message and returns the policy notice. The
// queue and audit writes are best-effort: a storage failure is logged and the
// verdict is still returned.
func (mf *MessageFlowImpl) handleFlaggedMessage(ctx context.Context, fan *models.Fan, persona *models.Persona, content string, verdict Verdict, metadata *ClientMetadata) (*dto.SubmitMessageResponse, error) {
	item := &models.ModerationQueueItem{
		UUID:        uuid.New(),
		PersonaID:   &persona.ID,
		FanID:       &fan.ID,
		ContentText: content,
		FlagReason:  verdict.Reason,
		Severity:    verdict.Severity,
		Status:      models.ModerationStatusPending,
		CreatedAt:   utils.UTCNow(),
	}
	if err := mf.moderationRepo.Save(ctx, item); err != nil {
		log.Printf("moderation queue write failed, verdict still returned: %v", err)
	}

	// Exactly one audit entry per flagged message: escalations are tagged
	// escalation_triggered, everything else moderation_action. Both carry the
	// verdict in their detail payload.
	detail := map[string]any{
		"verdict":  verdict.Action,
		"reason":   verdict.Reason,
		"severity": verdict.Severity,
	}
	auditAction := models.AuditActionModerationAction
	if verdict.Action == ActionEscalate {
		auditAction = models.AuditActionEscalationTriggered
	}
	mf.logSafetyEvent(ctx, fan, persona, auditAction, detail, true, metadata)

	switch verdict.Action {
	case ActionEscalate:
		pipelineOutcomes.WithLabelValues(StateEscalated).Inc()
		// The notice stays generic: no rule name, no matched pattern.
		return &dto.SubmitMessageResponse{
			Message: "Message escalated",
			State:   StateEscalated,
			Reply:   utils.ToPtr(utils.ReviewNoticeText),
		}, nil
	case ActionBlock:
		pipelineOutcomes.WithLabelValues(StateBlocked).Inc()
		return &dto.SubmitMessageResponse{
			Message:    "Message blocked",
			State:      StateBlocked,
			Reply:      utils.ToPtr(utils.BlockedNoticeText),
			FlagReason: verdict.Reason,
			Severity:   verdict.Severity,
		}, nil
	default:
		pipelineOutcomes.WithLabelValues(StateReview).Inc()
		return &dto.SubmitMessageResponse{
			Message: "Message held for review",
			State:   StateReview,
			Reply:   utils.ToPtr(utils.ReviewNoticeText),
		}, nil
	}
}

// respond generates the persona reply, persists both sides of the exchange,
// and advances the conversation. The reply is durably stored before it is
// returned; the audit write afterwards is best-effort.
func (mf *MessageFlowImpl) respond(ctx context.Context, fan *models.Fan, persona *models.Persona, content string, verdict Verdict, metadata *ClientMetadata) (*dto.SubmitMessageResponse, error) {
	conversation, err := mf.convRepo.GetOrCreateActive(ctx, fan.ID, persona.ID)
	if err != nil {
		return nil, NewBusinessError("CONVERSATION_FAILED", "Failed to open conversation", err)
	}

	recent, err := mf.messageRepo.RecentByConversation(ctx, conversation.ID, utils.RecentMessageWindow)
	if err != nil {
		log.Printf("recent message fetch failed, generating without history: %v", err)
		recent = nil
	}

	replyText := mf.generateReply(ctx, persona, fan, recent, conversation.Summary, content)

	fanMessage := &models.Message{
		UUID:             uuid.New(),
		ConversationID:   conversation.ID,
		Sender:           models.MessageSenderFan,
		Content:          content,
		ModerationStatus: models.MessageModerationApproved,
		CreatedAt:        utils.UTCNow(),
	}
	aiMessage := &models.Message{
		UUID:             uuid.New(),
		ConversationID:   conversation.ID,
		Sender:           models.MessageSenderAI,
		Content:          replyText,
		ModerationStatus: models.MessageModerationApproved,
		SentAt:           utils.ToPtr(utils.UTCNow()),
		CreatedAt:        utils.UTCNow(),
	}

	err = repository.WithTransaction(ctx, mf.db, func(ctx context.Context) error {
		if err := mf.messageRepo.Save(ctx, fanMessage); err != nil {
			return err
		}
		if err := mf.messageRepo.Save(ctx, aiMessage); err != nil {
			return err
		}
		return mf.convRepo.UpdateSummaryAndSentiment(ctx, conversation.ID,
			summarizeExchange(content, replyText), deriveSentiment(content), utils.UTCNow())
	})
	if err != nil {
		return nil, NewBusinessError("REPLY_PERSIST_FAILED", "Failed to persist exchange", err)
	}

	detail := map[string]any{
		"verdict":     verdict.Action,
		"severity":    verdict.Severity,
		"fan_message": content,
		"ai_reply":    replyText,
	}
	mf.logSafetyEvent(ctx, fan, persona, models.AuditActionAIConversation, detail, true, metadata)

	pipelineOutcomes.WithLabelValues(StateResponded).Inc()
	return &dto.SubmitMessageResponse{
		Message:          "Reply generated",
		State:            StateResponded,
		Reply:            &replyText,
		ConversationUUID: conversation.UUID.String(),
	}, nil
}

// generateReply calls the responder with a timeout, retries once, and falls
// back to the fixed apology text. Responder failures never abort the pipeline.
func (mf *MessageFlowImpl) generateReply(ctx context.Context, persona *models.Persona, fan *models.Fan, recent []*models.Message, summary, content string) string {
	for attempt := 0; attempt < 2; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, utils.ReplyGenerationTimeout)
		reply, err := mf.responder.Generate(callCtx, persona, fan, recent, summary, content)
		cancel()
		if err == nil && reply != nil && strings.TrimSpace(reply.Text) != "" {
			return reply.Text
		}
		log.Printf("reply generation attempt %d failed: %v", attempt+1, err)
	}
	return utils.FallbackReplyText
}

// logSafetyEvent appends an audit entry. Failures are logged and swallowed so
// a broken audit store can never abort the response path.
func (mf *MessageFlowImpl) logSafetyEvent(ctx context.Context, fan *models.Fan, persona *models.Persona, action string, detail map[string]any, success bool, metadata *ClientMetadata) {
	entry := &models.AuditLog{
		Action:     action,
		EntityType: models.EntityTypeFan,
		EntityID:   fan.ID,
		ActorType:  utils.ToPtr(models.ActorTypeFan),
		ActorID:    &fan.ID,
		FanID:      &fan.ID,
		Success:    utils.ToPtr(success),
		CreatedAt:  utils.UTCNow(),
	}
	if persona != nil {
		entry.PersonaID = &persona.ID
		entry.EntityType = models.EntityTypePersona
		entry.EntityID = persona.ID
	}
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			entry.Detail = raw
		}
	}
	if metadata != nil {
		entry.IPAddress = &metadata.IPAddress
		entry.UserAgent = &metadata.UserAgent
		if metadata.RequestID != "" {
			entry.RequestID = &metadata.RequestID
		}
	}

	if err := mf.auditRepo.Save(ctx, entry); err != nil {
		log.Printf("audit write failed for action %s: %v", action, err)
	}
}

// optedOutPreferences merges the opted-out marker into the fan's preference map
func optedOutPreferences(preferences json.RawMessage) (json.RawMessage, error) {
	prefs := map[string]any{}
	if len(preferences) > 0 {
		if err := json.Unmarshal(preferences, &prefs); err != nil {
			return nil, fmt.Errorf("decode preferences: %w", err)
		}
	}
	prefs["opted_out"] = true
	merged, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("encode preferences: %w", err)
	}
	return merged, nil
}

// summarizeExchange keeps a short rolling summary of the latest turn
func summarizeExchange(fanMessage, reply string) string {
	return fmt.Sprintf("Fan: %s | Persona: %s", truncate(fanMessage, 140), truncate(reply, 140))
}

// truncate cuts at the last rune boundary at or before max bytes.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

var positiveWords = []string{"love", "sweet", "great", "happy", "amazing", "wonderful", "miss you", "thank"}
var negativeWords = []string{"hate", "angry", "sad", "terrible", "awful", "upset", "disappointed"}

// deriveSentiment is a cheap keyword heuristic over the fan's message
func deriveSentiment(text string) string {
	lowered := strings.ToLower(text)
	score := 0
	for _, w := range positiveWords {
		if strings.Contains(lowered, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lowered, w) {
			score--
		}
	}
	switch {
	case score > 0:
		return models.SentimentPositive
	case score < 0:
		return models.SentimentNegative
	default:
		return models.SentimentNeutral
	}
}
