package businessflow

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/app/services"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/utils"
)

func makeTestFan(withConsent bool) *models.Fan {
	fan := &models.Fan{
		ID:              1,
		UUID:            uuid.New(),
		PlatformHandle:  "fan_one",
		SpendTier:       models.SpendTierRegular,
		AgeAffirmed:     utils.ToPtr(false),
		RomanticConsent: utils.ToPtr(false),
	}
	if withConsent {
		fan.AgeAffirmed = utils.ToPtr(true)
		fan.RomanticConsent = utils.ToPtr(true)
		fan.ConsentAffirmedAt = utils.UTCNowPtr()
	}
	return fan
}

func makeTestPersona(active bool) *models.Persona {
	return &models.Persona{
		ID:          1,
		UUID:        uuid.New(),
		CreatorID:   1,
		Name:        "aiko",
		DisplayName: "Aiko",
		VoicePrompt: "You are Aiko, a cheerful virtual companion.",
		IsActive:    utils.ToPtr(active),
	}
}

type messageFlowHarness struct {
	flow           MessageFlow
	fanRepo        *fakeFanRepo
	moderationRepo *fakeModerationRepo
	auditRepo      *fakeAuditRepo
}

func newMessageFlowHarness(fan *models.Fan, persona *models.Persona) *messageFlowHarness {
	fanRepo := newFakeFanRepo(fan)
	moderationRepo := newFakeModerationRepo()
	auditRepo := newFakeAuditRepo()

	flow := NewMessageFlow(
		fanRepo,
		newFakePersonaRepo(persona),
		nil, // conversation repo only reached on the respond path
		nil, // message repo only reached on the respond path
		moderationRepo,
		auditRepo,
		NewPatternClassifier(),
		&services.MockResponderService{},
		nil,
	)

	return &messageFlowHarness{
		flow:           flow,
		fanRepo:        fanRepo,
		moderationRepo: moderationRepo,
		auditRepo:      auditRepo,
	}
}

func submitRequest(fan *models.Fan, persona *models.Persona, content string) *dto.SubmitMessageRequest {
	return &dto.SubmitMessageRequest{
		PersonaUUID: persona.UUID.String(),
		FanUUID:     fan.UUID.String(),
		Content:     content,
	}
}

func TestSubmitMessageStopRequest(t *testing.T) {
	fan := makeTestFan(true)
	fan.Boundaries = []string{"no_politics"}
	persona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, persona)
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	result, err := h.flow.SubmitMessage(context.Background(), submitRequest(fan, persona, "hey STOP"), metadata)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, StateStopped, result.State)
	require.NotNil(t, result.Reply)
	assert.Equal(t, utils.StopAcknowledgmentText, *result.Reply)

	// Prior boundaries are overwritten, not appended to.
	require.Len(t, h.fanRepo.stopRequests, 1)
	call := h.fanRepo.stopRequests[0]
	assert.Equal(t, fan.ID, call.fanID)
	assert.Equal(t, []string{models.BoundaryStopAll}, call.boundaries)

	var prefs map[string]any
	require.NoError(t, json.Unmarshal(call.preferences, &prefs))
	assert.Equal(t, true, prefs["opted_out"])

	// One stop_request audit entry, nothing queued.
	assert.Len(t, h.auditRepo.byAction(models.AuditActionStopRequest), 1)
	assert.Empty(t, h.moderationRepo.items)
}

func TestSubmitMessageStopRequestBeatsClassifier(t *testing.T) {
	// "stop" plus text that would otherwise trip a block rule: the opt-out
	// must still be honored.
	fan := makeTestFan(true)
	persona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, persona)

	result, err := h.flow.SubmitMessage(context.Background(),
		submitRequest(fan, persona, "stop or I'll come over"), NewClientMetadata("127.0.0.1", "test-agent"))
	require.NoError(t, err)
	assert.Equal(t, StateStopped, result.State)
	assert.Empty(t, h.moderationRepo.items)
}

func TestSubmitMessageBlocked(t *testing.T) {
	fan := makeTestFan(true)
	persona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, persona)
	content := "let's meet at my hotel, here's my address"

	result, err := h.flow.SubmitMessage(context.Background(), submitRequest(fan, persona, content), NewClientMetadata("127.0.0.1", "test-agent"))
	require.NoError(t, err)

	assert.Equal(t, StateBlocked, result.State)
	require.NotNil(t, result.Reply)
	assert.Equal(t, utils.BlockedNoticeText, *result.Reply)
	assert.Equal(t, models.FlagReasonMeetupSolicitation, result.FlagReason)
	assert.Equal(t, models.SeverityHigh, result.Severity)

	// Exactly one pending queue item with the flagged text copied.
	require.Len(t, h.moderationRepo.items, 1)
	for _, item := range h.moderationRepo.items {
		assert.Equal(t, models.ModerationStatusPending, item.Status)
		assert.Equal(t, content, item.ContentText)
		assert.Equal(t, models.FlagReasonMeetupSolicitation, item.FlagReason)
		assert.Equal(t, models.SeverityHigh, item.Severity)
		require.NotNil(t, item.PersonaID)
		assert.Equal(t, persona.ID, *item.PersonaID)
		require.NotNil(t, item.FanID)
		assert.Equal(t, fan.ID, *item.FanID)
	}

	// One moderation_action entry and nothing else.
	require.Len(t, h.auditRepo.entries, 1)
	assert.Len(t, h.auditRepo.byAction(models.AuditActionModerationAction), 1)
	assert.Empty(t, h.auditRepo.byAction(models.AuditActionEscalationTriggered))
}

func TestSubmitMessageEscalated(t *testing.T) {
	fan := makeTestFan(true)
	persona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, persona)

	result, err := h.flow.SubmitMessage(context.Background(), submitRequest(fan, persona, "i'm 16 btw"), NewClientMetadata("127.0.0.1", "test-agent"))
	require.NoError(t, err)

	assert.Equal(t, StateEscalated, result.State)

	// The fan-facing notice stays generic for escalations.
	require.NotNil(t, result.Reply)
	assert.Equal(t, utils.ReviewNoticeText, *result.Reply)
	assert.Empty(t, result.FlagReason)

	require.Len(t, h.moderationRepo.items, 1)
	for _, item := range h.moderationRepo.items {
		assert.Equal(t, models.FlagReasonMinorSafety, item.FlagReason)
		assert.Equal(t, models.SeverityCritical, item.Severity)
	}

	// Exactly one audit entry for the escalation, tagged escalation_triggered
	// and carrying the verdict detail.
	require.Len(t, h.auditRepo.entries, 1)
	entry := h.auditRepo.entries[0]
	assert.Equal(t, models.AuditActionEscalationTriggered, entry.Action)
	assert.Empty(t, h.auditRepo.byAction(models.AuditActionModerationAction))

	var detail map[string]any
	require.NoError(t, json.Unmarshal(entry.Detail, &detail))
	assert.Equal(t, ActionEscalate, detail["verdict"])
	assert.Equal(t, models.FlagReasonMinorSafety, detail["reason"])
	assert.Equal(t, models.SeverityCritical, detail["severity"])
}

func TestSubmitMessageHeldForReview(t *testing.T) {
	fan := makeTestFan(true)
	persona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, persona)

	result, err := h.flow.SubmitMessage(context.Background(), submitRequest(fan, persona, "send me free pics"), NewClientMetadata("127.0.0.1", "test-agent"))
	require.NoError(t, err)

	assert.Equal(t, StateReview, result.State)
	require.NotNil(t, result.Reply)
	assert.Equal(t, utils.ReviewNoticeText, *result.Reply)
	require.Len(t, h.moderationRepo.items, 1)
}

func TestSubmitMessageConsentGate(t *testing.T) {
	t.Run("PartialConsent", func(t *testing.T) {
		fan := makeTestFan(false)
		fan.AgeAffirmed = utils.ToPtr(true) // romantic consent still off
		persona := makeTestPersona(true)
		h := newMessageFlowHarness(fan, persona)

		result, err := h.flow.SubmitMessage(context.Background(),
			submitRequest(fan, persona, "good morning, how are you?"), NewClientMetadata("127.0.0.1", "test-agent"))
		require.NoError(t, err)

		assert.Equal(t, StateConsentRequired, result.State)
		require.NotNil(t, result.Reply)
		assert.Equal(t, utils.ConsentPromptText, *result.Reply)

		// The gate only prompts; it never mutates the consent record.
		assert.Empty(t, h.fanRepo.consentCalls)
		assert.Empty(t, h.moderationRepo.items)
		assert.Len(t, h.auditRepo.byAction(models.AuditActionConsentPromptIssued), 1)
	})

	t.Run("FlaggedContentSkipsConsentPrompt", func(t *testing.T) {
		// Classification runs before the consent gate: a fan without consent
		// still gets the block notice, not the consent prompt.
		fan := makeTestFan(false)
		persona := makeTestPersona(true)
		h := newMessageFlowHarness(fan, persona)

		result, err := h.flow.SubmitMessage(context.Background(),
			submitRequest(fan, persona, "come over tonight"), NewClientMetadata("127.0.0.1", "test-agent"))
		require.NoError(t, err)

		assert.Equal(t, StateBlocked, result.State)
		assert.Empty(t, h.auditRepo.byAction(models.AuditActionConsentPromptIssued))
	})
}

func TestSubmitMessageLookupFailures(t *testing.T) {
	fan := makeTestFan(true)
	activePersona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, activePersona)
	metadata := NewClientMetadata("127.0.0.1", "test-agent")

	t.Run("EmptyContent", func(t *testing.T) {
		_, err := h.flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
			PersonaUUID: activePersona.UUID.String(),
			FanUUID:     fan.UUID.String(),
			Content:     "   ",
		}, metadata)
		require.Error(t, err)
		assert.True(t, IsMessageContentRequired(err))
	})

	t.Run("FanNotFound", func(t *testing.T) {
		_, err := h.flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
			PersonaUUID: activePersona.UUID.String(),
			FanUUID:     uuid.New().String(),
			Content:     "hello",
		}, metadata)
		require.Error(t, err)
		assert.True(t, IsFanNotFound(err))
	})

	t.Run("PersonaNotFound", func(t *testing.T) {
		_, err := h.flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
			PersonaUUID: uuid.New().String(),
			FanUUID:     fan.UUID.String(),
			Content:     "hello",
		}, metadata)
		require.Error(t, err)
		assert.True(t, IsPersonaNotFound(err))
	})

	t.Run("PersonaInactive", func(t *testing.T) {
		inactive := makeTestPersona(false)
		hh := newMessageFlowHarness(fan, inactive)
		_, err := hh.flow.SubmitMessage(context.Background(), submitRequest(fan, inactive, "hello"), metadata)
		require.Error(t, err)
		assert.True(t, IsPersonaInactive(err))
	})
}

func TestSubmitMessageOptedOutFan(t *testing.T) {
	// Once a stop request has been applied, every later message is refused
	// before classification and nothing is queued or audited.
	fan := makeTestFan(true)
	fan.Boundaries = []string{models.BoundaryStopAll}
	persona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, persona)

	_, err := h.flow.SubmitMessage(context.Background(),
		submitRequest(fan, persona, "hey, are you there?"), NewClientMetadata("127.0.0.1", "test-agent"))
	require.Error(t, err)
	assert.True(t, IsFanOptedOut(err))

	assert.Empty(t, h.moderationRepo.items)
	assert.Empty(t, h.auditRepo.entries)
	assert.Empty(t, h.fanRepo.stopRequests)
}

func TestSubmitMessageQueueWriteFailureStillReturnsVerdict(t *testing.T) {
	fan := makeTestFan(true)
	persona := makeTestPersona(true)
	h := newMessageFlowHarness(fan, persona)
	h.moderationRepo.failSave = assert.AnError

	result, err := h.flow.SubmitMessage(context.Background(),
		submitRequest(fan, persona, "come over tonight"), NewClientMetadata("127.0.0.1", "test-agent"))
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, result.State)
}

func TestGenerateReply(t *testing.T) {
	fan := makeTestFan(true)
	persona := makeTestPersona(true)

	t.Run("RetrySucceeds", func(t *testing.T) {
		mock := &services.MockResponderService{
			FailCount: 1,
			Reply:     &services.PersonaReply{Text: "hello there"},
		}
		mf := &MessageFlowImpl{responder: mock}

		reply := mf.generateReply(context.Background(), persona, fan, nil, "", "hi")
		assert.Equal(t, "hello there", reply)
		assert.Equal(t, 2, mock.Calls())
	})

	t.Run("FallbackAfterRetries", func(t *testing.T) {
		mock := &services.MockResponderService{FailCount: 2}
		mf := &MessageFlowImpl{responder: mock}

		reply := mf.generateReply(context.Background(), persona, fan, nil, "", "hi")
		assert.Equal(t, utils.FallbackReplyText, reply)
		assert.Equal(t, 2, mock.Calls())
	})

	t.Run("EmptyReplyTreatedAsFailure", func(t *testing.T) {
		mock := &services.MockResponderService{Reply: &services.PersonaReply{Text: "   "}}
		mf := &MessageFlowImpl{responder: mock}

		reply := mf.generateReply(context.Background(), persona, fan, nil, "", "hi")
		assert.Equal(t, utils.FallbackReplyText, reply)
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde...", truncate("abcdefgh", 5))

	// A multibyte rune straddling the cut is dropped whole so the result
	// stays valid UTF-8.
	assert.Equal(t, "ab日...", truncate("ab日本語", 5))
	assert.Equal(t, "ab...", truncate("ab日本語", 4)) // cut lands mid-rune
	assert.True(t, utf8.ValidString(truncate(strings.Repeat("é", 100), 7)))
}

func TestDeriveSentiment(t *testing.T) {
	assert.Equal(t, models.SentimentPositive, deriveSentiment("I love this, thank you!"))
	assert.Equal(t, models.SentimentNegative, deriveSentiment("I hate waiting, this is awful"))
	assert.Equal(t, models.SentimentNeutral, deriveSentiment("what time is it"))
	assert.Equal(t, models.SentimentNeutral, deriveSentiment("I love it but I also hate it"))
}
