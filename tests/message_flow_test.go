// Package tests contains integration tests for the message pipeline
package tests

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/app/services"
	businessflow "github.com/kitsune-chat/Kitsune/business_flow"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/repository"
	testingutil "github.com/kitsune-chat/Kitsune/testing"
	"github.com/kitsune-chat/Kitsune/utils"
)

func newMessageFlowForTest(testDB *testingutil.TestDB, responder services.ResponderService) businessflow.MessageFlow {
	return businessflow.NewMessageFlow(
		repository.NewFanRepository(testDB.DB),
		repository.NewPersonaRepository(testDB.DB),
		repository.NewConversationRepository(testDB.DB),
		repository.NewMessageRepository(testDB.DB),
		repository.NewModerationQueueRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		businessflow.NewPatternClassifier(),
		responder,
		testDB.DB,
	)
}

func TestMessagePipeline(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		fanRepo := repository.NewFanRepository(testDB.DB)
		convRepo := repository.NewConversationRepository(testDB.DB)
		messageRepo := repository.NewMessageRepository(testDB.DB)
		moderationRepo := repository.NewModerationQueueRepository(testDB.DB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)

		creator, err := fixtures.CreateTestCreator()
		require.NoError(t, err)
		persona, err := fixtures.CreateTestPersona(creator.ID)
		require.NoError(t, err)

		metadata := businessflow.NewClientMetadata("127.0.0.1", "Test User Agent")

		t.Run("SuccessfulReply", func(t *testing.T) {
			fan, err := fixtures.CreateTestFan(true)
			require.NoError(t, err)

			flow := newMessageFlowForTest(testDB, &services.MockResponderService{
				Reply: &services.PersonaReply{Text: "aww, it was lovely, thanks for asking!"},
			})

			result, err := flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
				PersonaUUID: persona.UUID.String(),
				FanUUID:     fan.UUID.String(),
				Content:     "hey, how was your day?",
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.Equal(t, businessflow.StateResponded, result.State)
			require.NotNil(t, result.Reply)
			assert.Equal(t, "aww, it was lovely, thanks for asking!", *result.Reply)
			require.NotEmpty(t, result.ConversationUUID)

			// Both sides of the exchange are persisted.
			conversation, err := convRepo.ByUUID(context.Background(), result.ConversationUUID)
			require.NoError(t, err)
			require.NotNil(t, conversation)
			assert.NotEmpty(t, conversation.Summary)
			assert.NotEmpty(t, conversation.Sentiment)

			messages, err := messageRepo.RecentByConversation(context.Background(), conversation.ID, 10)
			require.NoError(t, err)
			require.Len(t, messages, 2)
			assert.Equal(t, models.MessageSenderFan, messages[0].Sender)
			assert.Equal(t, "hey, how was your day?", messages[0].Content)
			assert.Equal(t, models.MessageSenderAI, messages[1].Sender)

			// A second message reuses the same conversation.
			result2, err := flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
				PersonaUUID: persona.UUID.String(),
				FanUUID:     fan.UUID.String(),
				Content:     "what are you up to?",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, result.ConversationUUID, result2.ConversationUUID)
		})

		t.Run("FallbackReplyWhenResponderFails", func(t *testing.T) {
			fan, err := fixtures.CreateTestFan(true)
			require.NoError(t, err)

			flow := newMessageFlowForTest(testDB, &services.MockResponderService{FailCount: 2})

			result, err := flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
				PersonaUUID: persona.UUID.String(),
				FanUUID:     fan.UUID.String(),
				Content:     "good morning!",
			}, metadata)
			require.NoError(t, err)

			// A broken responder degrades the reply, never the pipeline.
			assert.Equal(t, businessflow.StateResponded, result.State)
			require.NotNil(t, result.Reply)
			assert.Equal(t, utils.FallbackReplyText, *result.Reply)
		})

		t.Run("StopRequestPersistsOptOut", func(t *testing.T) {
			fan, err := fixtures.CreateTestFan(true)
			require.NoError(t, err)

			flow := newMessageFlowForTest(testDB, &services.MockResponderService{})

			result, err := flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
				PersonaUUID: persona.UUID.String(),
				FanUUID:     fan.UUID.String(),
				Content:     "STOP",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, businessflow.StateStopped, result.State)

			stored, err := fanRepo.ByUUID(context.Background(), fan.UUID.String())
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, []string{models.BoundaryStopAll}, []string(stored.Boundaries))

			var prefs map[string]any
			require.NoError(t, json.Unmarshal(stored.Preferences, &prefs))
			assert.Equal(t, true, prefs["opted_out"])

			// Consent survives the opt-out untouched.
			assert.True(t, stored.HasFullConsent())

			// Later messages from the fan are refused outright.
			_, err = flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
				PersonaUUID: persona.UUID.String(),
				FanUUID:     fan.UUID.String(),
				Content:     "hello again!",
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsFanOptedOut(err))
		})

		t.Run("FlaggedMessageQueuedAndAudited", func(t *testing.T) {
			fan, err := fixtures.CreateTestFan(true)
			require.NoError(t, err)

			flow := newMessageFlowForTest(testDB, &services.MockResponderService{})

			result, err := flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
				PersonaUUID: persona.UUID.String(),
				FanUUID:     fan.UUID.String(),
				Content:     "let's meet up at my place",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, businessflow.StateBlocked, result.State)

			pending := models.ModerationStatusPending
			items, err := moderationRepo.List(context.Background(), &pending, 50, 0)
			require.NoError(t, err)

			var queued *models.ModerationQueueItem
			for _, item := range items {
				if item.FanID != nil && *item.FanID == fan.ID {
					queued = item
				}
			}
			require.NotNil(t, queued)
			assert.Equal(t, "let's meet up at my place", queued.ContentText)
			assert.Equal(t, models.FlagReasonMeetupSolicitation, queued.FlagReason)
			assert.Equal(t, models.SeverityHigh, queued.Severity)

			entries, err := auditRepo.ListByEntity(context.Background(), models.EntityTypePersona, persona.ID, 100, 0)
			require.NoError(t, err)
			found := false
			for _, entry := range entries {
				if entry.Action == models.AuditActionModerationAction && entry.FanID != nil && *entry.FanID == fan.ID {
					found = true
				}
			}
			assert.True(t, found)
		})

		t.Run("ConsentRequiredBeforeReply", func(t *testing.T) {
			fan, err := fixtures.CreateTestFan(false)
			require.NoError(t, err)

			flow := newMessageFlowForTest(testDB, &services.MockResponderService{})

			result, err := flow.SubmitMessage(context.Background(), &dto.SubmitMessageRequest{
				PersonaUUID: persona.UUID.String(),
				FanUUID:     fan.UUID.String(),
				Content:     "hello!",
			}, metadata)
			require.NoError(t, err)

			assert.Equal(t, businessflow.StateConsentRequired, result.State)
			require.NotNil(t, result.Reply)
			assert.Equal(t, utils.ConsentPromptText, *result.Reply)
			assert.Empty(t, result.ConversationUUID)
		})

		return nil
	})
	require.NoError(t, err)
}
