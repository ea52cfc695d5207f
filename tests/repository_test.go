// Package tests contains integration tests for the repository layer
package tests

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/repository"
	testingutil "github.com/kitsune-chat/Kitsune/testing"
	"github.com/kitsune-chat/Kitsune/utils"
)

func TestModerationQueueRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		moderationRepo := repository.NewModerationQueueRepository(testDB.DB)
		ctx := context.Background()

		creator, err := fixtures.CreateTestCreator()
		require.NoError(t, err)
		persona, err := fixtures.CreateTestPersona(creator.ID)
		require.NoError(t, err)
		fan, err := fixtures.CreateTestFan(true)
		require.NoError(t, err)

		t.Run("ResolveIsCompareAndSet", func(t *testing.T) {
			item, err := fixtures.CreateTestModerationItem(&persona.ID, &fan.ID, models.FlagReasonProfanity, models.SeverityHigh)
			require.NoError(t, err)

			affected, err := moderationRepo.Resolve(ctx, item.ID, models.ModerationStatusApproved, creator.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.Equal(t, int64(1), affected)

			// Second resolution attempt writes nothing.
			affected, err = moderationRepo.Resolve(ctx, item.ID, models.ModerationStatusBlocked, creator.ID, utils.UTCNow())
			require.NoError(t, err)
			assert.Equal(t, int64(0), affected)

			stored, err := moderationRepo.ByID(ctx, item.ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, models.ModerationStatusApproved, stored.Status)
			require.NotNil(t, stored.ReviewerID)
			assert.Equal(t, creator.ID, *stored.ReviewerID)
			require.NotNil(t, stored.ReviewedAt)
		})

		t.Run("CountByStatusOnBucketsByUTCDay", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			now := utils.UTCNow()
			yesterday := now.Add(-24 * time.Hour)

			for _, item := range []*models.ModerationQueueItem{
				{UUID: uuid.New(), ContentText: "a", FlagReason: models.FlagReasonProfanity, Severity: models.SeverityHigh, Status: models.ModerationStatusPending, CreatedAt: now},
				{UUID: uuid.New(), ContentText: "b", FlagReason: models.FlagReasonProfanity, Severity: models.SeverityHigh, Status: models.ModerationStatusPending, CreatedAt: now},
				{UUID: uuid.New(), ContentText: "c", FlagReason: models.FlagReasonProfanity, Severity: models.SeverityHigh, Status: models.ModerationStatusBlocked, CreatedAt: now},
				{UUID: uuid.New(), ContentText: "d", FlagReason: models.FlagReasonProfanity, Severity: models.SeverityHigh, Status: models.ModerationStatusApproved, CreatedAt: yesterday},
			} {
				require.NoError(t, moderationRepo.Save(ctx, item))
			}

			counts, err := moderationRepo.CountByStatusOn(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, int64(2), counts[models.ModerationStatusPending])
			assert.Equal(t, int64(1), counts[models.ModerationStatusBlocked])
			assert.Zero(t, counts[models.ModerationStatusApproved])

			counts, err = moderationRepo.CountByStatusOn(ctx, yesterday)
			require.NoError(t, err)
			assert.Equal(t, int64(1), counts[models.ModerationStatusApproved])
		})

		t.Run("ScoreCounts", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			now := utils.UTCNow()
			for _, item := range []*models.ModerationQueueItem{
				{UUID: uuid.New(), ContentText: "a", FlagReason: models.FlagReasonProfanity, Severity: models.SeverityMedium, Status: models.ModerationStatusApproved, CreatedAt: now},
				{UUID: uuid.New(), ContentText: "b", FlagReason: models.FlagReasonViolence, Severity: models.SeverityHigh, Status: models.ModerationStatusBlocked, CreatedAt: now},
				{UUID: uuid.New(), ContentText: "c", FlagReason: models.FlagReasonMinorSafety, Severity: models.SeverityCritical, Status: models.ModerationStatusPending, CreatedAt: now},
			} {
				require.NoError(t, moderationRepo.Save(ctx, item))
			}

			total, blocked, critical, err := moderationRepo.ScoreCounts(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			assert.Equal(t, int64(1), blocked)
			assert.Equal(t, int64(1), critical)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestFanRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		fanRepo := repository.NewFanRepository(testDB.DB)
		ctx := context.Background()

		t.Run("UpdateConsentTouchesOnlyConsentColumns", func(t *testing.T) {
			fan, err := fixtures.CreateTestFan(false)
			require.NoError(t, err)

			affirmedAt := utils.UTCNow()
			require.NoError(t, fanRepo.UpdateConsent(ctx, fan.ID, true, true, affirmedAt))

			stored, err := fanRepo.ByID(ctx, fan.ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.True(t, stored.HasFullConsent())
			require.NotNil(t, stored.ConsentAffirmedAt)
			assert.Equal(t, fan.PlatformHandle, stored.PlatformHandle)
			assert.Empty(t, stored.Boundaries)
		})

		t.Run("ApplyStopRequestPreservesConsent", func(t *testing.T) {
			fan, err := fixtures.CreateTestFan(true)
			require.NoError(t, err)

			preferences, err := json.Marshal(map[string]any{"opted_out": true})
			require.NoError(t, err)
			require.NoError(t, fanRepo.ApplyStopRequest(ctx, fan.ID, []string{models.BoundaryStopAll}, preferences))

			stored, err := fanRepo.ByID(ctx, fan.ID)
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, []string{models.BoundaryStopAll}, []string(stored.Boundaries))
			assert.True(t, stored.HasFullConsent())
			assert.True(t, stored.HasOptedOut())
		})

		t.Run("ByUUIDMissingReturnsNil", func(t *testing.T) {
			fan, err := fanRepo.ByUUID(ctx, uuid.New().String())
			require.NoError(t, err)
			assert.Nil(t, fan)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAuditLogRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		auditRepo := repository.NewAuditLogRepository(testDB.DB)
		ctx := context.Background()

		creator, err := fixtures.CreateTestCreator()
		require.NoError(t, err)
		persona, err := fixtures.CreateTestPersona(creator.ID)
		require.NoError(t, err)
		fan, err := fixtures.CreateTestFan(true)
		require.NoError(t, err)

		now := utils.UTCNow()
		start := now.Add(-time.Hour)
		end := now.Add(time.Hour)

		saveVerdictEntry := func(action, verdict string, at time.Time) {
			detail, err := json.Marshal(map[string]any{"verdict": verdict, "reason": models.FlagReasonProfanity, "severity": models.SeverityHigh})
			require.NoError(t, err)
			require.NoError(t, auditRepo.Save(ctx, &models.AuditLog{
				Action:     action,
				EntityType: models.EntityTypePersona,
				EntityID:   persona.ID,
				ActorType:  utils.ToPtr(models.ActorTypeFan),
				ActorID:    &fan.ID,
				PersonaID:  &persona.ID,
				FanID:      &fan.ID,
				Detail:     detail,
				Success:    utils.ToPtr(true),
				CreatedAt:  at,
			}))
		}

		saveVerdictEntry(models.AuditActionModerationAction, "block", now)
		saveVerdictEntry(models.AuditActionModerationAction, "block", now)
		saveVerdictEntry(models.AuditActionEscalationTriggered, "escalate", now)
		saveVerdictEntry(models.AuditActionModerationAction, "review", now)
		saveVerdictEntry(models.AuditActionModerationAction, "block", now.Add(-2*time.Hour)) // outside the window

		t.Run("CountVerdictsBetween", func(t *testing.T) {
			// Escalations live under their own audit action but still count
			// toward the verdict grouping.
			verdicts, err := auditRepo.CountVerdictsBetween(ctx, &persona.ID, start, end)
			require.NoError(t, err)
			assert.Equal(t, int64(2), verdicts["block"])
			assert.Equal(t, int64(1), verdicts["escalate"])
			assert.Equal(t, int64(1), verdicts["review"])
		})

		t.Run("CountByActionBetween", func(t *testing.T) {
			count, err := auditRepo.CountByActionBetween(ctx, &persona.ID, models.AuditActionModerationAction, start, end)
			require.NoError(t, err)
			assert.Equal(t, int64(3), count)

			// The persona scope excludes entries for other personas.
			other, err := fixtures.CreateTestPersona(creator.ID)
			require.NoError(t, err)
			count, err = auditRepo.CountByActionBetween(ctx, &other.ID, models.AuditActionModerationAction, start, end)
			require.NoError(t, err)
			assert.Zero(t, count)
		})

		t.Run("ListSafetyEventsBetween", func(t *testing.T) {
			// A non-safety action inside the window must not appear.
			require.NoError(t, auditRepo.Save(ctx, &models.AuditLog{
				Action:     models.AuditActionAIConversation,
				EntityType: models.EntityTypePersona,
				EntityID:   persona.ID,
				PersonaID:  &persona.ID,
				FanID:      &fan.ID,
				Success:    utils.ToPtr(true),
				CreatedAt:  now,
			}))

			events, err := auditRepo.ListSafetyEventsBetween(ctx, &persona.ID, start, end, 50)
			require.NoError(t, err)
			require.Len(t, events, 4)
			for _, event := range events {
				assert.NotEqual(t, models.AuditActionAIConversation, event.Action)
			}
		})

		t.Run("ListSafetyEventsBetweenUnscoped", func(t *testing.T) {
			// Without a persona filter the window still applies: the entry
			// two hours back stays out.
			events, err := auditRepo.ListSafetyEventsBetween(ctx, nil, start, end, 50)
			require.NoError(t, err)
			require.Len(t, events, 4)
			for _, event := range events {
				assert.False(t, event.CreatedAt.Before(start))
			}
		})

		return nil
	})
	require.NoError(t, err)
}
