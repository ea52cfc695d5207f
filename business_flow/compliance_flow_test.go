package businessflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/utils"
)

func newComplianceFlowHarness(persona *models.Persona) (ComplianceFlow, *fakeAuditRepo) {
	auditRepo := newFakeAuditRepo()
	personaRepo := newFakePersonaRepo()
	if persona != nil {
		personaRepo = newFakePersonaRepo(persona)
	}
	return NewComplianceFlow(auditRepo, personaRepo), auditRepo
}

func TestComplianceReport(t *testing.T) {
	flow, auditRepo := newComplianceFlowHarness(nil)
	auditRepo.verdictCounts = map[string]int64{
		ActionBlock:    2,
		ActionEscalate: 1,
		ActionReview:   3,
	}
	auditRepo.actionCounts = map[string]int64{
		models.AuditActionAIConversation:      10,
		models.AuditActionStopRequest:         2,
		models.AuditActionConsentPromptIssued: 4,
	}
	auditRepo.safetyEvents = []*models.AuditLog{
		{
			Action:    models.AuditActionEscalationTriggered,
			EntityID:  1,
			Success:   utils.ToPtr(true),
			CreatedAt: utils.UTCNow(),
		},
	}

	report, err := flow.Report(context.Background(), &dto.ComplianceReportRequest{})
	require.NoError(t, err)

	// 10 conversations plus 6 moderated messages, 2 blocked, 1 escalated.
	assert.Equal(t, int64(16), report.TotalEvents)
	assert.InDelta(t, ComputeComplianceScore(16, 2, 1), report.Score, 0.001)
	assert.Equal(t, int64(1), report.Escalations)
	assert.Equal(t, int64(2), report.StopRequests)
	assert.Equal(t, int64(4), report.ConsentPrompts)
	assert.Equal(t, int64(3), report.VerdictCounts[ActionReview])

	require.Len(t, report.KeyEvents, 1)
	assert.Equal(t, models.AuditActionEscalationTriggered, report.KeyEvents[0].Action)
	assert.True(t, report.KeyEvents[0].Success)
}

func TestComplianceReportKeyEventsHonorWindow(t *testing.T) {
	// Key events outside the requested window never appear, with or without
	// a persona filter.
	flow, auditRepo := newComplianceFlowHarness(nil)
	end := utils.UTCNow()
	start := end.Add(-24 * time.Hour)

	auditRepo.safetyEvents = []*models.AuditLog{
		{
			Action:    models.AuditActionEscalationTriggered,
			EntityID:  1,
			Success:   utils.ToPtr(true),
			CreatedAt: end.Add(-time.Hour),
		},
		{
			Action:    models.AuditActionEscalationTriggered,
			EntityID:  2,
			Success:   utils.ToPtr(true),
			CreatedAt: end.Add(-48 * time.Hour), // before the window
		},
		{
			Action:    models.AuditActionStopRequest,
			EntityID:  3,
			Success:   utils.ToPtr(true),
			CreatedAt: end.Add(time.Hour), // after the window
		},
	}

	report, err := flow.Report(context.Background(), &dto.ComplianceReportRequest{
		StartDate: &start,
		EndDate:   &end,
	})
	require.NoError(t, err)
	require.Len(t, report.KeyEvents, 1)
	assert.Equal(t, models.AuditActionEscalationTriggered, report.KeyEvents[0].Action)
}

func TestComplianceReportDefaultWindow(t *testing.T) {
	flow, _ := newComplianceFlowHarness(nil)

	report, err := flow.Report(context.Background(), &dto.ComplianceReportRequest{})
	require.NoError(t, err)

	window := report.EndDate.Sub(report.StartDate)
	assert.Equal(t, 30*24*time.Hour, window)
	assert.InDelta(t, 100.0, report.Score, 0.001)
	assert.Zero(t, report.TotalEvents)
}

func TestComplianceReportWindowValidation(t *testing.T) {
	flow, _ := newComplianceFlowHarness(nil)
	start := utils.UTCNow()
	end := start.Add(-time.Hour)

	_, err := flow.Report(context.Background(), &dto.ComplianceReportRequest{
		StartDate: &start,
		EndDate:   &end,
	})
	require.Error(t, err)
	assert.True(t, IsStartDateAfterEndDate(err))
}

func TestComplianceReportPersonaScope(t *testing.T) {
	persona := makeTestPersona(true)
	flow, auditRepo := newComplianceFlowHarness(persona)
	auditRepo.safetyEvents = []*models.AuditLog{
		{
			Action:    models.AuditActionModerationAction,
			PersonaID: &persona.ID,
			Success:   utils.ToPtr(true),
			CreatedAt: utils.UTCNow(),
		},
		{
			Action:    models.AuditActionModerationAction,
			PersonaID: utils.ToPtr(persona.ID + 1),
			Success:   utils.ToPtr(true),
			CreatedAt: utils.UTCNow(),
		},
	}

	t.Run("KnownPersona", func(t *testing.T) {
		report, err := flow.Report(context.Background(), &dto.ComplianceReportRequest{
			PersonaUUID: utils.ToPtr(persona.UUID.String()),
		})
		require.NoError(t, err)
		require.Len(t, report.KeyEvents, 1)
		assert.Equal(t, models.AuditActionModerationAction, report.KeyEvents[0].Action)
	})

	t.Run("UnknownPersona", func(t *testing.T) {
		_, err := flow.Report(context.Background(), &dto.ComplianceReportRequest{
			PersonaUUID: utils.ToPtr(uuid.New().String()),
		})
		require.Error(t, err)
		assert.True(t, IsPersonaNotFound(err))
	})
}

func TestExportReportXLSX(t *testing.T) {
	flow, auditRepo := newComplianceFlowHarness(nil)
	auditRepo.verdictCounts = map[string]int64{ActionBlock: 1}
	auditRepo.actionCounts = map[string]int64{models.AuditActionAIConversation: 5}

	filename, content, err := flow.ExportReportXLSX(context.Background(), &dto.ComplianceReportRequest{})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filename, "compliance_report_"))
	assert.True(t, strings.HasSuffix(filename, ".xlsx"))
	assert.NotEmpty(t, content)
}
