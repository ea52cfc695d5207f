package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kitsune-chat/Kitsune/app/dto"
	"github.com/kitsune-chat/Kitsune/models"
	"github.com/kitsune-chat/Kitsune/repository"
	"github.com/kitsune-chat/Kitsune/utils"
)

const (
	defaultReportWindow = 30 * 24 * time.Hour
	reportKeyEventLimit = 50
)

// ComplianceFlow produces audit-scoped compliance reports. The report score
// uses the same formula as the queue score but over audit-trail populations;
// the two read paths are kept separate on purpose.
type ComplianceFlow interface {
	Report(ctx context.Context, request *dto.ComplianceReportRequest) (*dto.ComplianceReportResponse, error)
	ExportReportXLSX(ctx context.Context, request *dto.ComplianceReportRequest) (string, []byte, error)
}

// ComplianceFlowImpl implements the compliance reporting flow
type ComplianceFlowImpl struct {
	auditRepo   repository.AuditLogRepository
	personaRepo repository.PersonaRepository
}

// NewComplianceFlow creates a new compliance flow instance
func NewComplianceFlow(auditRepo repository.AuditLogRepository, personaRepo repository.PersonaRepository) ComplianceFlow {
	return &ComplianceFlowImpl{
		auditRepo:   auditRepo,
		personaRepo: personaRepo,
	}
}

// Report aggregates the audit trail over the requested window
func (cf *ComplianceFlowImpl) Report(ctx context.Context, request *dto.ComplianceReportRequest) (*dto.ComplianceReportResponse, error) {
	start, end, err := reportWindow(request)
	if err != nil {
		return nil, err
	}

	var personaID *uint
	if request.PersonaUUID != nil {
		persona, err := cf.personaRepo.ByUUID(ctx, *request.PersonaUUID)
		if err != nil {
			return nil, NewBusinessError("PERSONA_LOOKUP_FAILED", "Failed to look up persona", err)
		}
		if persona == nil {
			return nil, NewBusinessError("PERSONA_NOT_FOUND", "Persona not found", ErrPersonaNotFound)
		}
		personaID = &persona.ID
	}

	verdicts, err := cf.auditRepo.CountVerdictsBetween(ctx, personaID, start, end)
	if err != nil {
		return nil, NewBusinessError("COMPLIANCE_REPORT_FAILED", "Failed to count moderation verdicts", err)
	}

	conversations, err := cf.auditRepo.CountByActionBetween(ctx, personaID, models.AuditActionAIConversation, start, end)
	if err != nil {
		return nil, NewBusinessError("COMPLIANCE_REPORT_FAILED", "Failed to count conversations", err)
	}

	stopRequests, err := cf.auditRepo.CountByActionBetween(ctx, personaID, models.AuditActionStopRequest, start, end)
	if err != nil {
		return nil, NewBusinessError("COMPLIANCE_REPORT_FAILED", "Failed to count stop requests", err)
	}

	consentPrompts, err := cf.auditRepo.CountByActionBetween(ctx, personaID, models.AuditActionConsentPromptIssued, start, end)
	if err != nil {
		return nil, NewBusinessError("COMPLIANCE_REPORT_FAILED", "Failed to count consent prompts", err)
	}

	var moderated int64
	for _, count := range verdicts {
		moderated += count
	}
	blocked := verdicts[ActionBlock]
	escalated := verdicts[ActionEscalate]
	total := conversations + moderated

	keyEvents, err := cf.keyEvents(ctx, personaID, start, end)
	if err != nil {
		return nil, NewBusinessError("COMPLIANCE_REPORT_FAILED", "Failed to load key events", err)
	}

	return &dto.ComplianceReportResponse{
		Message:        "Compliance report generated",
		StartDate:      start,
		EndDate:        end,
		Score:          ComputeComplianceScore(total, blocked, escalated),
		TotalEvents:    total,
		VerdictCounts:  verdicts,
		Escalations:    escalated,
		StopRequests:   stopRequests,
		ConsentPrompts: consentPrompts,
		KeyEvents:      keyEvents,
	}, nil
}

// ExportReportXLSX renders the report as a two-sheet workbook
func (cf *ComplianceFlowImpl) ExportReportXLSX(ctx context.Context, request *dto.ComplianceReportRequest) (string, []byte, error) {
	report, err := cf.Report(ctx, request)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	summarySheet := "Summary"
	xl.SetSheetName(xl.GetSheetName(0), summarySheet)

	summaryRows := [][]string{
		{"start_date", report.StartDate.Format(time.RFC3339)},
		{"end_date", report.EndDate.Format(time.RFC3339)},
		{"compliance_score", strconv.FormatFloat(report.Score, 'f', 2, 64)},
		{"total_events", strconv.FormatInt(report.TotalEvents, 10)},
		{"escalations", strconv.FormatInt(report.Escalations, 10)},
		{"stop_requests", strconv.FormatInt(report.StopRequests, 10)},
		{"consent_prompts", strconv.FormatInt(report.ConsentPrompts, 10)},
	}
	for verdict, count := range report.VerdictCounts {
		summaryRows = append(summaryRows, []string{"verdict_" + verdict, strconv.FormatInt(count, 10)})
	}
	for ri, row := range summaryRows {
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+1)
		_ = xl.SetSheetRow(summarySheet, cellRef, &row)
	}

	eventSheet := "Key Events"
	_, _ = xl.NewSheet(eventSheet)
	header := []string{"action", "success", "detail", "created_at"}
	_ = xl.SetSheetRow(eventSheet, "A1", &header)
	for ri, event := range report.KeyEvents {
		detail := ""
		if event.Detail != nil {
			if bs, err := json.Marshal(event.Detail); err == nil {
				detail = string(bs)
			}
		}
		record := []string{
			event.Action,
			strconv.FormatBool(event.Success),
			detail,
			event.CreatedAt,
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(eventSheet, cellRef, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("compliance_report_%s_%s.xlsx",
		report.StartDate.Format("20060102"), report.EndDate.Format("20060102"))
	return filename, buf.Bytes(), nil
}

func (cf *ComplianceFlowImpl) keyEvents(ctx context.Context, personaID *uint, start, end time.Time) ([]dto.SafetyEventDTO, error) {
	entries, err := cf.auditRepo.ListSafetyEventsBetween(ctx, personaID, start, end, reportKeyEventLimit)
	if err != nil {
		return nil, err
	}

	out := make([]dto.SafetyEventDTO, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ToSafetyEventDTO(*entry))
	}
	return out, nil
}

func reportWindow(request *dto.ComplianceReportRequest) (time.Time, time.Time, error) {
	end := utils.UTCNow()
	if request.EndDate != nil {
		end = utils.TimeToUTC(*request.EndDate)
	}
	start := end.Add(-defaultReportWindow)
	if request.StartDate != nil {
		start = utils.TimeToUTC(*request.StartDate)
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, NewBusinessError("INVALID_REPORT_WINDOW", "Invalid report window", ErrStartDateAfterEndDate)
	}
	return start, end, nil
}
