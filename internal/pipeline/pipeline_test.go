package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/blob"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/config"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/store"
)

var payfileHeader = []string{"Employee ID", "Forename", "Surname", "Unit Days", "Day Rate", "Amount", "VAT", "Total Hours", "Notes"}

type testEnv struct {
	pipeline *Pipeline
	store    store.Store
	blobDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "paytrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.SeedReference(ctx, referenceSeed()))

	blobDir := t.TempDir()
	bs, err := blob.NewLocal(blobDir)
	require.NoError(t, err)

	cfg := &config.Config{
		Rules: config.RulesConfig{
			VATRate:              0.20,
			OvertimeMultiplier:   1.5,
			OvertimeTolerancePct: 2.0,
			RateChangeAlertPct:   5.0,
			NameMatchThreshold:   85,
		},
		Pipeline: config.PipelineConfig{ValidationWorkers: 2, MaxRetries: 2},
	}

	return &testEnv{
		pipeline: New(cfg, st, bs, zap.NewNop()),
		store:    st,
		blobDir:  blobDir,
	}
}

func referenceSeed() *store.SeedData {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &store.SeedData{
		Intermediaries: []model.Intermediary{
			{ID: "int-a", Code: "PAY0001", Name: "Alpha Umbrella Ltd"},
		},
		PayPeriods: []model.PayPeriod{
			{ID: "p-2025-07", PeriodNumber: 7, Year: 2025,
				WorkStartDate:      time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
				WorkEndDate:        time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
				SubmissionDeadline: time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)},
			{ID: "p-2025-08", PeriodNumber: 8, Year: 2025,
				WorkStartDate:      time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
				WorkEndDate:        time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
				SubmissionDeadline: time.Date(2025, 9, 5, 0, 0, 0, 0, time.UTC)},
		},
		Contractors: []model.Contractor{
			{ID: "c1", FirstName: "Jonathan", LastName: "Mays", StandardRate: 450},
			{ID: "c2", FirstName: "Anna", LastName: "Smith", StandardRate: 380},
			{ID: "c3", FirstName: "Sarah", LastName: "Connor"},
		},
		Associations: []model.Association{
			{ID: "a1", ContractorID: "c1", IntermediaryID: "int-a", EmployeeID: "EMP001", ValidFrom: from},
			{ID: "a2", ContractorID: "c2", IntermediaryID: "int-a", EmployeeID: "EMP002", ValidFrom: from},
			{ID: "a3", ContractorID: "c3", IntermediaryID: "int-a", EmployeeID: "EMP003", ValidFrom: from},
		},
		PermanentStaff: []string{"Sarah Connor"},
	}
}

// writeWorkbook drops an xlsx with the standard header into the blob dir.
func (e *testEnv) writeWorkbook(t *testing.T, filename string, rows [][]string) {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pay Data")
	require.NoError(t, err)

	hr := sheet.AddRow()
	for _, h := range payfileHeader {
		hr.AddCell().SetString(h)
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, c := range row {
			r.AddCell().SetString(c)
		}
	}
	require.NoError(t, f.Save(filepath.Join(e.blobDir, filename)))
}

func (e *testEnv) upload(t *testing.T, filename string) string {
	t.Helper()
	sub := &model.Submission{Filename: filename}
	require.NoError(t, e.store.CreateSubmission(context.Background(), sub))
	return sub.ID
}

func findingKinds(findings []model.Finding) []model.FindingKind {
	kinds := make([]model.FindingKind, 0, len(findings))
	for _, f := range findings {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

func TestRun_CleanFileCompletes(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.writeWorkbook(t, "PAY0001 01082025.xlsx", [][]string{
		{"EMP001", "Jonathan", "Mays", "20", "450", "9000.00", "1800.00", "160", ""},
		{"EMP002", "Anna", "Smith", "18", "380", "6840.00", "1368.00", "144", ""},
	})
	id := e.upload(t, "PAY0001 01082025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, sub.Status)
	assert.True(t, sub.IsCurrentVersion)
	assert.Equal(t, "int-a", sub.IntermediaryID)
	assert.Equal(t, "p-2025-07", sub.PeriodID)
	assert.Equal(t, 2, sub.TotalRecords)
	assert.Equal(t, 2, sub.ValidRecords)
	assert.Equal(t, 0, sub.ErrorRecords)

	recs, err := e.store.ListPayRecords(ctx, id)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Jonathan", recs[0].Forename)
	require.NotNil(t, recs[0].ContractorID)
	assert.Equal(t, "c1", *recs[0].ContractorID)
	require.NotNil(t, recs[0].AssociationID)
	assert.True(t, recs[0].IsActive)
	assert.InDelta(t, 10800.0, recs[0].GrossAmount, 0.001)
}

func TestRun_FuzzyNameCompletesWithWarnings(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.writeWorkbook(t, "PAY0001 01082025.xlsx", [][]string{
		{"EMP001", "Jon", "Mays", "20", "450", "9000.00", "1800.00", "160", ""},
	})
	id := e.upload(t, "PAY0001 01082025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompletedWithWarnings, sub.Status)
	assert.Equal(t, 1, sub.ValidRecords)

	findings, err := e.store.ListFindings(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, findingKinds(findings), model.FindingFuzzyNameMatch)
}

func TestRun_CriticalFindingRejectsEverything(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// Row 2 is clean; row 3 has VAT off by pounds. One critical voids both.
	e.writeWorkbook(t, "PAY0001 01082025.xlsx", [][]string{
		{"EMP001", "Jonathan", "Mays", "20", "450", "9000.00", "1800.00", "160", ""},
		{"EMP002", "Anna", "Smith", "18", "380", "9001.00", "1798.00", "144", ""},
	})
	id := e.upload(t, "PAY0001 01082025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.StatusError, sub.Status)
	assert.False(t, sub.IsCurrentVersion)
	assert.Zero(t, sub.TotalRecords)
	assert.Zero(t, sub.ValidRecords)
	assert.Zero(t, sub.ErrorRecords)

	recs, err := e.store.ListPayRecords(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, recs)

	findings, err := e.store.ListFindings(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, findingKinds(findings), model.FindingInvalidVAT)
}

func TestRun_PermanentStaffRejected(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.writeWorkbook(t, "PAY0001 01082025.xlsx", [][]string{
		{"EMP003", "Sarah", "Connor", "20", "400", "8000.00", "1600.00", "160", ""},
	})
	id := e.upload(t, "PAY0001 01082025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.StatusError, sub.Status)
	findings, err := e.store.ListFindings(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, findingKinds(findings), model.FindingPermanentStaffMember)
}

func TestRun_SecondFileSupersedesFirst(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.writeWorkbook(t, "PAY0001 01082025.xlsx", [][]string{
		{"EMP001", "Jonathan", "Mays", "20", "450", "9000.00", "1800.00", "160", ""},
	})
	firstID := e.upload(t, "PAY0001 01082025.xlsx")
	first, err := e.pipeline.Run(ctx, firstID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, first.Status)
	require.True(t, first.IsCurrentVersion)

	e.writeWorkbook(t, "PAY0001 02082025.xlsx", [][]string{
		{"EMP001", "Jonathan", "Mays", "22", "450", "9900.00", "1980.00", "176", ""},
	})
	secondID := e.upload(t, "PAY0001 02082025.xlsx")
	second, err := e.pipeline.Run(ctx, secondID)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, second.Status)
	assert.True(t, second.IsCurrentVersion)
	assert.Equal(t, 2, second.Version)
	require.NotNil(t, second.SupersedesID)
	assert.Equal(t, firstID, *second.SupersedesID)

	first, err = e.store.GetSubmission(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuperseded, first.Status)
	assert.False(t, first.IsCurrentVersion)
	require.NotNil(t, first.SupersededByID)
	assert.Equal(t, secondID, *first.SupersededByID)

	oldRecs, err := e.store.ListPayRecords(ctx, firstID)
	require.NoError(t, err)
	require.Len(t, oldRecs, 1)
	assert.False(t, oldRecs[0].IsActive)

	newRecs, err := e.store.ListPayRecords(ctx, secondID)
	require.NoError(t, err)
	require.Len(t, newRecs, 1)
	assert.True(t, newRecs[0].IsActive)

	// Exactly one current submission remains for the pair.
	dup, err := e.store.FindCurrentSubmission(ctx, "int-a", "p-2025-07", secondID)
	require.NoError(t, err)
	assert.Nil(t, dup)
}

func TestRun_LateSubmissionWarns(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// September 10th is past the August period deadline of September 5th.
	e.writeWorkbook(t, "PAY0001 10092025.xlsx", [][]string{
		{"EMP001", "Jonathan", "Mays", "20", "450", "9000.00", "1800.00", "160", ""},
	})
	id := e.upload(t, "PAY0001 10092025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompletedWithWarnings, sub.Status)
	assert.Equal(t, "p-2025-08", sub.PeriodID)

	findings, err := e.store.ListFindings(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, findingKinds(findings), model.FindingLateSubmission)
}

func TestRun_UnknownIntermediaryFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	id := e.upload(t, "MYSTERY 01082025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.Error(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, model.StatusFailed, sub.Status)
	assert.Equal(t, StageMetadata, sub.FailureStage)
	assert.Contains(t, sub.FailureReason, "intermediary code")
}

func TestRun_MissingBlobFails(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// Registered but never written to the blob store.
	id := e.upload(t, "PAY0001 01082025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, sub.Status)
	assert.Equal(t, StageParsing, sub.FailureStage)
	assert.NotEmpty(t, sub.FailureReason)
}

func TestRun_TerminalSubmissionRefused(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	e.writeWorkbook(t, "PAY0001 01082025.xlsx", [][]string{
		{"EMP001", "Jonathan", "Mays", "20", "450", "9000.00", "1800.00", "160", ""},
	})
	id := e.upload(t, "PAY0001 01082025.xlsx")
	_, err := e.pipeline.Run(ctx, id)
	require.NoError(t, err)

	_, err = e.pipeline.Run(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already")
}

func TestRun_ParameterOverridesApply(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// With the stored threshold raised to 99, "Jon Mays" no longer resolves.
	seed := &store.SeedData{Parameters: map[string]string{"rules.name_match_threshold": "99"}}
	require.NoError(t, e.store.SeedReference(ctx, seed))

	e.writeWorkbook(t, "PAY0001 01082025.xlsx", [][]string{
		{"EMP001", "Jon", "Mays", "20", "450", "9000.00", "1800.00", "160", ""},
	})
	id := e.upload(t, "PAY0001 01082025.xlsx")

	sub, err := e.pipeline.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, model.StatusError, sub.Status)
	findings, err := e.store.ListFindings(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, findingKinds(findings), model.FindingUnknownContractor)
}

func TestMatchPeriod(t *testing.T) {
	periods := referenceSeed().PayPeriods

	t.Run("on time after period end", func(t *testing.T) {
		res, err := MatchPeriod(periods, time.Date(2025, 8, 3, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, "p-2025-07", res.Period.ID)
		assert.False(t, res.Late)
	})

	t.Run("during work window", func(t *testing.T) {
		res, err := MatchPeriod(periods, time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, "p-2025-08", res.Period.ID)
		assert.False(t, res.Late)
	})

	t.Run("late past deadline", func(t *testing.T) {
		res, err := MatchPeriod(periods, time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, "p-2025-08", res.Period.ID)
		assert.True(t, res.Late)
	})

	t.Run("before all periods", func(t *testing.T) {
		_, err := MatchPeriod(periods, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		require.Error(t, err)
	})
}
