package payfile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
)

var header = []string{"Employee ID", "Surname", "Forename", "Unit Days", "Day Rate", "Amount", "VAT", "Total Hours", "Company", "Notes"}

func TestFindHeaderRow_LeadingBlankRows(t *testing.T) {
	grid := [][]string{
		{},
		{"Pay file for period 7", "", ""},
		{},
		header,
		{"EMP001", "Mays", "Jonathan", "20", "450", "9000", "1800", "", "Umbrella Ltd", ""},
	}
	assert.Equal(t, 3, FindHeaderRow(grid))
}

func TestFindHeaderRow_Deterministic(t *testing.T) {
	grid := [][]string{header, header}
	first := FindHeaderRow(grid)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FindHeaderRow(grid))
	}
	assert.Equal(t, 0, first)
}

func TestFindHeaderRow_NoneFoundDefaultsToFirst(t *testing.T) {
	grid := [][]string{
		{"some", "random", "cells"},
		{"more", "random", "cells"},
	}
	assert.Equal(t, 0, FindHeaderRow(grid))
}

func TestFindHeaderRow_TooFewMatchesIgnored(t *testing.T) {
	grid := [][]string{
		{"Surname", "Forename", "Amount"}, // only 3 keyword hits
		{"Employee ID", "Surname", "Forename", "Unit", "Rate per day", "Amount"},
	}
	assert.Equal(t, 1, FindHeaderRow(grid))
}

func TestMapColumns_KeywordRules(t *testing.T) {
	cols := MapColumns(header)

	assert.Equal(t, 0, cols[ColEmployeeID])
	assert.Equal(t, 1, cols[ColSurname])
	assert.Equal(t, 2, cols[ColForename])
	assert.Equal(t, 3, cols[ColUnitDays])
	assert.Equal(t, 4, cols[ColDayRate])
	assert.Equal(t, 5, cols[ColAmount])
	assert.Equal(t, 6, cols[ColVATAmount])
	assert.Equal(t, 7, cols[ColTotalHours])
	assert.Equal(t, 8, cols[ColCompany])
	assert.Equal(t, 9, cols[ColNotes])
}

func TestMapColumns_VATAmountDisambiguation(t *testing.T) {
	cols := MapColumns([]string{"Amount", "VAT Amount", "VAT"})

	assert.Equal(t, 0, cols[ColAmount])
	assert.Equal(t, 2, cols[ColVATAmount])
	_, mapped := cols[ColTotalHours]
	assert.False(t, mapped)
}

func TestMapColumns_UnknownHeadersIgnored(t *testing.T) {
	cols := MapColumns([]string{"Banana", "", "Surname"})
	assert.Len(t, cols, 1)
	assert.Equal(t, 2, cols[ColSurname])
}

func TestParse_DerivedFields(t *testing.T) {
	grid := [][]string{
		header,
		{"EMP001", "Mays", "Jonathan", "20", "£450.00", "£9,000.00", "1800", "", "Umbrella Ltd", ""},
	}

	res := Parse(grid, zap.NewNop())
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, 2, rec.RowNumber)
	assert.InDelta(t, 9000.0, rec.Amount, 0.001)
	assert.InDelta(t, 1800.0, rec.VATAmount, 0.001)
	assert.InDelta(t, rec.Amount+rec.VATAmount, rec.GrossAmount, 0.001)
	assert.InDelta(t, 160.0, rec.TotalHours, 0.001) // 20 days x 8
	assert.Equal(t, model.RecordStandard, rec.RecordType)
}

func TestParse_ExplicitTotalHoursWins(t *testing.T) {
	grid := [][]string{
		header,
		{"EMP001", "Mays", "Jonathan", "20", "450", "9000", "1800", "150", "", ""},
	}
	res := Parse(grid, zap.NewNop())
	require.Len(t, res.Records, 1)
	assert.InDelta(t, 150.0, res.Records[0].TotalHours, 0.001)
}

func TestParse_RecordTypeClassification(t *testing.T) {
	grid := [][]string{
		header,
		{"E1", "Mays", "Jonathan", "2", "675", "1350", "270", "", "", "Overtime for launch weekend"},
		{"E1", "Mays", "Jonathan", "1", "675", "675", "135", "", "", "OT"},
		{"E2", "Smith", "Anna", "0", "0", "120", "0", "", "", "Travel expense claim"},
		{"E2", "Smith", "Anna", "20", "400", "8000", "1600", "", "", ""},
	}
	res := Parse(grid, zap.NewNop())
	require.Len(t, res.Records, 4)
	assert.Equal(t, model.RecordOvertime, res.Records[0].RecordType)
	assert.Equal(t, model.RecordOvertime, res.Records[1].RecordType)
	assert.Equal(t, model.RecordExpense, res.Records[2].RecordType)
	assert.Equal(t, model.RecordStandard, res.Records[3].RecordType)
}

func TestParse_SkipsStructurallyInvalidRows(t *testing.T) {
	grid := [][]string{
		header,
		{},
		{"", "", "", "", "", "", "", "", "", ""},
		{"Employee ID", "Surname", "Forename", "Unit", "Rate", "Amount"}, // repeated header
		{"EMP009", "", "", "20", "450", "9000", "1800", "", "", ""},      // no names
		{"EMP001", "Mays", "Jonathan", "20", "450", "9000", "1800", "", "", ""},
	}

	res := Parse(grid, zap.NewNop())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "Mays", res.Records[0].Surname)
	assert.Equal(t, 2, res.SkippedRows) // repeated header + nameless row; blanks don't count
}

func TestParseDecimal_Tolerant(t *testing.T) {
	cases := map[string]float64{
		"":           0,
		"-":          0,
		"not money":  0,
		"450":        450,
		"£450.50":    450.50,
		"$1,200.00":  1200,
		"€9 000":     9000,
		" 1,234.56 ": 1234.56,
	}

	for in, want := range cases {
		assert.InDelta(t, want, ParseDecimal(in), 0.001, "input %q", in)
	}
}

func TestExtractMetadata(t *testing.T) {
	codes := []string{"ACME", "BRIDGE", "NOVA"}

	md := ExtractMetadata("bridge_payfile_15082025.xlsx", codes)
	assert.Equal(t, "BRIDGE", md.IntermediaryCode)
	assert.Equal(t, time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC), md.SubmissionDate)
	assert.Equal(t, "bridge_payfile_15082025.xlsx", md.Filename)
}

func TestExtractMetadata_MissingPieces(t *testing.T) {
	md := ExtractMetadata("payfile_final_v2.xlsx", []string{"ACME"})
	assert.Empty(t, md.IntermediaryCode)
	assert.True(t, md.SubmissionDate.IsZero())
}

func TestExtractMetadata_ShortDigitRunsSkipped(t *testing.T) {
	// 1234567 is only seven digits; the eight-digit run later must win.
	md := ExtractMetadata("acme_1234567_01092025.xlsx", []string{"ACME"})
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), md.SubmissionDate)
}
