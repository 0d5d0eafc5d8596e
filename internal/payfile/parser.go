package payfile

import (
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
)

// headerScanLimit bounds how many leading rows are inspected when locating
// the header row.
const headerScanLimit = 20

// headerKeywords are the signals counted during header detection. A row
// containing at least minHeaderMatches of them is taken as the header.
var headerKeywords = []string{"employee id", "surname", "forename", "unit", "rate", "amount"}

const minHeaderMatches = 4

// Column is a canonical field name a spreadsheet header can map to.
type Column string

const (
	ColEmployeeID Column = "employee_id"
	ColSurname    Column = "surname"
	ColForename   Column = "forename"
	ColUnitDays   Column = "unit_days"
	ColDayRate    Column = "day_rate"
	ColAmount     Column = "amount"
	ColVATAmount  Column = "vat_amount"
	ColTotalHours Column = "total_hours"
	ColCompany    Column = "company"
	ColNotes      Column = "notes"
)

// Record is one normalized pay line parsed from the grid, before identity
// resolution and validation.
type Record struct {
	RowNumber   int
	EmployeeID  string
	Forename    string
	Surname     string
	UnitDays    float64
	DayRate     float64
	Amount      float64
	VATAmount   float64
	GrossAmount float64
	TotalHours  float64
	RecordType  model.RecordType
	Company     string
	Notes       string
}

// Result is the outcome of parsing a grid.
type Result struct {
	HeaderRow   int
	Records     []Record
	SkippedRows int
}

// FindHeaderRow scans the first headerScanLimit rows and returns the index
// of the first row containing at least minHeaderMatches header keywords
// (case-insensitive substring over the whole row). Falls back to row 0.
func FindHeaderRow(grid [][]string) int {
	limit := len(grid)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for i := 0; i < limit; i++ {
		joined := strings.ToLower(strings.Join(grid[i], " "))
		matches := 0
		for _, kw := range headerKeywords {
			if strings.Contains(joined, kw) {
				matches++
			}
		}
		if matches >= minHeaderMatches {
			return i
		}
	}
	return 0
}

// MapColumns maps header cell text to canonical columns by keyword rules.
// Unrecognized headers are ignored; the first header claiming a column wins.
func MapColumns(header []string) map[Column]int {
	cols := make(map[Column]int)
	claim := func(c Column, idx int) {
		if _, taken := cols[c]; !taken {
			cols[c] = idx
		}
	}

	for i, raw := range header {
		h := strings.ToLower(strings.TrimSpace(raw))
		if h == "" {
			continue
		}
		switch {
		case strings.Contains(h, "employee") && strings.Contains(h, "id"):
			claim(ColEmployeeID, i)
		case strings.Contains(h, "surname") || strings.Contains(h, "last"):
			claim(ColSurname, i)
		case strings.Contains(h, "forename") || strings.Contains(h, "first"):
			claim(ColForename, i)
		case strings.Contains(h, "unit") || strings.Contains(h, "days"):
			claim(ColUnitDays, i)
		case strings.Contains(h, "rate") && (strings.Contains(h, "day") || strings.Contains(h, "per")):
			claim(ColDayRate, i)
		case strings.Contains(h, "vat") && !strings.Contains(h, "amount"):
			claim(ColVATAmount, i)
		case strings.Contains(h, "amount") && !strings.Contains(h, "vat"):
			claim(ColAmount, i)
		case strings.Contains(h, "total") && strings.Contains(h, "hours"):
			claim(ColTotalHours, i)
		case strings.Contains(h, "company"):
			claim(ColCompany, i)
		case strings.Contains(h, "note") || strings.Contains(h, "description"):
			claim(ColNotes, i)
		}
	}
	return cols
}

// Parse turns a cell grid into normalized pay records. Structurally invalid
// rows (blank, repeated header, no name at all) are skipped and counted, not
// surfaced as business findings. Row numbers are 1-based grid positions so
// findings line up with what the submitter sees in their spreadsheet tool.
func Parse(grid [][]string, log *zap.Logger) Result {
	res := Result{HeaderRow: FindHeaderRow(grid)}
	if len(grid) == 0 {
		return res
	}

	cols := MapColumns(grid[res.HeaderRow])

	for i := res.HeaderRow + 1; i < len(grid); i++ {
		row := grid[i]
		rowNum := i + 1

		if blankRow(row) {
			continue
		}
		if first := strings.ToLower(cellAt(row, 0)); strings.Contains(first, "employee") || strings.Contains(first, "surname") {
			// Repeated header block inside the data region.
			res.SkippedRows++
			continue
		}

		rec := Record{
			RowNumber:  rowNum,
			EmployeeID: strings.TrimSpace(cell(row, cols, ColEmployeeID)),
			Forename:   strings.TrimSpace(cell(row, cols, ColForename)),
			Surname:    strings.TrimSpace(cell(row, cols, ColSurname)),
			Company:    strings.TrimSpace(cell(row, cols, ColCompany)),
			Notes:      strings.TrimSpace(cell(row, cols, ColNotes)),
		}

		if rec.Forename == "" && rec.Surname == "" {
			res.SkippedRows++
			log.Debug("payfile: skipping row without names", zap.Int("row", rowNum))
			continue
		}

		rec.UnitDays = ParseDecimal(cell(row, cols, ColUnitDays))
		rec.DayRate = ParseDecimal(cell(row, cols, ColDayRate))
		rec.Amount = ParseDecimal(cell(row, cols, ColAmount))
		rec.VATAmount = ParseDecimal(cell(row, cols, ColVATAmount))
		rec.GrossAmount = rec.Amount + rec.VATAmount

		rec.TotalHours = ParseDecimal(cell(row, cols, ColTotalHours))
		if rec.TotalHours == 0 {
			rec.TotalHours = rec.UnitDays * 8
		}

		rec.RecordType = classify(rec.Notes)

		res.Records = append(res.Records, rec)
	}

	return res
}

// ParseDecimal is a tolerant money/quantity parser: currency symbols and
// thousands separators are stripped, blank or dash or unparsable values
// coerce to zero so one bad cell never sinks the whole file.
func ParseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return 0
	}
	cleaned := strings.NewReplacer(
		"£", "",
		"$", "",
		"€", "",
		",", "",
		" ", "",
	).Replace(s)
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func classify(notes string) model.RecordType {
	lower := strings.ToLower(notes)
	switch {
	case strings.Contains(lower, "overtime") || strings.EqualFold(strings.TrimSpace(notes), "OT"):
		return model.RecordOvertime
	case strings.Contains(lower, "expense"):
		return model.RecordExpense
	default:
		return model.RecordStandard
	}
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func cell(row []string, cols map[Column]int, c Column) string {
	idx, ok := cols[c]
	if !ok {
		return ""
	}
	return cellAt(row, idx)
}
