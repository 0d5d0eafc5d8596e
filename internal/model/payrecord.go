package model

// RecordType classifies a pay line item.
type RecordType string

const (
	RecordStandard RecordType = "STANDARD"
	RecordOvertime RecordType = "OVERTIME"
	RecordExpense  RecordType = "EXPENSE"
)

// PayRecord is one line item within a submission. Records are written in bulk
// at import time and never mutated afterwards except the IsActive flip when
// the owning submission is superseded.
type PayRecord struct {
	ID            string     `json:"id"`
	SubmissionID  string     `json:"submission_id"`
	RowNumber     int        `json:"row_number"`
	ContractorID  *string    `json:"contractor_id,omitempty"`
	AssociationID *string    `json:"association_id,omitempty"`
	EmployeeID    string     `json:"employee_id"`
	Forename      string     `json:"forename"`
	Surname       string     `json:"surname"`
	UnitDays      float64    `json:"unit_days"`
	DayRate       float64    `json:"day_rate"`
	Amount        float64    `json:"amount"`
	VATAmount     float64    `json:"vat_amount"`
	GrossAmount   float64    `json:"gross_amount"`
	TotalHours    float64    `json:"total_hours"`
	RecordType    RecordType `json:"record_type"`
	Notes         string     `json:"notes,omitempty"`
	IsActive      bool       `json:"is_active"`
}
