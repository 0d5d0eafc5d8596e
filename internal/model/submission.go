package model

import "time"

// SubmissionStatus represents the lifecycle state of an uploaded pay file.
type SubmissionStatus string

const (
	StatusUploaded              SubmissionStatus = "UPLOADED"
	StatusProcessing            SubmissionStatus = "PROCESSING"
	StatusCompleted             SubmissionStatus = "COMPLETED"
	StatusCompletedWithWarnings SubmissionStatus = "COMPLETED_WITH_WARNINGS"
	StatusError                 SubmissionStatus = "ERROR"
	StatusFailed                SubmissionStatus = "FAILED"
	StatusSuperseded            SubmissionStatus = "SUPERSEDED"

	// StatusDeleted is written only by external maintenance tooling; the
	// pipeline never sets it but must skip such rows during duplicate checks.
	StatusDeleted SubmissionStatus = "DELETED"
)

// Terminal reports whether no further pipeline transition applies.
func (s SubmissionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithWarnings, StatusError, StatusFailed, StatusSuperseded, StatusDeleted:
		return true
	}
	return false
}

// Submission is one uploaded pay file for an (intermediary, period) pair.
// At most one submission per pair may have IsCurrentVersion set; the store
// enforces this with a conditional write.
type Submission struct {
	ID               string           `json:"id"`
	IntermediaryID   string           `json:"intermediary_id,omitempty"`
	IntermediaryCode string           `json:"intermediary_code,omitempty"`
	PeriodID         string           `json:"period_id,omitempty"`
	Filename         string           `json:"filename"`
	Status           SubmissionStatus `json:"status"`
	IsCurrentVersion bool             `json:"is_current_version"`
	Version          int              `json:"version"`
	SupersedesID     *string          `json:"supersedes_id,omitempty"`
	SupersededByID   *string          `json:"superseded_by_id,omitempty"`
	TotalRecords     int              `json:"total_records"`
	ValidRecords     int              `json:"valid_records"`
	ErrorRecords     int              `json:"error_records"`
	FailureStage     string           `json:"failure_stage,omitempty"`
	FailureReason    string           `json:"failure_reason,omitempty"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	SupersededAt     *time.Time       `json:"superseded_at,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
