package model

import "time"

// Severity distinguishes blocking errors from advisory warnings.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
)

// FindingKind identifies the rule that produced a finding.
type FindingKind string

const (
	FindingUnknownContractor     FindingKind = "UNKNOWN_CONTRACTOR"
	FindingNoUmbrellaAssociation FindingKind = "NO_UMBRELLA_ASSOCIATION"
	FindingPermanentStaffMember  FindingKind = "PERMANENT_STAFF_MEMBER"
	FindingInvalidVAT            FindingKind = "INVALID_VAT"
	FindingInvalidOvertimeRate   FindingKind = "INVALID_OVERTIME_RATE"
	FindingFuzzyNameMatch        FindingKind = "FUZZY_NAME_MATCH"
	FindingRateChange            FindingKind = "RATE_CHANGE"
	FindingUnusualHours          FindingKind = "UNUSUAL_HOURS"
	FindingLateSubmission        FindingKind = "LATE_SUBMISSION"
)

// Finding is one validation outcome, persisted for audit and never mutated.
type Finding struct {
	ID           string      `json:"id"`
	SubmissionID string      `json:"submission_id"`
	Severity     Severity    `json:"severity"`
	Kind         FindingKind `json:"kind"`
	RowNumber    int         `json:"row_number"`
	Message      string      `json:"message"`
	SuggestedFix string      `json:"suggested_fix,omitempty"`
	AutoResolved bool        `json:"auto_resolved"`
	CreatedAt    time.Time   `json:"created_at"`
}
