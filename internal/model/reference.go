package model

import "time"

// Intermediary is an umbrella company that submits pay files. Its code is
// matched (case-insensitively) against uploaded filenames.
type Intermediary struct {
	ID   string `json:"id" yaml:"id"`
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

// PayPeriod is a fixed calendar window with a submission deadline.
// Read-only reference data.
type PayPeriod struct {
	ID                 string    `json:"id" yaml:"id"`
	PeriodNumber       int       `json:"period_number" yaml:"period_number"`
	Year               int       `json:"year" yaml:"year"`
	WorkStartDate      time.Time `json:"work_start_date" yaml:"work_start_date"`
	WorkEndDate        time.Time `json:"work_end_date" yaml:"work_end_date"`
	SubmissionDeadline time.Time `json:"submission_deadline" yaml:"submission_deadline"`
}

// Contractor is the canonical identity record for a person paid through an
// intermediary. NormalizedName is the lowercased, whitespace-collapsed
// "forename surname" used for matching.
type Contractor struct {
	ID             string  `json:"id" yaml:"id"`
	FirstName      string  `json:"first_name" yaml:"first_name"`
	LastName       string  `json:"last_name" yaml:"last_name"`
	NormalizedName string  `json:"normalized_name" yaml:"normalized_name"`
	StandardRate   float64 `json:"standard_rate,omitempty" yaml:"standard_rate,omitempty"`
}

// Association links a contractor to an intermediary for a bounded time
// window. ValidTo nil means open-ended. A contractor may hold simultaneous
// associations with different intermediaries.
type Association struct {
	ID             string     `json:"id" yaml:"id"`
	ContractorID   string     `json:"contractor_id" yaml:"contractor_id"`
	IntermediaryID string     `json:"intermediary_id" yaml:"intermediary_id"`
	EmployeeID     string     `json:"employee_id" yaml:"employee_id"`
	ValidFrom      time.Time  `json:"valid_from" yaml:"valid_from"`
	ValidTo        *time.Time `json:"valid_to,omitempty" yaml:"valid_to,omitempty"`
}

// Covers reports whether the association window contains the whole period.
func (a Association) Covers(p PayPeriod) bool {
	if a.ValidFrom.After(p.WorkStartDate) {
		return false
	}
	return a.ValidTo == nil || !a.ValidTo.Before(p.WorkEndDate)
}

// ReferenceSet is the load-once-per-run bundle of reference data the
// validation engine works against. It is always passed explicitly; nothing
// in this package caches it.
type ReferenceSet struct {
	Contractors  []Contractor
	Associations map[string][]Association // keyed by contractor id
	Blocklist    map[string]bool          // normalized permanent-staff names
}
