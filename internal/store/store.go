package store

import (
	"context"
	"time"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
)

// SeedData is the reference-data bundle loaded by the migrate command.
// Reference data is owned by external management tooling; seeding exists so
// a deployment can be stood up from a single YAML file.
type SeedData struct {
	Intermediaries []model.Intermediary `yaml:"intermediaries"`
	PayPeriods     []model.PayPeriod    `yaml:"pay_periods"`
	Contractors    []model.Contractor   `yaml:"contractors"`
	Associations   []model.Association  `yaml:"associations"`
	PermanentStaff []string             `yaml:"permanent_staff"`
	Parameters     map[string]string    `yaml:"parameters"`
}

// Store defines the persistence interface for the ingestion pipeline.
// Submission state transitions that touch the one-current-version invariant
// are conditional writes: they compare the previously known status/flag and
// affect zero rows when another writer got there first.
type Store interface {
	// Submissions
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	GetSubmission(ctx context.Context, id string) (*model.Submission, error)
	BeginProcessing(ctx context.Context, id string) error
	SetSubmissionTarget(ctx context.Context, id, intermediaryID, code, periodID string) error
	FindCurrentSubmission(ctx context.Context, intermediaryID, periodID, excludeID string) (*model.Submission, error)
	Supersede(ctx context.Context, oldID, newID string) error
	PromoteCurrent(ctx context.Context, id string) error
	MarkError(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, stage, reason string) error
	FinalizeSubmission(ctx context.Context, id string, status model.SubmissionStatus, total, valid, errRecords int) error

	// Pay records and findings
	ImportPayRecords(ctx context.Context, submissionID string, records []model.PayRecord) (int, error)
	ListPayRecords(ctx context.Context, submissionID string) ([]model.PayRecord, error)
	SaveFindings(ctx context.Context, submissionID string, findings []model.Finding) error
	ListFindings(ctx context.Context, submissionID string) ([]model.Finding, error)

	// Reference data, read-only for the pipeline
	ListIntermediaries(ctx context.Context) ([]model.Intermediary, error)
	ListPayPeriods(ctx context.Context) ([]model.PayPeriod, error)
	LoadReferenceSet(ctx context.Context) (*model.ReferenceSet, error)
	LoadParameters(ctx context.Context) (map[string]string, error)

	// Rate history for the validation engine
	StandardRateBefore(ctx context.Context, contractorID string, before time.Time) (float64, bool, error)

	// Lifecycle
	SeedReference(ctx context.Context, seed *SeedData) error
	Migrate(ctx context.Context) error
	Close() error
}
