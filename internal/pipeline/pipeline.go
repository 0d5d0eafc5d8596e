// Package pipeline sequences a submission through metadata extraction,
// period matching, duplicate detection, supersede, parsing, validation,
// import, and finalization. One Run call owns a submission from PROCESSING
// to its terminal status.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/blob"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/config"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/payfile"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/resilience"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/store"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/validate"
)

// Pipeline orchestrates the ingestion stages for uploaded pay files.
type Pipeline struct {
	cfg   *config.Config
	store store.Store
	blob  blob.Storage
	log   *zap.Logger
}

// New creates a Pipeline with its collaborators injected.
func New(cfg *config.Config, st store.Store, bs blob.Storage, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, store: st, blob: bs, log: log}
}

// stageCtx bounds one stage's wall time. Zero or negative config disables
// the limit.
func (p *Pipeline) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	secs := p.cfg.Pipeline.StageTimeoutSecs
	if secs <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(secs)*time.Second)
}

func (p *Pipeline) retryCfg(stage, operation string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = p.cfg.Pipeline.MaxRetries
	cfg.OnRetry = resilience.RetryLogger(stage, operation)
	return cfg
}

// Run executes the full pipeline for one submission and returns it in its
// terminal state. Business rejections (CRITICAL findings) end in ERROR with
// nil error; infrastructure failures end in FAILED and return the stage
// error after it has been recorded on the submission.
func (p *Pipeline) Run(ctx context.Context, submissionID string) (*model.Submission, error) {
	log := p.log.With(zap.String("submission_id", submissionID))

	sub, err := resilience.DoVal(ctx, p.retryCfg(StageParameters, "get_submission"),
		func(ctx context.Context) (*model.Submission, error) {
			return p.store.GetSubmission(ctx, submissionID)
		})
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load submission %s", submissionID)
	}
	if sub.Status.Terminal() {
		return sub, eris.Errorf("submission %s is already %s", submissionID, sub.Status)
	}

	if err := p.store.BeginProcessing(ctx, submissionID); err != nil {
		return sub, eris.Wrap(err, "pipeline: begin processing")
	}
	log.Info("pipeline: processing started", zap.String("filename", sub.Filename))

	// System parameters stored with the reference data override the static
	// rule thresholds for this run.
	rulesCfg := p.cfg.Rules
	params, err := resilience.DoVal(ctx, p.retryCfg(StageParameters, "load_parameters"),
		func(ctx context.Context) (map[string]string, error) {
			return p.store.LoadParameters(ctx)
		})
	if err != nil {
		return p.fail(ctx, submissionID, StageParameters, err, log)
	}
	if err := rulesCfg.ApplyParameters(params); err != nil {
		return p.fail(ctx, submissionID, StageParameters, err, log)
	}

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, submissionID, StageMetadata, err, log)
	}

	meta, err := p.extractMetadata(ctx, MetadataRequest{SubmissionID: submissionID, Filename: sub.Filename})
	if err != nil {
		return p.fail(ctx, submissionID, StageMetadata, err, log)
	}
	log.Info("pipeline: metadata extracted",
		zap.String("intermediary", meta.Intermediary.Code),
		zap.Time("submission_date", meta.Meta.SubmissionDate),
	)

	period, err := p.matchPeriod(ctx, PeriodRequest{SubmissionDate: meta.Meta.SubmissionDate})
	if err != nil {
		return p.fail(ctx, submissionID, StagePeriod, err, log)
	}
	log.Info("pipeline: period matched",
		zap.Int("period_number", period.Period.PeriodNumber),
		zap.Int("year", period.Period.Year),
		zap.Bool("late", period.Late),
	)

	err = resilience.Do(ctx, p.retryCfg(StagePeriod, "set_submission_target"), func(ctx context.Context) error {
		return p.store.SetSubmissionTarget(ctx, submissionID, meta.Intermediary.ID, meta.Intermediary.Code, period.Period.ID)
	})
	if err != nil {
		return p.fail(ctx, submissionID, StagePeriod, err, log)
	}

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, submissionID, StageDuplicate, err, log)
	}

	dup, err := p.detectDuplicate(ctx, DuplicateRequest{
		IntermediaryID: meta.Intermediary.ID,
		PeriodID:       period.Period.ID,
		SubmissionID:   submissionID,
	})
	if err != nil {
		return p.fail(ctx, submissionID, StageDuplicate, err, log)
	}

	if dup.Found {
		log.Info("pipeline: superseding previous submission", zap.String("superseded_id", dup.ExistingID))
		err = resilience.Do(ctx, p.retryCfg(StageSupersede, "supersede"), func(ctx context.Context) error {
			return p.store.Supersede(ctx, dup.ExistingID, submissionID)
		})
		if err != nil {
			return p.fail(ctx, submissionID, StageSupersede, err, log)
		}
	}

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, submissionID, StageParsing, err, log)
	}

	parsed, err := p.parseRecords(ctx, ParseRequest{SubmissionID: submissionID, Filename: sub.Filename}, log)
	if err != nil {
		return p.fail(ctx, submissionID, StageParsing, err, log)
	}
	log.Info("pipeline: parsed",
		zap.Int("records", len(parsed.Records)),
		zap.Int("skipped_rows", parsed.SkippedRows),
	)

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, submissionID, StageValidation, err, log)
	}

	validated, err := p.validateRecords(ctx, ValidateRequest{
		Records:        parsed.Records,
		IntermediaryID: meta.Intermediary.ID,
		Period:         period.Period,
		Rules:          rulesFromConfig(rulesCfg),
	}, log)
	if err != nil {
		return p.fail(ctx, submissionID, StageValidation, err, log)
	}
	batch := validated.Batch

	findings := batch.Findings
	if period.Late {
		findings = append([]model.Finding{lateFinding(sub.Filename, meta.Meta, period.Period)}, findings...)
	}

	err = resilience.Do(ctx, p.retryCfg(StageFinalizing, "save_findings"), func(ctx context.Context) error {
		return p.store.SaveFindings(ctx, submissionID, findings)
	})
	if err != nil {
		return p.fail(ctx, submissionID, StageFinalizing, err, log)
	}

	// Any CRITICAL finding voids the whole submission: nothing imports and
	// the record counts read zero. The findings above remain for audit.
	if batch.Criticals > 0 {
		log.Warn("pipeline: submission rejected",
			zap.Int("criticals", batch.Criticals),
			zap.Int("warnings", batch.Warnings),
		)
		err = resilience.Do(ctx, p.retryCfg(StageFinalizing, "mark_error"), func(ctx context.Context) error {
			return p.store.MarkError(ctx, submissionID)
		})
		if err != nil {
			return p.fail(ctx, submissionID, StageFinalizing, err, log)
		}
		return p.reload(ctx, submissionID)
	}

	imported, err := p.importRecords(ctx, ImportRequest{SubmissionID: submissionID, Records: batch.Accepted})
	if err != nil {
		return p.fail(ctx, submissionID, StageImporting, err, log)
	}

	err = resilience.Do(ctx, p.retryCfg(StageFinalizing, "promote_current"), func(ctx context.Context) error {
		return p.store.PromoteCurrent(ctx, submissionID)
	})
	if err != nil {
		return p.fail(ctx, submissionID, StageFinalizing, err, log)
	}

	status := model.StatusCompleted
	if batch.Warnings > 0 || period.Late {
		status = model.StatusCompletedWithWarnings
	}
	total := len(parsed.Records)
	err = resilience.Do(ctx, p.retryCfg(StageFinalizing, "finalize_submission"), func(ctx context.Context) error {
		return p.store.FinalizeSubmission(ctx, submissionID, status, total, imported.Imported, total-imported.Imported)
	})
	if err != nil {
		return p.fail(ctx, submissionID, StageFinalizing, err, log)
	}

	log.Info("pipeline: completed",
		zap.String("status", string(status)),
		zap.Int("total_records", total),
		zap.Int("imported", imported.Imported),
		zap.Int("warnings", batch.Warnings),
	)
	return p.reload(ctx, submissionID)
}

// fail records the stage error on the submission and returns it alongside
// the reloaded FAILED row. The error text is stored verbatim for diagnosis.
func (p *Pipeline) fail(ctx context.Context, id, stage string, cause error, log *zap.Logger) (*model.Submission, error) {
	log.Error("pipeline: stage failed", zap.String("stage", stage), zap.Error(cause))

	// Best effort even under a cancelled context.
	markCtx := ctx
	if ctx.Err() != nil {
		markCtx = context.WithoutCancel(ctx)
	}
	if err := p.store.MarkFailed(markCtx, id, stage, cause.Error()); err != nil {
		log.Error("pipeline: could not record failure", zap.Error(err))
	}

	sub, err := p.store.GetSubmission(markCtx, id)
	if err != nil {
		return nil, cause
	}
	return sub, cause
}

func (p *Pipeline) reload(ctx context.Context, id string) (*model.Submission, error) {
	sub, err := p.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reload submission")
	}
	return sub, nil
}

func rulesFromConfig(r config.RulesConfig) validate.Config {
	return validate.Config{
		VATRate:              r.VATRate,
		OvertimeMultiplier:   r.OvertimeMultiplier,
		OvertimeTolerancePct: r.OvertimeTolerancePct,
		RateChangeAlertPct:   r.RateChangeAlertPct,
		NameMatchThreshold:   r.NameMatchThreshold,
	}
}

func lateFinding(filename string, meta payfile.Metadata, period model.PayPeriod) model.Finding {
	return model.Finding{
		Severity:  model.SeverityWarning,
		Kind:      model.FindingLateSubmission,
		RowNumber: 0,
		Message: "file " + filename + " submitted " + meta.SubmissionDate.Format("2006-01-02") +
			", after the period deadline " + period.SubmissionDeadline.Format("2006-01-02"),
	}
}
