package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/payfile"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/resilience"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/validate"
)

// Stage names recorded on FAILED submissions so an operator can see where a
// run died.
const (
	StageParameters = "PARAMETERS"
	StageMetadata   = "METADATA_EXTRACTION"
	StagePeriod     = "PERIOD_MATCHING"
	StageDuplicate  = "DUPLICATE_DETECTION"
	StageSupersede  = "SUPERSEDE"
	StageFetching   = "FETCHING"
	StageParsing    = "PARSING"
	StageValidation = "VALIDATION"
	StageImporting  = "IMPORTING"
	StageFinalizing = "FINALIZING"
)

// MetadataRequest asks for everything derivable before touching file content.
type MetadataRequest struct {
	SubmissionID string
	Filename     string
}

// MetadataResponse carries the resolved intermediary and filename metadata.
type MetadataResponse struct {
	Meta         payfile.Metadata
	Intermediary model.Intermediary
}

func (p *Pipeline) extractMetadata(ctx context.Context, req MetadataRequest) (MetadataResponse, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()

	ims, err := resilience.DoVal(ctx, p.retryCfg(StageMetadata, "list_intermediaries"),
		func(ctx context.Context) ([]model.Intermediary, error) {
			return p.store.ListIntermediaries(ctx)
		})
	if err != nil {
		return MetadataResponse{}, eris.Wrap(err, "pipeline: load intermediaries")
	}

	codes := make([]string, 0, len(ims))
	for _, im := range ims {
		codes = append(codes, im.Code)
	}

	meta := payfile.ExtractMetadata(req.Filename, codes)
	if meta.IntermediaryCode == "" {
		return MetadataResponse{}, eris.Errorf("filename %q contains no known intermediary code", req.Filename)
	}
	if meta.SubmissionDate.IsZero() {
		return MetadataResponse{}, eris.Errorf("filename %q contains no DDMMYYYY submission date", req.Filename)
	}

	for _, im := range ims {
		if strings.EqualFold(im.Code, meta.IntermediaryCode) {
			return MetadataResponse{Meta: meta, Intermediary: im}, nil
		}
	}
	return MetadataResponse{}, eris.Errorf("no intermediary registered for code %s", meta.IntermediaryCode)
}

// PeriodRequest asks which pay period a submission date belongs to.
type PeriodRequest struct {
	SubmissionDate time.Time
}

// PeriodResponse carries the matched period. Late means the file arrived
// after the period's submission deadline; it is accepted with a warning.
type PeriodResponse struct {
	Period model.PayPeriod
	Late   bool
}

func (p *Pipeline) matchPeriod(ctx context.Context, req PeriodRequest) (PeriodResponse, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()

	periods, err := resilience.DoVal(ctx, p.retryCfg(StagePeriod, "list_pay_periods"),
		func(ctx context.Context) ([]model.PayPeriod, error) {
			return p.store.ListPayPeriods(ctx)
		})
	if err != nil {
		return PeriodResponse{}, eris.Wrap(err, "pipeline: load pay periods")
	}
	return MatchPeriod(periods, req.SubmissionDate)
}

// MatchPeriod picks the pay period a file submitted on date reports against.
// Preference order:
//  1. the period whose post-work submission window (work end, deadline]
//     contains the date: the normal on-time case;
//  2. the period whose work window contains the date: an early submission;
//  3. the most recent period that ended before the date: a late submission.
//
// When several periods qualify at the same tier the most recent one wins.
func MatchPeriod(periods []model.PayPeriod, date time.Time) (PeriodResponse, error) {
	var onTime, during, late *model.PayPeriod
	for i := range periods {
		per := periods[i]
		switch {
		case per.WorkEndDate.Before(date) && !date.After(per.SubmissionDeadline):
			if onTime == nil || per.WorkEndDate.After(onTime.WorkEndDate) {
				onTime = &periods[i]
			}
		case !date.Before(per.WorkStartDate) && !date.After(per.WorkEndDate):
			if during == nil || per.WorkStartDate.After(during.WorkStartDate) {
				during = &periods[i]
			}
		case per.WorkEndDate.Before(date):
			if late == nil || per.WorkEndDate.After(late.WorkEndDate) {
				late = &periods[i]
			}
		}
	}

	switch {
	case onTime != nil:
		return PeriodResponse{Period: *onTime}, nil
	case during != nil:
		return PeriodResponse{Period: *during}, nil
	case late != nil:
		return PeriodResponse{Period: *late, Late: true}, nil
	}
	return PeriodResponse{}, eris.Errorf("no pay period matches submission date %s", date.Format("2006-01-02"))
}

// DuplicateRequest asks whether another submission is already current for
// the same (intermediary, period) key.
type DuplicateRequest struct {
	IntermediaryID string
	PeriodID       string
	SubmissionID   string
}

// DuplicateResponse reports the existing current submission, if any.
type DuplicateResponse struct {
	Found      bool
	ExistingID string
}

func (p *Pipeline) detectDuplicate(ctx context.Context, req DuplicateRequest) (DuplicateResponse, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()

	existing, err := resilience.DoVal(ctx, p.retryCfg(StageDuplicate, "find_current_submission"),
		func(ctx context.Context) (*model.Submission, error) {
			return p.store.FindCurrentSubmission(ctx, req.IntermediaryID, req.PeriodID, req.SubmissionID)
		})
	if err != nil {
		return DuplicateResponse{}, eris.Wrap(err, "pipeline: duplicate check")
	}
	if existing == nil {
		return DuplicateResponse{}, nil
	}
	return DuplicateResponse{Found: true, ExistingID: existing.ID}, nil
}

// ParseRequest names the blob to fetch and parse.
type ParseRequest struct {
	SubmissionID string
	Filename     string
}

// ParseResponse carries the normalized rows and skip count.
type ParseResponse struct {
	Records     []payfile.Record
	SkippedRows int
}

func (p *Pipeline) parseRecords(ctx context.Context, req ParseRequest, log *zap.Logger) (ParseResponse, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()

	path, err := resilience.DoVal(ctx, p.retryCfg(StageFetching, "fetch_blob"),
		func(ctx context.Context) (string, error) {
			return p.blob.Fetch(ctx, req.Filename)
		})
	if err != nil {
		return ParseResponse{}, eris.Wrapf(err, "pipeline: fetch %s", req.Filename)
	}

	grid, err := payfile.ReadGrid(path)
	if err != nil {
		return ParseResponse{}, err
	}

	parsed := payfile.Parse(grid, log)
	return ParseResponse{Records: parsed.Records, SkippedRows: parsed.SkippedRows}, nil
}

// ValidateRequest carries everything the rule engine needs for one batch.
type ValidateRequest struct {
	Records        []payfile.Record
	IntermediaryID string
	Period         model.PayPeriod
	Rules          validate.Config
}

// ValidateResponse wraps the batch outcome.
type ValidateResponse struct {
	Batch *validate.BatchResult
}

func (p *Pipeline) validateRecords(ctx context.Context, req ValidateRequest, log *zap.Logger) (ValidateResponse, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()

	refs, err := resilience.DoVal(ctx, p.retryCfg(StageValidation, "load_reference_set"),
		func(ctx context.Context) (*model.ReferenceSet, error) {
			return p.store.LoadReferenceSet(ctx)
		})
	if err != nil {
		return ValidateResponse{}, eris.Wrap(err, "pipeline: load reference set")
	}

	engine := validate.NewEngine(req.Rules, refs, p.store, log, p.cfg.Pipeline.ValidationWorkers)
	batch, err := engine.ValidateBatch(ctx, req.Records, req.IntermediaryID, req.Period)
	if err != nil {
		return ValidateResponse{}, err
	}
	return ValidateResponse{Batch: batch}, nil
}

// ImportRequest carries the accepted records for atomic import.
type ImportRequest struct {
	SubmissionID string
	Records      []model.PayRecord
}

// ImportResponse reports how many rows landed.
type ImportResponse struct {
	Imported int
}

func (p *Pipeline) importRecords(ctx context.Context, req ImportRequest) (ImportResponse, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()

	for i := range req.Records {
		req.Records[i].SubmissionID = req.SubmissionID
	}
	n, err := resilience.DoVal(ctx, p.retryCfg(StageImporting, "import_pay_records"),
		func(ctx context.Context) (int, error) {
			return p.store.ImportPayRecords(ctx, req.SubmissionID, req.Records)
		})
	if err != nil {
		return ImportResponse{}, eris.Wrap(err, "pipeline: import records")
	}
	return ImportResponse{Imported: n}, nil
}
