package validate

import (
	"context"
	"runtime"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/payfile"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/resolve"
)

// Config holds the tunable business-rule parameters. Values come from the
// configuration surface and may be overridden per deployment by system
// parameters stored alongside the reference data.
type Config struct {
	VATRate              float64
	OvertimeMultiplier   float64
	OvertimeTolerancePct float64
	RateChangeAlertPct   float64
	NameMatchThreshold   int
}

// DefaultConfig returns the stock rule parameters.
func DefaultConfig() Config {
	return Config{
		VATRate:              0.20,
		OvertimeMultiplier:   1.5,
		OvertimeTolerancePct: 2.0,
		RateChangeAlertPct:   5.0,
		NameMatchThreshold:   resolve.DefaultThreshold,
	}
}

// RateHistory answers rate questions against previously imported records.
// Satisfied by the store; kept narrow so the engine stays testable without one.
type RateHistory interface {
	// StandardRateBefore returns the most recent active STANDARD day rate
	// imported for the contractor strictly before the given date.
	StandardRateBefore(ctx context.Context, contractorID string, before time.Time) (float64, bool, error)
}

// Engine runs the ordered business rules over parsed pay records.
type Engine struct {
	cfg     Config
	refs    *model.ReferenceSet
	history RateHistory
	log     *zap.Logger
	workers int
}

// NewEngine builds an engine over a reference set loaded once for the run.
// workers <= 0 means one worker per CPU.
func NewEngine(cfg Config, refs *model.ReferenceSet, history RateHistory, log *zap.Logger, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, refs: refs, history: history, log: log, workers: workers}
}

// RecordResult is the outcome for a single record. Accepted records carry
// the resolved contractor and association ids forward for import.
type RecordResult struct {
	Record   model.PayRecord
	Accepted bool
	Errors   []model.Finding
	Warnings []model.Finding
}

// BatchResult aggregates a full submission's validation pass, ordered by
// row number regardless of worker scheduling.
type BatchResult struct {
	Results   []RecordResult
	Accepted  []model.PayRecord
	Findings  []model.Finding
	Criticals int
	Warnings  int
}

// ValidateBatch validates every record. Records are independent, so the rule
// pass fans out across a bounded worker pool; results are re-ordered by row
// number so imports stay deterministic. Only infrastructure failures (rate
// history lookups) return an error; business outcomes live in the result.
func (e *Engine) ValidateBatch(ctx context.Context, recs []payfile.Record, intermediaryID string, period model.PayPeriod) (*BatchResult, error) {
	// Standard rates present in this batch take precedence over history when
	// validating overtime rows, so resolve identities once up front.
	batchRates := make(map[string]float64)
	for _, rec := range recs {
		if rec.RecordType != model.RecordStandard || rec.DayRate <= 0 {
			continue
		}
		m := resolve.Resolve(rec.Forename, rec.Surname, e.refs.Contractors, e.cfg.NameMatchThreshold)
		if m.Kind == resolve.MatchNone {
			continue
		}
		if _, seen := batchRates[m.Contractor.ID]; !seen {
			batchRates[m.Contractor.ID] = rec.DayRate
		}
	}

	results := make([]RecordResult, len(recs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range recs {
		g.Go(func() error {
			res, err := e.validateRecord(gCtx, recs[i], intermediaryID, period, batchRates)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "validate: batch")
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Record.RowNumber < results[b].Record.RowNumber
	})

	batch := &BatchResult{Results: results}
	for _, r := range results {
		batch.Findings = append(batch.Findings, r.Errors...)
		batch.Findings = append(batch.Findings, r.Warnings...)
		batch.Criticals += len(r.Errors)
		batch.Warnings += len(r.Warnings)
		if r.Accepted {
			batch.Accepted = append(batch.Accepted, r.Record)
		}
	}

	e.log.Info("validate: batch complete",
		zap.Int("records", len(recs)),
		zap.Int("accepted", len(batch.Accepted)),
		zap.Int("criticals", batch.Criticals),
		zap.Int("warnings", batch.Warnings),
	)
	return batch, nil
}

func newFinding(sev model.Severity, kind model.FindingKind, row int, msg, fix string, autoResolved bool) model.Finding {
	return model.Finding{
		Severity:     sev,
		Kind:         kind,
		RowNumber:    row,
		Message:      msg,
		SuggestedFix: fix,
		AutoResolved: autoResolved,
	}
}
