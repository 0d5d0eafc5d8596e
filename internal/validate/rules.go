package validate

import (
	"context"
	"fmt"
	"math"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/payfile"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/resolve"
)

// vatTolerance is the absolute penny tolerance on the VAT check.
const vatTolerance = 0.01

// maxUnitDays is the most billable days a period can plausibly hold.
const maxUnitDays = 25

// validateRecord runs the rule sequence for one record. Identity and
// association resolution short-circuit: later rules are meaningless without
// a resolved contractor. A record is accepted iff it produced no CRITICAL
// finding. The returned error is reserved for infrastructure failures.
func (e *Engine) validateRecord(ctx context.Context, rec payfile.Record, intermediaryID string, period model.PayPeriod, batchRates map[string]float64) (RecordResult, error) {
	res := RecordResult{
		Record: model.PayRecord{
			RowNumber:   rec.RowNumber,
			EmployeeID:  rec.EmployeeID,
			Forename:    rec.Forename,
			Surname:     rec.Surname,
			UnitDays:    rec.UnitDays,
			DayRate:     rec.DayRate,
			Amount:      rec.Amount,
			VATAmount:   rec.VATAmount,
			GrossAmount: rec.GrossAmount,
			TotalHours:  rec.TotalHours,
			RecordType:  rec.RecordType,
			Notes:       rec.Notes,
			IsActive:    true,
		},
	}

	// Rule 1: identity resolution.
	match := resolve.Resolve(rec.Forename, rec.Surname, e.refs.Contractors, e.cfg.NameMatchThreshold)
	switch match.Kind {
	case resolve.MatchNone:
		res.Errors = append(res.Errors, newFinding(
			model.SeverityCritical, model.FindingUnknownContractor, rec.RowNumber,
			fmt.Sprintf("no contractor matches name %q %q", rec.Forename, rec.Surname),
			"check the spelling against the contractor register, or add the contractor before resubmitting",
			false,
		))
		return res, nil
	case resolve.MatchFuzzy:
		res.Warnings = append(res.Warnings, newFinding(
			model.SeverityWarning, model.FindingFuzzyNameMatch, rec.RowNumber,
			fmt.Sprintf("name %q matched contractor %q %q with confidence %d",
				rec.Forename+" "+rec.Surname, match.Contractor.FirstName, match.Contractor.LastName, match.Confidence),
			"",
			true,
		))
	}
	contractor := match.Contractor
	res.Record.ContractorID = &contractor.ID

	// Rule 2: permanent staff must never appear in a contractor pay file.
	if e.refs.Blocklist[resolve.NormalizeFullName(contractor.FirstName, contractor.LastName)] {
		res.Errors = append(res.Errors, newFinding(
			model.SeverityCritical, model.FindingPermanentStaffMember, rec.RowNumber,
			fmt.Sprintf("%s %s is on the permanent staff list and cannot be paid as a contractor",
				contractor.FirstName, contractor.LastName),
			"remove the row; permanent staff are paid through payroll",
			false,
		))
		return res, nil
	}

	// Rule 3: a valid association must cover the whole period.
	assoc := e.findAssociation(contractor.ID, intermediaryID, period)
	if assoc == nil {
		res.Errors = append(res.Errors, newFinding(
			model.SeverityCritical, model.FindingNoUmbrellaAssociation, rec.RowNumber,
			fmt.Sprintf("%s %s has no association with this intermediary covering %s to %s",
				contractor.FirstName, contractor.LastName,
				period.WorkStartDate.Format("2006-01-02"), period.WorkEndDate.Format("2006-01-02")),
			"register the contractor with the intermediary for this period",
			false,
		))
		return res, nil
	}
	res.Record.AssociationID = &assoc.ID

	// Rule 4: VAT must be the configured rate of the net amount, to the penny.
	if rec.RecordType != model.RecordExpense {
		expected := rec.Amount * e.cfg.VATRate
		if math.Abs(rec.VATAmount-expected) > vatTolerance {
			res.Errors = append(res.Errors, newFinding(
				model.SeverityCritical, model.FindingInvalidVAT, rec.RowNumber,
				fmt.Sprintf("VAT %.2f does not match expected %.2f (%.0f%% of %.2f)",
					rec.VATAmount, expected, e.cfg.VATRate*100, rec.Amount),
				fmt.Sprintf("correct the VAT amount to %.2f", expected),
				false,
			))
		}
	}

	// Rule 5: overtime day rate must track the standard rate.
	if rec.RecordType == model.RecordOvertime {
		if err := e.checkOvertimeRate(ctx, rec, contractor.ID, period, batchRates, &res); err != nil {
			return res, err
		}
	}

	// Rule 6: flag standard-rate drift against the previous period.
	if rec.RecordType == model.RecordStandard {
		if err := e.checkRateChange(ctx, rec, contractor.ID, period, &res); err != nil {
			return res, err
		}
	}

	// Rule 7: hours sanity.
	if rec.UnitDays > maxUnitDays || rec.UnitDays < 0 {
		res.Warnings = append(res.Warnings, newFinding(
			model.SeverityWarning, model.FindingUnusualHours, rec.RowNumber,
			fmt.Sprintf("unit days %g is outside the expected range 0-%d for a single period", rec.UnitDays, maxUnitDays),
			"",
			false,
		))
	}

	res.Accepted = len(res.Errors) == 0
	return res, nil
}

func (e *Engine) findAssociation(contractorID, intermediaryID string, period model.PayPeriod) *model.Association {
	for _, a := range e.refs.Associations[contractorID] {
		if a.IntermediaryID == intermediaryID && a.Covers(period) {
			return &a
		}
	}
	return nil
}

func (e *Engine) checkOvertimeRate(ctx context.Context, rec payfile.Record, contractorID string, period model.PayPeriod, batchRates map[string]float64, res *RecordResult) error {
	std, ok := batchRates[contractorID]
	if !ok {
		var err error
		std, ok, err = e.history.StandardRateBefore(ctx, contractorID, period.WorkStartDate)
		if err != nil {
			return err
		}
	}
	if !ok || std <= 0 {
		// No standard rate to compare against: cannot validate, do not block.
		res.Warnings = append(res.Warnings, newFinding(
			model.SeverityWarning, model.FindingInvalidOvertimeRate, rec.RowNumber,
			fmt.Sprintf("overtime rate %.2f cannot be validated: no standard rate on record", rec.DayRate),
			"",
			false,
		))
		return nil
	}

	expected := std * e.cfg.OvertimeMultiplier
	tolerance := expected * e.cfg.OvertimeTolerancePct / 100
	if math.Abs(rec.DayRate-expected) > tolerance {
		res.Errors = append(res.Errors, newFinding(
			model.SeverityCritical, model.FindingInvalidOvertimeRate, rec.RowNumber,
			fmt.Sprintf("overtime rate %.2f does not match expected %.2f (standard %.2f x %.2g)",
				rec.DayRate, expected, std, e.cfg.OvertimeMultiplier),
			fmt.Sprintf("correct the overtime rate to %.2f", expected),
			false,
		))
	}
	return nil
}

func (e *Engine) checkRateChange(ctx context.Context, rec payfile.Record, contractorID string, period model.PayPeriod, res *RecordResult) error {
	if rec.DayRate <= 0 {
		return nil
	}
	prior, ok, err := e.history.StandardRateBefore(ctx, contractorID, period.WorkStartDate)
	if err != nil {
		return err
	}
	if !ok || prior <= 0 {
		return nil
	}

	changePct := math.Abs(rec.DayRate-prior) / prior * 100
	if changePct > e.cfg.RateChangeAlertPct {
		res.Warnings = append(res.Warnings, newFinding(
			model.SeverityWarning, model.FindingRateChange, rec.RowNumber,
			fmt.Sprintf("day rate changed %.1f%%: %.2f previously, %.2f now", changePct, prior, rec.DayRate),
			"",
			false,
		))
	}
	return nil
}
