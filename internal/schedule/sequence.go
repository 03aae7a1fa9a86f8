package schedule

import "carteira/internal/core"

// Generate returns count dates; element i is start shifted by i*interval
// units. Every element is computed from start, never from its predecessor,
// so month clamping does not drift (Jan 31, Feb 29, Mar 31).
func Generate(start core.Date, count, interval int, unit core.Unit) ([]core.Date, error) {
	if err := start.Validate(); err != nil {
		return nil, core.Invalid("start", err)
	}
	if count < 1 || count > core.MaxRepeat {
		return nil, core.Invalidf("count", "count must be between 1 and %d, got %d", core.MaxRepeat, count)
	}
	if interval < 1 || interval > core.MaxRepeat {
		return nil, core.Invalidf("interval", "interval must be between 1 and %d, got %d", core.MaxRepeat, interval)
	}
	if !unit.Valid() {
		return nil, core.Invalidf("unit", "unknown unit %q", unit)
	}

	step := mustStepper(unit)
	dates := make([]core.Date, count)
	for i := range dates {
		dates[i] = step.Step(start, i*interval)
	}
	return dates, nil
}

// ForRule generates the dates a recurrence rule materializes from start.
func ForRule(start core.Date, rule core.RecurrenceRule) ([]core.Date, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return Generate(start, rule.Count(), rule.Interval, rule.Unit)
}

// FirstInstallmentDate back-computes the date of installment 1 from an
// anchor row dated anchor with the given index.
func FirstInstallmentDate(anchor core.Date, anchorIndex int) core.Date {
	return ShiftMonths(anchor, -(anchorIndex - 1))
}

// InstallmentDate is the date of installment index given the first date.
func InstallmentDate(first core.Date, index int) core.Date {
	return ShiftMonths(first, index-1)
}
