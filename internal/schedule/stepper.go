// Package schedule computes calendar date sequences for installment plans
// and recurrence rules.
//
// Each step unit has its own Stepper. Month steps clamp to the last valid
// day of the target month, so Jan 31 + 1 month is Feb 29 in a leap year.
package schedule

import (
	"fmt"
	"time"

	"carteira/internal/core"
)

// Stepper moves a date by n units. n may be negative.
type Stepper interface {
	Step(d core.Date, n int) core.Date
}

// DayStepper steps by calendar days.
type DayStepper struct{}

func (DayStepper) Step(d core.Date, n int) core.Date {
	return core.Date{Time: d.AddDate(0, 0, n)}
}

// WeekStepper steps by seven-day weeks.
type WeekStepper struct{}

func (WeekStepper) Step(d core.Date, n int) core.Date {
	return core.Date{Time: d.AddDate(0, 0, 7*n)}
}

// MonthStepper steps by calendar months, clamping the day of month.
type MonthStepper struct{}

func (MonthStepper) Step(d core.Date, n int) core.Date {
	y, m, day := d.Date()
	// Normalize month arithmetic on the first of the month, then clamp.
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := daysIn(first.Year(), first.Month())
	if day > last {
		day = last
	}
	return core.Date{Time: time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)}
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var steppers = map[core.Unit]Stepper{
	core.Day:   DayStepper{},
	core.Week:  WeekStepper{},
	core.Month: MonthStepper{},
}

// StepperFor returns the stepper registered for unit.
func StepperFor(unit core.Unit) (Stepper, error) {
	s, ok := steppers[unit]
	if !ok {
		return nil, core.Invalidf("unit", "unknown unit %q", unit)
	}
	return s, nil
}

// Shift moves d by steps units. Unknown units are reported as errors.
func Shift(d core.Date, steps int, unit core.Unit) (core.Date, error) {
	s, err := StepperFor(unit)
	if err != nil {
		return core.Date{}, err
	}
	return s.Step(d, steps), nil
}

// ShiftMonths moves d by months calendar months with end-of-month clamping.
func ShiftMonths(d core.Date, months int) core.Date {
	return MonthStepper{}.Step(d, months)
}

// mustStepper is used where the unit was already validated.
func mustStepper(unit core.Unit) Stepper {
	s, err := StepperFor(unit)
	if err != nil {
		panic(fmt.Sprintf("schedule: %v", err))
	}
	return s
}
