package core

import (
	"encoding/json"
	"fmt"
)

const (
	Day   Unit = "day"
	Week  Unit = "week"
	Month Unit = "month"
)

// IndefiniteBatch is how many occurrences an indefinite rule materializes.
// Nothing extends the batch later.
const IndefiniteBatch = 12

// MaxRepeat caps installment totals, occurrence counts and intervals so a
// single request never materializes an unbounded number of rows.
const MaxRepeat = 1000

const (
	RepeatNone        RepeatMode = "none"
	RepeatInstallment RepeatMode = "installment"
	RepeatAdvanced    RepeatMode = "advanced"
)

const (
	ScopeOnly      Scope = "only"
	ScopeFromHere  Scope = "from_here"
	ScopeFromFirst Scope = "from_first"
)

type (
	Unit       string
	RepeatMode string
	Scope      string

	// RecurrenceRule is the snapshot stored on every row of a recurrence
	// group. Occurrences is nil when the rule was indefinite.
	RecurrenceRule struct {
		Interval    int  `json:"interval"`
		Unit        Unit `json:"unit"`
		Indefinite  bool `json:"indefinite"`
		Occurrences *int `json:"occurrences"`
	}

	InstallmentPlan struct {
		StartIndex int `json:"start_index"`
		Total      int `json:"total"`
	}

	// RepeatSpec says how one entered transaction expands into rows.
	RepeatSpec struct {
		Mode        RepeatMode      `json:"mode"`
		Installment InstallmentPlan `json:"installment"`
		Rule        RecurrenceRule  `json:"rule"`
	}
)

func (u Unit) Valid() bool {
	switch u {
	case Day, Week, Month:
		return true
	}
	return false
}

func (s Scope) Valid() bool {
	switch s {
	case ScopeOnly, ScopeFromHere, ScopeFromFirst:
		return true
	}
	return false
}

// ParseScope maps a request value onto a Scope. The empty string is
// returned as is so callers can tell "not given" from "only".
func ParseScope(s string) (Scope, error) {
	sc := Scope(s)
	if s == "" || sc.Valid() {
		return sc, nil
	}
	return "", Invalidf("scope", "unknown scope %q", s)
}

// NewRecurrenceRule builds a closed rule with a fixed occurrence count.
func NewRecurrenceRule(interval int, unit Unit, occurrences int) RecurrenceRule {
	return RecurrenceRule{Interval: interval, Unit: unit, Occurrences: &occurrences}
}

// NewIndefiniteRule builds an open-ended rule.
func NewIndefiniteRule(interval int, unit Unit) RecurrenceRule {
	return RecurrenceRule{Interval: interval, Unit: unit, Indefinite: true}
}

func (r RecurrenceRule) Validate() error {
	if r.Interval < 1 || r.Interval > MaxRepeat {
		return Invalidf("interval", "interval must be between 1 and %d, got %d", MaxRepeat, r.Interval)
	}
	if !r.Unit.Valid() {
		return Invalidf("unit", "unknown unit %q", r.Unit)
	}
	if r.Indefinite || r.Occurrences == nil {
		return nil
	}
	if n := *r.Occurrences; n < 1 || n > MaxRepeat {
		return Invalidf("occurrences", "occurrences must be between 1 and %d, got %d", MaxRepeat, n)
	}
	return nil
}

// Count is the number of rows the rule materializes.
func (r RecurrenceRule) Count() int {
	if r.Indefinite {
		return IndefiniteBatch
	}
	if r.Occurrences == nil || *r.Occurrences < 1 {
		return 1
	}
	return *r.Occurrences
}

// Snapshot returns the rule as it is persisted: occurrences is dropped for
// indefinite rules and pinned to Count otherwise.
func (r RecurrenceRule) Snapshot() RecurrenceRule {
	out := RecurrenceRule{Interval: r.Interval, Unit: r.Unit, Indefinite: r.Indefinite}
	if !r.Indefinite {
		n := r.Count()
		out.Occurrences = &n
	}
	return out
}

// DecodeRecurrenceRule parses and validates a persisted rule snapshot.
func DecodeRecurrenceRule(data []byte) (RecurrenceRule, error) {
	var raw struct {
		Interval    *int    `json:"interval"`
		Unit        *string `json:"unit"`
		Indefinite  bool    `json:"indefinite"`
		Occurrences *int    `json:"occurrences"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return RecurrenceRule{}, fmt.Errorf("decode recurrence rule: %w", err)
	}
	if raw.Interval == nil || raw.Unit == nil {
		return RecurrenceRule{}, Invalidf("recurrence_rule", "missing interval or unit in %s", data)
	}
	r := RecurrenceRule{
		Interval:    *raw.Interval,
		Unit:        Unit(*raw.Unit),
		Indefinite:  raw.Indefinite,
		Occurrences: raw.Occurrences,
	}
	if err := r.Validate(); err != nil {
		return RecurrenceRule{}, err
	}
	if r.Indefinite {
		r.Occurrences = nil
	}
	return r, nil
}

func (p InstallmentPlan) Validate() error {
	if p.StartIndex < 1 {
		return Invalidf("start_index", "start index must be at least 1, got %d", p.StartIndex)
	}
	if p.Total < p.StartIndex {
		return Invalidf("total", "total %d is below start index %d", p.Total, p.StartIndex)
	}
	if p.Total > MaxRepeat {
		return Invalidf("total", "total must be at most %d, got %d", MaxRepeat, p.Total)
	}
	return nil
}

// NoRepeat expands into a single plain row.
func NoRepeat() RepeatSpec { return RepeatSpec{Mode: RepeatNone} }

// Installments expands into indices start..total.
func Installments(start, total int) RepeatSpec {
	return RepeatSpec{Mode: RepeatInstallment, Installment: InstallmentPlan{StartIndex: start, Total: total}}
}

// Advanced expands into a rule-generated recurrence.
func Advanced(rule RecurrenceRule) RepeatSpec {
	return RepeatSpec{Mode: RepeatAdvanced, Rule: rule}
}

// Normalized maps the empty mode onto RepeatNone.
func (s RepeatSpec) Normalized() RepeatSpec {
	if s.Mode == "" {
		s.Mode = RepeatNone
	}
	return s
}

// Validate checks a repeat setting used at creation.
func (s RepeatSpec) Validate() error {
	switch s.Normalized().Mode {
	case RepeatNone:
		return nil
	case RepeatInstallment:
		return s.Installment.Validate()
	case RepeatAdvanced:
		return s.Rule.Validate()
	}
	return Invalidf("repeat", "unknown repeat mode %q", s.Mode)
}
