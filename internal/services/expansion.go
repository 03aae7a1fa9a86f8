package services

import (
	"context"

	"carteira/internal/core"
	"carteira/internal/ids"
	"carteira/internal/schedule"
	"carteira/internal/store"
)

// Update patches one row by id.
type Update struct {
	ID    string
	Patch store.Patch
}

// Plan is the ordered list of store calls one user action turns into.
// The executor runs Updates, then Delete, then Inserts.
type Plan struct {
	Updates []Update
	Delete  *store.Filter
	Inserts []core.Transaction

	Scope   core.Scope
	GroupID string
}

// ExpansionEngine turns a create or a scoped edit into a Plan. It never
// writes; reads go through the GroupResolver.
type ExpansionEngine struct {
	ids    ids.Allocator
	groups *GroupResolver
}

func NewExpansionEngine(alloc ids.Allocator, groups *GroupResolver) *ExpansionEngine {
	return &ExpansionEngine{ids: alloc, groups: groups}
}

// On returns an engine that reads groups through s.
func (e *ExpansionEngine) On(s store.Store) *ExpansionEngine {
	return &ExpansionEngine{ids: e.ids, groups: NewGroupResolver(s)}
}

// PlanCreate materializes every row of a new transaction. All rows go out
// in a single insert.
func (e *ExpansionEngine) PlanCreate(d core.Details, spec core.RepeatSpec) (Plan, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return Plan{}, err
	}
	spec = spec.Normalized()
	if err := spec.Validate(); err != nil {
		return Plan{}, core.Invalid("repeat", err)
	}

	switch spec.Mode {
	case core.RepeatInstallment:
		return e.createInstallments(d, spec.Installment), nil
	case core.RepeatAdvanced:
		return e.createRecurrence(d, spec.Rule)
	default:
		return Plan{Inserts: []core.Transaction{{Details: d}}}, nil
	}
}

func (e *ExpansionEngine) createInstallments(d core.Details, p core.InstallmentPlan) Plan {
	groupID := e.ids.NewID()
	plan := Plan{GroupID: groupID, Inserts: make([]core.Transaction, 0, p.Total-p.StartIndex+1)}
	for i := p.StartIndex; i <= p.Total; i++ {
		row := core.Transaction{
			Details:     d,
			Installment: &core.Installment{GroupID: groupID, Index: i, Total: p.Total},
		}
		row.Date = schedule.ShiftMonths(d.Date, i-p.StartIndex)
		plan.Inserts = append(plan.Inserts, row)
	}
	return plan
}

func (e *ExpansionEngine) createRecurrence(d core.Details, rule core.RecurrenceRule) (Plan, error) {
	rule = rule.Snapshot()
	dates, err := schedule.ForRule(d.Date, rule)
	if err != nil {
		return Plan{}, err
	}
	groupID := e.ids.NewID()
	return Plan{GroupID: groupID, Inserts: recurrenceRows(d, groupID, rule, dates)}, nil
}

// PlanEdit resolves an edit of target. The requested scope is normalized
// first, so ungrouped rows are always edited alone.
func (e *ExpansionEngine) PlanEdit(ctx context.Context, target core.Transaction, d core.Details, spec core.RepeatSpec, requested core.Scope) (Plan, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return Plan{}, err
	}
	spec = spec.Normalized()
	if err := validateEditSpec(target, spec); err != nil {
		return Plan{}, err
	}
	scope, err := ResolveEffectiveScope(target, requested)
	if err != nil {
		return Plan{}, err
	}

	switch {
	case !target.IsGrouped() && spec.Mode == core.RepeatAdvanced:
		return e.planPromotion(target, d, spec.Rule)
	case scope == core.ScopeOnly:
		return Plan{
			Scope:   core.ScopeOnly,
			GroupID: target.GroupID(),
			Updates: []Update{{ID: target.ID, Patch: store.Patch{Details: &d}}},
		}, nil
	case target.Installment != nil:
		return e.planInstallmentEdit(ctx, target, d, spec, scope)
	default:
		return e.planRecurrenceEdit(ctx, target, d, spec, scope)
	}
}

func validateEditSpec(target core.Transaction, spec core.RepeatSpec) error {
	switch spec.Mode {
	case core.RepeatNone:
	case core.RepeatInstallment:
		if target.Recurrence != nil {
			return core.Invalidf("repeat", "transaction %s is recurring and cannot become an installment", target.ID)
		}
		// Totals below one are clamped when the plan is built.
		if spec.Installment.Total > core.MaxRepeat {
			return core.Invalidf("total", "total must be at most %d, got %d", core.MaxRepeat, spec.Installment.Total)
		}
	case core.RepeatAdvanced:
		if target.Installment != nil {
			return core.Invalid("repeat", core.ErrBothMemberships)
		}
		if err := spec.Rule.Validate(); err != nil {
			return err
		}
	default:
		return core.Invalidf("repeat", "unknown repeat mode %q", spec.Mode)
	}
	return nil
}

// planInstallmentEdit rewrites the target set of installment indices.
// Rows in the set get new details, a recomputed date and the new total;
// rows past the new total are removed and missing indices are created.
func (e *ExpansionEngine) planInstallmentEdit(ctx context.Context, target core.Transaction, d core.Details, spec core.RepeatSpec, scope core.Scope) (Plan, error) {
	current := target.Installment
	requested := current.Total
	if spec.Mode == core.RepeatInstallment {
		requested = spec.Installment.Total
	}
	newTotal := max(1, requested)
	lo := 1
	if scope == core.ScopeFromHere {
		newTotal = max(newTotal, current.Index)
		lo = current.Index
	}
	first := schedule.FirstInstallmentDate(d.Date, current.Index)

	rows, err := e.groups.InstallmentMembers(ctx, target, scope)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{Scope: scope, GroupID: current.GroupID}
	existing := make(map[int]bool, len(rows))
	overflow := false
	for _, r := range rows {
		idx := r.Installment.Index
		existing[idx] = true
		if idx > newTotal {
			overflow = true
			continue
		}
		if idx < lo {
			continue
		}
		patched := d
		patched.Date = schedule.InstallmentDate(first, idx)
		plan.Updates = append(plan.Updates, Update{ID: r.ID, Patch: store.Patch{
			Details:     &patched,
			Installment: &core.Installment{GroupID: current.GroupID, Index: idx, Total: newTotal},
		}})
	}
	if overflow {
		plan.Delete = &store.Filter{InstallmentGroupID: current.GroupID, MinInstallmentIndex: newTotal + 1}
	}
	for idx := lo; idx <= newTotal; idx++ {
		if existing[idx] {
			continue
		}
		row := core.Transaction{
			Details:     d,
			Installment: &core.Installment{GroupID: current.GroupID, Index: idx, Total: newTotal},
		}
		row.Date = schedule.InstallmentDate(first, idx)
		plan.Inserts = append(plan.Inserts, row)
	}
	return plan, nil
}

// planRecurrenceEdit deletes the reached rows and regenerates them from
// the effective rule. For from_first the start is moved back by the
// target's position in the group so the edited date stays on the target.
func (e *ExpansionEngine) planRecurrenceEdit(ctx context.Context, target core.Transaction, d core.Details, spec core.RepeatSpec, scope core.Scope) (Plan, error) {
	groupID := target.Recurrence.GroupID
	rule := target.Recurrence.Rule
	if spec.Mode == core.RepeatAdvanced {
		rule = spec.Rule
	}
	rule = rule.Snapshot()

	rows, err := e.groups.RecurrenceMembers(ctx, target)
	if err != nil {
		return Plan{}, err
	}

	start := d.Date
	del := store.Filter{RecurrenceGroupID: groupID}
	if scope == core.ScopeFromFirst {
		p := positionOf(rows, target.ID)
		if start, err = schedule.Shift(d.Date, -p*rule.Interval, rule.Unit); err != nil {
			return Plan{}, err
		}
	} else {
		del.DateFrom = target.Date
	}

	dates, err := schedule.ForRule(start, rule)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Scope:   scope,
		GroupID: groupID,
		Delete:  &del,
		Inserts: recurrenceRows(d, groupID, rule, dates),
	}, nil
}

// planPromotion turns a plain row into the first occurrence of a new
// recurrence and creates the occurrences after it.
func (e *ExpansionEngine) planPromotion(target core.Transaction, d core.Details, rule core.RecurrenceRule) (Plan, error) {
	rule = rule.Snapshot()
	dates, err := schedule.ForRule(d.Date, rule)
	if err != nil {
		return Plan{}, err
	}
	groupID := e.ids.NewID()
	return Plan{
		Scope:   core.ScopeOnly,
		GroupID: groupID,
		Updates: []Update{{ID: target.ID, Patch: store.Patch{
			Details:    &d,
			Recurrence: &core.Recurrence{GroupID: groupID, Rule: rule},
		}}},
		Inserts: recurrenceRows(d, groupID, rule, dates[1:]),
	}, nil
}

func recurrenceRows(d core.Details, groupID string, rule core.RecurrenceRule, dates []core.Date) []core.Transaction {
	rows := make([]core.Transaction, 0, len(dates))
	for _, date := range dates {
		row := core.Transaction{
			Details:    d,
			Recurrence: store.CloneRecurrence(&core.Recurrence{GroupID: groupID, Rule: rule}),
		}
		row.Date = date
		rows = append(rows, row)
	}
	return rows
}
