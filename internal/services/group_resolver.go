package services

import (
	"context"
	"fmt"

	"carteira/internal/core"
	"carteira/internal/store"
)

// GroupResolver finds the rows of a target's group that a scope reaches.
type GroupResolver struct {
	store store.Store
}

func NewGroupResolver(s store.Store) *GroupResolver {
	return &GroupResolver{store: s}
}

// InstallmentMembers returns the target's installment rows ordered by
// index. With ScopeFromHere only rows at or after the target's index are
// returned.
func (g *GroupResolver) InstallmentMembers(ctx context.Context, target core.Transaction, scope core.Scope) ([]core.Transaction, error) {
	if target.Installment == nil {
		return nil, fmt.Errorf("transaction %s has no installment group", target.ID)
	}
	f := store.Filter{InstallmentGroupID: target.Installment.GroupID}
	if scope == core.ScopeFromHere {
		f.MinInstallmentIndex = target.Installment.Index
	}
	rows, err := g.store.Query(ctx, f, store.Order{Field: store.ByInstallmentIndex}, store.Order{Field: store.ByCreatedAt})
	if err != nil {
		return nil, core.Storage("query installment group", err)
	}
	return rows, nil
}

// RecurrenceMembers returns every row of the target's recurrence group
// ordered by date.
func (g *GroupResolver) RecurrenceMembers(ctx context.Context, target core.Transaction) ([]core.Transaction, error) {
	if target.Recurrence == nil {
		return nil, fmt.Errorf("transaction %s has no recurrence group", target.ID)
	}
	rows, err := g.store.Query(ctx, store.Filter{RecurrenceGroupID: target.Recurrence.GroupID}, store.DefaultOrder...)
	if err != nil {
		return nil, core.Storage("query recurrence group", err)
	}
	return rows, nil
}

// DeleteFilter selects the rows a scoped delete of target removes.
// Callers pass the scope returned by ResolveEffectiveScope.
func DeleteFilter(target core.Transaction, scope core.Scope) store.Filter {
	switch {
	case scope == core.ScopeOnly || !target.IsGrouped():
		return store.ByID(target.ID)
	case target.Installment != nil:
		f := store.Filter{InstallmentGroupID: target.Installment.GroupID}
		if scope == core.ScopeFromHere {
			f.MinInstallmentIndex = target.Installment.Index
		}
		return f
	default:
		f := store.Filter{RecurrenceGroupID: target.Recurrence.GroupID}
		if scope == core.ScopeFromHere {
			f.DateFrom = target.Date
		}
		return f
	}
}

// positionOf is the index of id in rows, or 0 when absent.
func positionOf(rows []core.Transaction, id string) int {
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return 0
}
