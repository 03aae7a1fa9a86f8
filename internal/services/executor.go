package services

import (
	"context"
	"fmt"

	"carteira/internal/core"
	"carteira/internal/store"
)

// Result reports what a plan did.
type Result struct {
	Scope    core.Scope         `json:"scope,omitempty"`
	GroupID  string             `json:"group_id,omitempty"`
	Updated  []core.Transaction `json:"updated"`
	Deleted  int                `json:"deleted"`
	Inserted []core.Transaction `json:"inserted"`
}

// Rows is the number of rows the plan touched.
func (r Result) Rows() int {
	return len(r.Updated) + r.Deleted + len(r.Inserted)
}

// Executor runs plans against a store. By default every step is its own
// store call and a failure leaves earlier steps applied. With atomic set
// and a store.Transactor underneath, the whole plan commits or none of it.
type Executor struct {
	store  store.Store
	atomic bool
}

func NewExecutor(s store.Store, atomic bool) *Executor {
	return &Executor{store: s, atomic: atomic}
}

// Planner builds a plan from reads against s.
type Planner func(ctx context.Context, s store.Store) (Plan, error)

// Apply runs plan: updates, then delete, then insert. It stops at the
// first failure and returns a *core.StorageError naming the step.
func (x *Executor) Apply(ctx context.Context, plan Plan) (Result, error) {
	return x.Run(ctx, func(context.Context, store.Store) (Plan, error) { return plan, nil })
}

// Run builds a plan with planner and applies it. In atomic mode the reads
// the planner makes share the transaction with the writes, so the group
// cannot change between the fetch and the last write. Planner errors are
// returned unchanged.
func (x *Executor) Run(ctx context.Context, planner Planner) (Result, error) {
	if tx, ok := x.store.(store.Transactor); ok && x.atomic {
		var res Result
		err := tx.WithinTx(ctx, func(s store.Store) error {
			plan, err := planner(ctx, s)
			if err != nil {
				return err
			}
			res, err = apply(ctx, s, plan)
			return err
		})
		if err != nil {
			return Result{Scope: res.Scope, GroupID: res.GroupID}, core.Storage("transaction", err)
		}
		return res, nil
	}
	plan, err := planner(ctx, x.store)
	if err != nil {
		return Result{}, err
	}
	return apply(ctx, x.store, plan)
}

func apply(ctx context.Context, s store.Store, plan Plan) (Result, error) {
	res := Result{Scope: plan.Scope, GroupID: plan.GroupID}
	for _, u := range plan.Updates {
		row, err := s.UpdateByID(ctx, u.ID, u.Patch)
		if err != nil {
			return res, core.Storage(fmt.Sprintf("update %s", u.ID), err)
		}
		res.Updated = append(res.Updated, row)
	}
	if plan.Delete != nil {
		n, err := s.DeleteByFilter(ctx, *plan.Delete)
		if err != nil {
			return res, core.Storage("delete", err)
		}
		res.Deleted = n
	}
	if len(plan.Inserts) > 0 {
		rows, err := s.InsertMany(ctx, plan.Inserts)
		if err != nil {
			return res, core.Storage("insert", err)
		}
		res.Inserted = rows
	}
	return res, nil
}
