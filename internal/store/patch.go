package store

import "carteira/internal/core"

// Patch describes a partial update. Details replaces every editable field;
// Installment and Recurrence replace the membership they name.
type Patch struct {
	Details     *core.Details
	Cleared     *bool
	Installment *core.Installment
	Recurrence  *core.Recurrence
}

// Apply returns tx with p applied. Pointers in p are copied, never shared.
func (p Patch) Apply(tx core.Transaction) core.Transaction {
	if p.Details != nil {
		tx.Details = *p.Details
	}
	if p.Cleared != nil {
		tx.Cleared = *p.Cleared
	}
	if p.Installment != nil {
		in := *p.Installment
		tx.Installment = &in
	}
	if p.Recurrence != nil {
		tx.Recurrence = CloneRecurrence(p.Recurrence)
	}
	return tx
}

// Clone deep-copies tx so the result shares no pointers with it.
func Clone(tx core.Transaction) core.Transaction {
	if tx.Installment != nil {
		in := *tx.Installment
		tx.Installment = &in
	}
	tx.Recurrence = CloneRecurrence(tx.Recurrence)
	return tx
}

func CloneRecurrence(r *core.Recurrence) *core.Recurrence {
	if r == nil {
		return nil
	}
	out := *r
	if r.Rule.Occurrences != nil {
		n := *r.Rule.Occurrences
		out.Rule.Occurrences = &n
	}
	return &out
}
