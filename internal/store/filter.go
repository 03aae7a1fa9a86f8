package store

import (
	"slices"
	"strings"

	"carteira/internal/core"
)

// OrderField names a sortable column.
type OrderField string

const (
	ByDate             OrderField = "date"
	ByCreatedAt        OrderField = "created_at"
	ByInstallmentIndex OrderField = "installment_index"
)

type Order struct {
	Field OrderField
	Desc  bool
}

// DefaultOrder is used when a query names no order.
var DefaultOrder = []Order{{Field: ByDate}, {Field: ByCreatedAt}}

// Filter selects transactions. All set fields are ANDed. AccountIDs
// matches account_id, account_from_id or account_to_id; Search matches
// description or note, case-insensitively.
type Filter struct {
	IDs                 []string
	InstallmentGroupID  string
	RecurrenceGroupID   string
	MinInstallmentIndex int       // 0 means unbounded
	DateFrom            core.Date // inclusive, zero means unbounded
	DateTo              core.Date // inclusive, zero means unbounded
	AccountIDs          []string
	CategoryIDs         []string
	Search              string
	UnclearedOnly       bool
}

// ByID selects a single row.
func ByID(id string) Filter { return Filter{IDs: []string{id}} }

// IsEmpty reports whether f matches every row.
func (f Filter) IsEmpty() bool {
	return len(f.IDs) == 0 &&
		f.InstallmentGroupID == "" &&
		f.RecurrenceGroupID == "" &&
		f.MinInstallmentIndex == 0 &&
		f.DateFrom.IsZero() &&
		f.DateTo.IsZero() &&
		len(f.AccountIDs) == 0 &&
		len(f.CategoryIDs) == 0 &&
		strings.TrimSpace(f.Search) == "" &&
		!f.UnclearedOnly
}

// Match evaluates f against one row in memory.
func (f Filter) Match(tx core.Transaction) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, tx.ID) {
		return false
	}
	if f.InstallmentGroupID != "" && (tx.Installment == nil || tx.Installment.GroupID != f.InstallmentGroupID) {
		return false
	}
	if f.RecurrenceGroupID != "" && (tx.Recurrence == nil || tx.Recurrence.GroupID != f.RecurrenceGroupID) {
		return false
	}
	if f.MinInstallmentIndex > 0 && (tx.Installment == nil || tx.Installment.Index < f.MinInstallmentIndex) {
		return false
	}
	if !f.DateFrom.IsZero() && tx.Date.Before(f.DateFrom) {
		return false
	}
	if !f.DateTo.IsZero() && tx.Date.After(f.DateTo) {
		return false
	}
	if len(f.AccountIDs) > 0 &&
		!slices.Contains(f.AccountIDs, tx.AccountID) &&
		!slices.Contains(f.AccountIDs, tx.AccountFromID) &&
		!slices.Contains(f.AccountIDs, tx.AccountToID) {
		return false
	}
	if len(f.CategoryIDs) > 0 && !slices.Contains(f.CategoryIDs, tx.CategoryID) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(tx.Description), q) &&
			!strings.Contains(strings.ToLower(tx.Note), q) {
			return false
		}
	}
	if f.UnclearedOnly && tx.Cleared {
		return false
	}
	return true
}

// Compare orders a before b under orders; it returns <0, 0 or >0.
func Compare(a, b core.Transaction, orders []Order) int {
	if len(orders) == 0 {
		orders = DefaultOrder
	}
	for _, o := range orders {
		var c int
		switch o.Field {
		case ByDate:
			c = a.Date.Compare(b.Date.Time)
		case ByCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case ByInstallmentIndex:
			c = installmentIndex(a) - installmentIndex(b)
		}
		if o.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func installmentIndex(tx core.Transaction) int {
	if tx.Installment == nil {
		return 0
	}
	return tx.Installment.Index
}
