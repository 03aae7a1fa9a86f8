// Package store defines the persistence contract the transaction engine
// runs against. Implementations live in internal/store/memory and
// internal/storage.
package store

import (
	"context"
	"errors"

	"carteira/internal/core"
)

// ErrEmptyFilter is returned by DeleteByFilter when the filter selects
// every row.
var ErrEmptyFilter = errors.New("refusing to delete with an empty filter")

// Ports for the storage backends.
type (
	// Store persists transactions. Each call is atomic on its own; a
	// sequence of calls is not.
	Store interface {
		// Query returns rows matching f. Without orders rows come back by
		// date, then created_at.
		Query(ctx context.Context, f Filter, order ...Order) ([]core.Transaction, error)
		// InsertMany stores all rows or none. Rows without an id get one.
		InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
		// UpdateByID applies p to one row and returns it, or core.ErrNotFound.
		UpdateByID(ctx context.Context, id string, p Patch) (core.Transaction, error)
		// UpdateByFilter applies p to every row matching f.
		UpdateByFilter(ctx context.Context, f Filter, p Patch) ([]core.Transaction, error)
		// DeleteByFilter removes every row matching f and reports how many.
		DeleteByFilter(ctx context.Context, f Filter) (int, error)
	}

	// Transactor is implemented by stores that can run several calls as
	// one unit.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(Store) error) error
	}

	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		InsertAccount(ctx context.Context, a core.Account) (core.Account, error)
		// UpdateAccount replaces name, initial balance and flags of a.ID,
		// or returns core.ErrNotFound.
		UpdateAccount(ctx context.Context, a core.Account) (core.Account, error)
		// DeleteAccount removes the account; its transactions stay.
		DeleteAccount(ctx context.Context, id string) error
	}

	// Backend is what the service layer needs from a storage backend.
	Backend interface {
		Store
		AccountStore
	}
)
