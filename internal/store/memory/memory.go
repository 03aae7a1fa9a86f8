// Package memory is an in-process store.Backend used by tests and by
// DATA_BACKEND=memory.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/ids"
	"carteira/internal/store"
)

// Store is safe for concurrent use. Transaction writes wait for a running
// WithinTx, so a rollback never discards a write made outside it.
type Store struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	items    []core.Transaction
	accounts []core.Account
	ids      ids.Allocator
	now      func() time.Time
}

type Option func(*Store)

// WithAllocator overrides the row id allocator.
func WithAllocator(a ids.Allocator) Option {
	return func(s *Store) { s.ids = a }
}

// WithClock overrides the created_at clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{ids: ids.UUID{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromFiles seeds accounts from base/seed_accounts.txt, one name per line.
// A default account is created when the file is missing or empty.
func NewFromFiles(base string, opts ...Option) *Store {
	s := New(opts...)
	names := readLines(filepath.Join(base, "seed_accounts.txt"))
	if len(names) == 0 {
		names = []string{"Conto corrente"}
	}
	for _, n := range names {
		s.accounts = append(s.accounts, core.Account{
			ID:                      s.ids.NewID(),
			Name:                    n,
			IncludeInMonthlySummary: true,
			CreatedAt:               s.now().UTC(),
		})
	}
	return s
}

func (s *Store) Query(_ context.Context, f store.Filter, order ...store.Order) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.items {
		if f.Match(tx) {
			out = append(out, store.Clone(tx))
		}
	}
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		return store.Compare(a, b, order)
	})
	return out, nil
}

// InsertMany validates every row before storing any of them.
func (s *Store) InsertMany(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.insertMany(txs)
}

func (s *Store) UpdateByID(_ context.Context, id string, p store.Patch) (core.Transaction, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.updateByID(id, p)
}

// UpdateByFilter is all-or-nothing: one invalid result rejects the batch.
func (s *Store) UpdateByFilter(_ context.Context, f store.Filter, p store.Patch) ([]core.Transaction, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.updateByFilter(f, p)
}

func (s *Store) DeleteByFilter(_ context.Context, f store.Filter) (int, error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.deleteByFilter(f)
}

func (s *Store) insertMany(txs []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	staged := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
		tx = store.Clone(tx)
		if tx.ID == "" {
			tx.ID = s.ids.NewID()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		staged = append(staged, tx)
	}
	s.items = append(s.items, staged...)
	return cloneAll(staged), nil
}

func (s *Store) updateByID(id string, p store.Patch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.items {
		if tx.ID != id {
			continue
		}
		next := p.Apply(tx)
		if err := next.Validate(); err != nil {
			return core.Transaction{}, err
		}
		s.items[i] = next
		return store.Clone(next), nil
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) updateByFilter(f store.Filter, p store.Patch) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := make(map[int]core.Transaction)
	for i, tx := range s.items {
		if !f.Match(tx) {
			continue
		}
		next := p.Apply(tx)
		if err := next.Validate(); err != nil {
			return nil, err
		}
		updated[i] = next
	}
	out := make([]core.Transaction, 0, len(updated))
	for i := range s.items {
		if next, ok := updated[i]; ok {
			s.items[i] = next
			out = append(out, store.Clone(next))
		}
	}
	return out, nil
}

func (s *Store) deleteByFilter(f store.Filter) (int, error) {
	if f.IsEmpty() {
		return 0, store.ErrEmptyFilter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.items)
	s.items = slices.DeleteFunc(s.items, f.Match)
	return before - len(s.items), nil
}

// WithinTx runs fn against a view of the store and restores the previous
// rows if fn fails. Writes through s itself block until fn returns, so fn
// must only write through the view it is given.
func (s *Store) WithinTx(_ context.Context, fn func(store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := cloneAll(s.items)
	s.mu.Unlock()

	if err := fn(txView{s}); err != nil {
		s.mu.Lock()
		s.items = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) InsertAccount(_ context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return core.Account{}, core.Invalidf("name", "account name is empty")
	}
	if err := a.InitialBalance.Validate(); err != nil {
		return core.Account{}, core.Invalid("initial_balance", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = s.ids.NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.accounts = append(s.accounts, a)
	return a, nil
}

// UpdateAccount replaces the editable fields of account a.ID. CreatedAt is
// kept from the stored account.
func (s *Store) UpdateAccount(_ context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return core.Account{}, core.Invalidf("name", "account name is empty")
	}
	if err := a.InitialBalance.Validate(); err != nil {
		return core.Account{}, core.Invalid("initial_balance", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.accounts {
		if cur.ID != a.ID {
			continue
		}
		a.CreatedAt = cur.CreatedAt
		s.accounts[i] = a
		return a, nil
	}
	return core.Account{}, core.ErrNotFound
}

// DeleteAccount removes the account. Its transactions are left alone.
func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.accounts)
	s.accounts = slices.DeleteFunc(s.accounts, func(a core.Account) bool { return a.ID == id })
	if len(s.accounts) == before {
		return core.ErrNotFound
	}
	return nil
}

// txView is the store WithinTx hands out. Its writes skip txMu, which the
// running transaction already holds.
type txView struct {
	s *Store
}

func (v txView) Query(ctx context.Context, f store.Filter, order ...store.Order) ([]core.Transaction, error) {
	return v.s.Query(ctx, f, order...)
}

func (v txView) InsertMany(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	return v.s.insertMany(txs)
}

func (v txView) UpdateByID(_ context.Context, id string, p store.Patch) (core.Transaction, error) {
	return v.s.updateByID(id, p)
}

func (v txView) UpdateByFilter(_ context.Context, f store.Filter, p store.Patch) ([]core.Transaction, error) {
	return v.s.updateByFilter(f, p)
}

func (v txView) DeleteByFilter(_ context.Context, f store.Filter) (int, error) {
	return v.s.deleteByFilter(f)
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func cloneAll(in []core.Transaction) []core.Transaction {
	out := make([]core.Transaction, len(in))
	for i, tx := range in {
		out[i] = store.Clone(tx)
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

var (
	_ store.Backend    = (*Store)(nil)
	_ store.Transactor = (*Store)(nil)
	_ store.Store      = txView{}
)
