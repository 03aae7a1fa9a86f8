package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/core"
	"carteira/internal/ids"
	"carteira/internal/log"
	"carteira/internal/store"
	"carteira/internal/store/memory"
)

func laptop(d core.Date) core.Details {
	return core.Details{
		Date:        d,
		Description: "Laptop",
		Type:        core.Expense,
		Amount:      core.Money{Cents: 120000},
		AccountID:   "acc-1",
		CategoryID:  "cat-tech",
	}
}

func date(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

func newMemoryStore() *memory.Store {
	return memory.New(memory.WithAllocator(ids.NewSequence("row")), memory.WithClock(tickingClock()))
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

type testEnv struct {
	svc    *TransactionService
	store  *memory.Store
	groups *ids.Sequence
}

func newEnv(t *testing.T, opts ...Option) testEnv {
	t.Helper()
	st := newMemoryStore()
	groups := ids.NewSequence("grp")
	opts = append([]Option{WithAllocator(groups), WithLogger(quietLogger())}, opts...)
	return testEnv{svc: NewTransactionService(st, opts...), store: st, groups: groups}
}

// all returns every stored row and checks the row-level invariants.
func (e testEnv) all(t *testing.T) []core.Transaction {
	t.Helper()
	rows, err := e.store.Query(context.Background(), store.Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	assertInvariants(t, rows)
	return rows
}

func assertInvariants(t *testing.T, rows []core.Transaction) {
	t.Helper()
	for _, r := range rows {
		if r.Installment != nil && r.Recurrence != nil {
			t.Fatalf("row %s has both memberships", r.ID)
		}
		if in := r.Installment; in != nil && (in.Index < 1 || in.Index > in.Total) {
			t.Fatalf("row %s has installment %d/%d", r.ID, in.Index, in.Total)
		}
		if rec := r.Recurrence; rec != nil {
			if err := rec.Rule.Validate(); err != nil {
				t.Fatalf("row %s has invalid rule: %v", r.ID, err)
			}
		}
	}
}

func dates(rows []core.Transaction) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Date.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func byIndex(rows []core.Transaction, idx int) (core.Transaction, bool) {
	for _, r := range rows {
		if r.Installment != nil && r.Installment.Index == idx {
			return r, true
		}
	}
	return core.Transaction{}, false
}

var errInjected = errors.New("injected failure")

// failingStore fails the first call of the named kind: update, delete or
// insert. It records every write and every read made inside a transaction.
type failingStore struct {
	*memory.Store
	failOn string
	calls  []string

	// tx is the transaction view while WithinTx runs.
	tx           store.Store
	txQueries    int
	plainQueries int
}

func (f *failingStore) target() store.Store {
	if f.tx != nil {
		return f.tx
	}
	return f.Store
}

func (f *failingStore) Query(ctx context.Context, flt store.Filter, order ...store.Order) ([]core.Transaction, error) {
	if f.tx != nil {
		f.txQueries++
	} else {
		f.plainQueries++
	}
	return f.target().Query(ctx, flt, order...)
}

func (f *failingStore) UpdateByID(ctx context.Context, id string, p store.Patch) (core.Transaction, error) {
	f.calls = append(f.calls, "update")
	if f.failOn == "update" {
		return core.Transaction{}, errInjected
	}
	return f.target().UpdateByID(ctx, id, p)
}

func (f *failingStore) UpdateByFilter(ctx context.Context, flt store.Filter, p store.Patch) ([]core.Transaction, error) {
	return f.target().UpdateByFilter(ctx, flt, p)
}

func (f *failingStore) DeleteByFilter(ctx context.Context, flt store.Filter) (int, error) {
	f.calls = append(f.calls, "delete")
	if f.failOn == "delete" {
		return 0, errInjected
	}
	return f.target().DeleteByFilter(ctx, flt)
}

func (f *failingStore) InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	f.calls = append(f.calls, "insert")
	if f.failOn == "insert" {
		return nil, errInjected
	}
	return f.target().InsertMany(ctx, txs)
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(store.Store) error) error {
	return f.Store.WithinTx(ctx, func(tx store.Store) error {
		f.tx = tx
		defer func() { f.tx = nil }()
		return fn(f)
	})
}

// blockingStore holds its first Query after the rows are read until
// release is closed, so a write can land between the read and the caller.
type blockingStore struct {
	*memory.Store
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{Store: newMemoryStore(), loaded: make(chan struct{}), release: make(chan struct{})}
}

func (b *blockingStore) Query(ctx context.Context, f store.Filter, order ...store.Order) ([]core.Transaction, error) {
	rows, err := b.Store.Query(ctx, f, order...)
	b.once.Do(func() {
		close(b.loaded)
		<-b.release
	})
	return rows, err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.ChangeEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionsChanged(_ context.Context, ev amqp.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}
