package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carteira/internal/amqp"
	"carteira/internal/cache"
	"carteira/internal/core"
	"carteira/internal/ids"
	"carteira/internal/log"
	"carteira/internal/store"
)

// ChangePublisher announces committed changes. *amqp.Client implements it.
type ChangePublisher interface {
	PublishTransactionsChanged(ctx context.Context, ev amqp.ChangeEvent) error
}

// ListFilter narrows a transaction listing. Year and Month are either both
// zero (no date bound) or a valid calendar month.
type ListFilter struct {
	Year          int
	Month         int
	AccountIDs    []string
	CategoryIDs   []string
	Search        string
	UnclearedOnly bool
}

// TransactionService is the entry point for every transaction use case.
// It plans with the ExpansionEngine, runs plans through the Executor,
// flushes cached listings after every write and publishes change events.
type TransactionService struct {
	backend   store.Backend
	engine    *ExpansionEngine
	exec      *Executor
	listings  cache.Cache[[]core.Transaction]
	publisher ChangePublisher
	logger    *log.Logger

	ids    ids.Allocator
	atomic bool
}

type Option func(*TransactionService)

// WithAllocator sets the group id allocator.
func WithAllocator(a ids.Allocator) Option {
	return func(s *TransactionService) { s.ids = a }
}

// WithListingCache caches List results until the next write.
func WithListingCache(c cache.Cache[[]core.Transaction]) Option {
	return func(s *TransactionService) { s.listings = c }
}

func WithPublisher(p ChangePublisher) Option {
	return func(s *TransactionService) { s.publisher = p }
}

// WithAtomicGroupEdits runs each plan in one storage transaction when the
// backend supports it.
func WithAtomicGroupEdits(on bool) Option {
	return func(s *TransactionService) { s.atomic = on }
}

func WithLogger(l *log.Logger) Option {
	return func(s *TransactionService) { s.logger = l }
}

func NewTransactionService(backend store.Backend, opts ...Option) *TransactionService {
	s := &TransactionService{
		backend:  backend,
		listings: cache.Noop[[]core.Transaction]{},
		ids:      ids.UUID{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(log.ComponentTransactions)
	s.engine = NewExpansionEngine(s.ids, NewGroupResolver(backend))
	s.exec = NewExecutor(backend, s.atomic)
	return s
}

// Create stores d, expanded according to spec, and returns the new rows.
func (s *TransactionService) Create(ctx context.Context, d core.Details, spec core.RepeatSpec) ([]core.Transaction, error) {
	plan, err := s.engine.PlanCreate(d, spec)
	if err != nil {
		return nil, err
	}
	defer s.listings.Flush()

	res, err := s.exec.Apply(ctx, plan)
	if err != nil {
		s.logFailure(ctx, log.OpCreate, "", err)
		return nil, err
	}
	id := ""
	if len(res.Inserted) > 0 {
		id = res.Inserted[0].ID
	}
	s.committed(ctx, log.OpCreate, id, res)
	return res.Inserted, nil
}

// Edit applies d and spec to the transaction id within scope. On a
// StorageError the steps before the failing one stay applied unless
// atomic group edits are on; then the target and its group are also read
// inside the transaction.
func (s *TransactionService) Edit(ctx context.Context, id string, d core.Details, spec core.RepeatSpec, scope core.Scope) (Result, error) {
	defer s.listings.Flush()

	res, err := s.exec.Run(ctx, func(ctx context.Context, st store.Store) (Plan, error) {
		target, err := getTransaction(ctx, st, id)
		if err != nil {
			return Plan{}, err
		}
		return s.engine.On(st).PlanEdit(ctx, target, d, spec, scope)
	})
	if err != nil {
		s.logFailure(ctx, log.OpUpdate, id, err)
		return res, err
	}
	s.committed(ctx, log.OpUpdate, id, res)
	return res, nil
}

// Delete removes the transaction id and, depending on scope, the group
// rows after it or the whole group.
func (s *TransactionService) Delete(ctx context.Context, id string, scope core.Scope) (Result, error) {
	defer s.listings.Flush()

	res, err := s.exec.Run(ctx, func(ctx context.Context, st store.Store) (Plan, error) {
		target, err := getTransaction(ctx, st, id)
		if err != nil {
			return Plan{}, err
		}
		effective, err := ResolveEffectiveScope(target, scope)
		if err != nil {
			return Plan{}, err
		}
		f := DeleteFilter(target, effective)
		return Plan{Delete: &f, Scope: effective, GroupID: target.GroupID()}, nil
	})
	if err != nil {
		s.logFailure(ctx, log.OpDelete, id, err)
		return res, err
	}
	s.committed(ctx, log.OpDelete, id, res)
	return res, nil
}

// DeleteMany removes exactly the listed rows. Group membership is ignored:
// every id is deleted as if with ScopeOnly, and unknown ids are skipped.
func (s *TransactionService) DeleteMany(ctx context.Context, txIDs []string) (Result, error) {
	txIDs = compact(txIDs)
	if len(txIDs) == 0 {
		return Result{}, core.Invalidf("ids", "no transaction ids given")
	}
	defer s.listings.Flush()

	res, err := s.exec.Apply(ctx, Plan{Delete: &store.Filter{IDs: txIDs}, Scope: core.ScopeOnly})
	if err != nil {
		s.logFailure(ctx, log.OpDelete, "", err)
		return res, err
	}
	s.committed(ctx, log.OpDelete, "", res)
	return res, nil
}

// SetCleared flips the cleared flag on every listed transaction.
func (s *TransactionService) SetCleared(ctx context.Context, txIDs []string, cleared bool) ([]core.Transaction, error) {
	txIDs = compact(txIDs)
	if len(txIDs) == 0 {
		return nil, core.Invalidf("ids", "no transaction ids given")
	}
	defer s.listings.Flush()

	rows, err := s.backend.UpdateByFilter(ctx, store.Filter{IDs: txIDs}, store.Patch{Cleared: &cleared})
	if err != nil {
		err = core.Storage("set cleared", err)
		s.logFailure(ctx, log.OpClear, "", err)
		return nil, err
	}
	s.committed(ctx, log.OpClear, "", Result{Updated: rows})
	return rows, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return getTransaction(ctx, s.backend, id)
}

func getTransaction(ctx context.Context, st store.Store, id string) (core.Transaction, error) {
	rows, err := st.Query(ctx, store.ByID(id))
	if err != nil {
		return core.Transaction{}, core.Storage("get", err)
	}
	if len(rows) == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return rows[0], nil
}

// List returns matching rows ordered by date, then created_at.
func (s *TransactionService) List(ctx context.Context, lf ListFilter) ([]core.Transaction, error) {
	f, err := lf.storeFilter()
	if err != nil {
		return nil, err
	}
	key := lf.cacheKey()
	if rows, ok := s.listings.Get(key); ok {
		return rows, nil
	}
	gen := s.listings.Generation()
	rows, err := s.backend.Query(ctx, f, store.DefaultOrder...)
	if err != nil {
		return nil, core.Storage("list", err)
	}
	s.listings.SetIfCurrent(key, rows, gen)
	return rows, nil
}

// MonthSummary computes account balances at the end of the month and the
// month's income and expense totals.
func (s *TransactionService) MonthSummary(ctx context.Context, year, month int) (core.MonthSummary, error) {
	from, to, err := monthRange(year, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	accounts, err := s.backend.ListAccounts(ctx)
	if err != nil {
		return core.MonthSummary{}, core.Storage("list accounts", err)
	}
	history, err := s.backend.Query(ctx, store.Filter{DateTo: to})
	if err != nil {
		return core.MonthSummary{}, core.Storage("summary", err)
	}
	var monthTxs []core.Transaction
	for _, tx := range history {
		if !tx.Date.Before(from) {
			monthTxs = append(monthTxs, tx)
		}
	}
	return core.Summarize(year, month, accounts, history, monthTxs), nil
}

func (s *TransactionService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	accounts, err := s.backend.ListAccounts(ctx)
	if err != nil {
		return nil, core.Storage("list accounts", err)
	}
	return accounts, nil
}

func (s *TransactionService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return core.Account{}, core.Invalidf("name", "account name is empty")
	}
	created, err := s.backend.InsertAccount(ctx, a)
	if err != nil {
		return core.Account{}, core.Storage("insert account", err)
	}
	s.listings.Flush()
	return created, nil
}

// UpdateAccount renames an account, changes its initial balance or flips
// its archived and monthly-summary flags.
func (s *TransactionService) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return core.Account{}, core.Invalidf("name", "account name is empty")
	}
	updated, err := s.backend.UpdateAccount(ctx, a)
	if errors.Is(err, core.ErrNotFound) {
		return core.Account{}, fmt.Errorf("account %s: %w", a.ID, err)
	}
	if err != nil {
		return core.Account{}, core.Storage("update account", err)
	}
	s.listings.Flush()
	return updated, nil
}

// DeleteAccount removes an account. Transactions that reference it are
// kept and still show up in listings.
func (s *TransactionService) DeleteAccount(ctx context.Context, id string) error {
	err := s.backend.DeleteAccount(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("account %s: %w", id, err)
	}
	if err != nil {
		return core.Storage("delete account", err)
	}
	s.listings.Flush()
	return nil
}

func (s *TransactionService) committed(ctx context.Context, op, id string, res Result) {
	fields := log.NewFields().
		WithOperation(op).
		WithGroupChange(id, res.GroupID, string(res.Scope), res.Rows())
	s.logger.InfoContext(ctx, "Transactions changed", fields.ToSlice()...)

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No change publisher configured, skipping event")
		return
	}
	ev := amqp.NewChangeEvent(op, string(res.Scope), res.GroupID, id, res.Rows())
	if err := s.publisher.PublishTransactionsChanged(ctx, ev); err != nil {
		// The change is committed; a lost event is only logged.
		s.logger.ErrorContext(ctx, "Failed to publish change event",
			log.NewFields().WithOperation(op).WithError(err).ToSlice()...)
	}
}

func (s *TransactionService) logFailure(ctx context.Context, op, id string, err error) {
	if !core.IsStorage(err) {
		return
	}
	fields := log.NewFields().WithOperation(op).WithError(err)
	if id != "" {
		fields[log.FieldTransactionID] = id
	}
	s.logger.ErrorContext(ctx, "Transaction operation failed, re-read before retrying", fields.ToSlice()...)
}

func (f ListFilter) storeFilter() (store.Filter, error) {
	out := store.Filter{
		AccountIDs:    compact(f.AccountIDs),
		CategoryIDs:   compact(f.CategoryIDs),
		Search:        strings.TrimSpace(f.Search),
		UnclearedOnly: f.UnclearedOnly,
	}
	if f.Year == 0 && f.Month == 0 {
		return out, nil
	}
	from, to, err := monthRange(f.Year, f.Month)
	if err != nil {
		return store.Filter{}, err
	}
	out.DateFrom, out.DateTo = from, to
	return out, nil
}

func (f ListFilter) cacheKey() string {
	return fmt.Sprintf("%04d-%02d|a=%s|c=%s|q=%s|u=%t",
		f.Year, f.Month,
		strings.Join(compact(f.AccountIDs), ","),
		strings.Join(compact(f.CategoryIDs), ","),
		strings.ToLower(strings.TrimSpace(f.Search)),
		f.UnclearedOnly)
}

func monthRange(year, month int) (core.Date, core.Date, error) {
	if month < 1 || month > 12 {
		return core.Date{}, core.Date{}, core.Invalid("month", core.ErrInvalidMonth)
	}
	if year < 1 || year > 9999 {
		return core.Date{}, core.Date{}, core.Invalidf("year", "invalid year %d", year)
	}
	from := core.NewDate(year, month, 1)
	// Day 0 of the next month is the last day of this one.
	to := core.NewDate(year, month+1, 0)
	return from, to, nil
}

// compact trims values and drops blanks and duplicates, keeping order.
func compact(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
