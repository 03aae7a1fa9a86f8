// Package storage is the SQLite implementation of store.Backend.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"carteira/internal/core"
	"carteira/internal/ids"
	"carteira/internal/store"
)

// createdAtLayout is fixed-width so created_at sorts as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type SQLiteRepository struct {
	db  *sql.DB
	tx  *sql.Tx
	ids ids.Allocator
	now func() time.Time
}

type Option func(*SQLiteRepository)

// WithAllocator overrides the row id allocator.
func WithAllocator(a ids.Allocator) Option {
	return func(r *SQLiteRepository) { r.ids = a }
}

// WithClock overrides the created_at clock.
func WithClock(now func() time.Time) Option {
	return func(r *SQLiteRepository) { r.now = now }
}

func NewSQLiteRepository(ctx context.Context, dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps writers from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(ctx, dbPath); err != nil {
		db.Close()
		return nil, err
	}

	r := &SQLiteRepository{db: db, ids: ids.UUID{}, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil && r.tx == nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) q() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// WithinTx runs fn in one SQLite transaction. Nested calls join the outer
// transaction.
func (r *SQLiteRepository) WithinTx(ctx context.Context, fn func(store.Store) error) error {
	if r.tx != nil {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	scoped := &SQLiteRepository{db: r.db, tx: tx, ids: r.ids, now: r.now}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) atomic(ctx context.Context, fn func(*SQLiteRepository) error) error {
	return r.WithinTx(ctx, func(s store.Store) error {
		return fn(s.(*SQLiteRepository))
	})
}

const transactionColumns = `id, date, description, note, type, amount_cents,
	account_id, account_from_id, account_to_id, category_id, is_cleared,
	installment_group_id, installment_index, installment_total,
	recurrence_group_id, recurrence_rule, created_at`

func (r *SQLiteRepository) Query(ctx context.Context, f store.Filter, order ...store.Order) ([]core.Transaction, error) {
	where, args := whereClause(f)
	query := "SELECT " + transactionColumns + " FROM transactions" + where + orderClause(order)
	rows, err := r.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertMany(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(txs))
	now := r.now().UTC()
	for _, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, err
		}
		if tx.ID == "" {
			tx.ID = r.ids.NewID()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}
		out = append(out, store.Clone(tx))
	}

	err := r.atomic(ctx, func(s *SQLiteRepository) error {
		for _, tx := range out {
			if err := s.insert(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Transactions saved to SQLite", "rows", len(out))
	return out, nil
}

func (r *SQLiteRepository) insert(ctx context.Context, tx core.Transaction) error {
	rule, err := encodeRule(tx.Recurrence)
	if err != nil {
		return err
	}
	inst := installmentColumns(tx.Installment)
	_, err = r.q().ExecContext(ctx, `INSERT INTO transactions (`+transactionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.Date.String(), tx.Description, tx.Note, string(tx.Type), tx.Amount.Cents,
		nullString(tx.AccountID), nullString(tx.AccountFromID), nullString(tx.AccountToID), nullString(tx.CategoryID),
		tx.Cleared, inst.group, inst.index, inst.total,
		recurrenceGroup(tx.Recurrence), rule, tx.CreatedAt.UTC().Format(createdAtLayout),
	)
	if err != nil {
		return fmt.Errorf("insert transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateByID(ctx context.Context, id string, p store.Patch) (core.Transaction, error) {
	updated, err := r.UpdateByFilter(ctx, store.ByID(id), p)
	if err != nil {
		return core.Transaction{}, err
	}
	if len(updated) == 0 {
		return core.Transaction{}, core.ErrNotFound
	}
	return updated[0], nil
}

// UpdateByFilter reads the matching rows, applies p in Go and writes every
// row back inside one transaction.
func (r *SQLiteRepository) UpdateByFilter(ctx context.Context, f store.Filter, p store.Patch) ([]core.Transaction, error) {
	var out []core.Transaction
	err := r.atomic(ctx, func(s *SQLiteRepository) error {
		current, err := s.Query(ctx, f)
		if err != nil {
			return err
		}
		out = make([]core.Transaction, 0, len(current))
		for _, tx := range current {
			next := p.Apply(tx)
			if err := next.Validate(); err != nil {
				return err
			}
			if err := s.replace(ctx, next); err != nil {
				return err
			}
			out = append(out, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) replace(ctx context.Context, tx core.Transaction) error {
	rule, err := encodeRule(tx.Recurrence)
	if err != nil {
		return err
	}
	inst := installmentColumns(tx.Installment)
	_, err = r.q().ExecContext(ctx, `UPDATE transactions SET
		date = ?, description = ?, note = ?, type = ?, amount_cents = ?,
		account_id = ?, account_from_id = ?, account_to_id = ?, category_id = ?, is_cleared = ?,
		installment_group_id = ?, installment_index = ?, installment_total = ?,
		recurrence_group_id = ?, recurrence_rule = ?
		WHERE id = ?`,
		tx.Date.String(), tx.Description, tx.Note, string(tx.Type), tx.Amount.Cents,
		nullString(tx.AccountID), nullString(tx.AccountFromID), nullString(tx.AccountToID), nullString(tx.CategoryID),
		tx.Cleared, inst.group, inst.index, inst.total,
		recurrenceGroup(tx.Recurrence), rule, tx.ID,
	)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteByFilter(ctx context.Context, f store.Filter) (int, error) {
	if f.IsEmpty() {
		return 0, store.ErrEmptyFilter
	}
	where, args := whereClause(f)
	res, err := r.q().ExecContext(ctx, "DELETE FROM transactions"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.q().QueryContext(ctx, `SELECT id, name, initial_balance_cents, archived,
		include_in_monthly_summary, created_at FROM accounts ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []core.Account
	for rows.Next() {
		var (
			a         core.Account
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.Name, &a.InitialBalance.Cents, &a.Archived, &a.IncludeInMonthlySummary, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		if a.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parse account created_at %q: %w", createdAt, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.Name == "" {
		return core.Account{}, core.Invalidf("name", "account name is empty")
	}
	if err := a.InitialBalance.Validate(); err != nil {
		return core.Account{}, core.Invalid("initial_balance", err)
	}
	if a.ID == "" {
		a.ID = r.ids.NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	_, err := r.q().ExecContext(ctx, `INSERT INTO accounts
		(id, name, initial_balance_cents, archived, include_in_monthly_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.InitialBalance.Cents, a.Archived, a.IncludeInMonthlySummary,
		a.CreatedAt.UTC().Format(createdAtLayout))
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.Name == "" {
		return core.Account{}, core.Invalidf("name", "account name is empty")
	}
	if err := a.InitialBalance.Validate(); err != nil {
		return core.Account{}, core.Invalid("initial_balance", err)
	}
	var createdAt string
	err := r.q().QueryRowContext(ctx, `UPDATE accounts
		SET name = ?, initial_balance_cents = ?, archived = ?, include_in_monthly_summary = ?
		WHERE id = ? RETURNING created_at`,
		a.Name, a.InitialBalance.Cents, a.Archived, a.IncludeInMonthlySummary, a.ID).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %s: %w", a.ID, err)
	}
	if a.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return core.Account{}, fmt.Errorf("parse account created_at %q: %w", createdAt, err)
	}
	return a, nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	res, err := r.q().ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(sc rowScanner) (core.Transaction, error) {
	var (
		tx                                  core.Transaction
		date, typ, createdAt                string
		accountID, fromID, toID, categoryID sql.NullString
		instGroup, recGroup, rule           sql.NullString
		instIndex, instTotal                sql.NullInt64
	)
	err := sc.Scan(&tx.ID, &date, &tx.Description, &tx.Note, &typ, &tx.Amount.Cents,
		&accountID, &fromID, &toID, &categoryID, &tx.Cleared,
		&instGroup, &instIndex, &instTotal, &recGroup, &rule, &createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	if tx.Date, err = core.ParseDate(date); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	if tx.CreatedAt, err = time.Parse(createdAtLayout, createdAt); err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s created_at: %w", tx.ID, err)
	}
	tx.Type = core.TransactionType(typ)
	tx.AccountID = accountID.String
	tx.AccountFromID = fromID.String
	tx.AccountToID = toID.String
	tx.CategoryID = categoryID.String

	if instGroup.Valid {
		tx.Installment = &core.Installment{
			GroupID: instGroup.String,
			Index:   int(instIndex.Int64),
			Total:   int(instTotal.Int64),
		}
	}
	if recGroup.Valid {
		if !rule.Valid {
			return core.Transaction{}, fmt.Errorf("transaction %s: recurrence without rule", tx.ID)
		}
		parsed, err := core.DecodeRecurrenceRule([]byte(rule.String))
		if err != nil {
			return core.Transaction{}, fmt.Errorf("transaction %s: %w", tx.ID, err)
		}
		tx.Recurrence = &core.Recurrence{GroupID: recGroup.String, Rule: parsed}
	}
	return tx, nil
}

type installmentCols struct {
	group        sql.NullString
	index, total sql.NullInt64
}

func installmentColumns(in *core.Installment) installmentCols {
	if in == nil {
		return installmentCols{}
	}
	return installmentCols{
		group: sql.NullString{String: in.GroupID, Valid: true},
		index: sql.NullInt64{Int64: int64(in.Index), Valid: true},
		total: sql.NullInt64{Int64: int64(in.Total), Valid: true},
	}
}

func recurrenceGroup(rec *core.Recurrence) sql.NullString {
	if rec == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: rec.GroupID, Valid: true}
}

func encodeRule(rec *core.Recurrence) (sql.NullString, error) {
	if rec == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(rec.Rule.Snapshot())
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode recurrence rule: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var (
	_ store.Backend    = (*SQLiteRepository)(nil)
	_ store.Transactor = (*SQLiteRepository)(nil)
)
