package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

const (
	Expense  TransactionType = "expense"
	Income   TransactionType = "income"
	Transfer TransactionType = "transfer"
)

type (
	TransactionType string

	// Date is a calendar day in UTC with no time component.
	Date struct {
		time.Time
	}

	// Details holds the user-editable fields of a transaction. Every row of
	// an installment or recurrence group shares them except Date.
	Details struct {
		Date          Date            `json:"date"`
		Description   string          `json:"description"`
		Note          string          `json:"note,omitempty"`
		Type          TransactionType `json:"type"`
		Amount        Money           `json:"amount"`
		AccountID     string          `json:"account_id,omitempty"`
		AccountFromID string          `json:"account_from_id,omitempty"`
		AccountToID   string          `json:"account_to_id,omitempty"`
		CategoryID    string          `json:"category_id,omitempty"`
		Cleared       bool            `json:"cleared"`
	}

	// Installment marks a row as position Index of a fixed plan of Total rows.
	Installment struct {
		GroupID string `json:"group_id"`
		Index   int    `json:"index"`
		Total   int    `json:"total"`
	}

	// Recurrence marks a row as one occurrence of a rule-generated group.
	Recurrence struct {
		GroupID string         `json:"group_id"`
		Rule    RecurrenceRule `json:"rule"`
	}

	Transaction struct {
		ID string `json:"id"`
		Details
		Installment *Installment `json:"installment,omitempty"`
		Recurrence  *Recurrence  `json:"recurrence,omitempty"`
		CreatedAt   time.Time    `json:"created_at"`
	}

	Account struct {
		ID                      string    `json:"id"`
		Name                    string    `json:"name"`
		InitialBalance          Money     `json:"initial_balance"`
		Archived                bool      `json:"archived"`
		IncludeInMonthlySummary bool      `json:"include_in_monthly_summary"`
		CreatedAt               time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrMissingAccount     = errors.New("missing account")
	ErrMissingCategory    = errors.New("missing category")
	ErrSameTransferLegs   = errors.New("transfer source and destination must differ")
	ErrBothMemberships    = errors.New("transaction cannot belong to an installment and a recurrence group")
	ErrInvalidInstallment = errors.New("invalid installment membership")
)

func (t TransactionType) Valid() bool {
	switch t {
	case Expense, Income, Transfer:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d is an earlier calendar day than o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is a later calendar day than o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same calendar day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Normalize clears the account and category fields that do not apply to
// the transaction type.
func (d Details) Normalize() Details {
	d.Description = strings.TrimSpace(d.Description)
	d.Note = strings.TrimSpace(d.Note)
	if d.Type == Transfer {
		d.AccountID = ""
		d.CategoryID = ""
	} else {
		d.AccountFromID = ""
		d.AccountToID = ""
	}
	return d
}

func (d Details) Validate() error {
	if err := d.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	if len(strings.TrimSpace(d.Description)) == 0 {
		return Invalid("description", ErrEmptyDescription)
	}
	if len(d.Description) > 200 {
		return Invalid("description", errors.New("description too long (max 200 characters)"))
	}
	if err := d.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	switch d.Type {
	case Transfer:
		if d.AccountFromID == "" || d.AccountToID == "" {
			return Invalid("account_from_id", ErrMissingAccount)
		}
		if d.AccountFromID == d.AccountToID {
			return Invalid("account_to_id", ErrSameTransferLegs)
		}
		if d.AccountID != "" || d.CategoryID != "" {
			return Invalid("type", errors.New("transfer cannot carry account_id or category_id"))
		}
	case Expense, Income:
		if d.AccountID == "" {
			return Invalid("account_id", ErrMissingAccount)
		}
		if d.CategoryID == "" {
			return Invalid("category_id", ErrMissingCategory)
		}
		if d.AccountFromID != "" || d.AccountToID != "" {
			return Invalid("type", fmt.Errorf("%s cannot carry transfer accounts", d.Type))
		}
	default:
		return Invalid("type", ErrInvalidType)
	}
	return nil
}

func (i Installment) Validate() error {
	if i.GroupID == "" || i.Index < 1 || i.Total < i.Index {
		return fmt.Errorf("%w: group=%q index=%d total=%d", ErrInvalidInstallment, i.GroupID, i.Index, i.Total)
	}
	return nil
}

func (r Recurrence) Validate() error {
	if r.GroupID == "" {
		return errors.New("recurrence group id is empty")
	}
	return r.Rule.Validate()
}

// Validate checks the row-level invariants, including group membership.
func (t Transaction) Validate() error {
	if err := t.Details.Validate(); err != nil {
		return err
	}
	if t.Installment != nil && t.Recurrence != nil {
		return Invalid("group", ErrBothMemberships)
	}
	if t.Installment != nil {
		if err := t.Installment.Validate(); err != nil {
			return Invalid("installment", err)
		}
	}
	if t.Recurrence != nil {
		if err := t.Recurrence.Validate(); err != nil {
			return Invalid("recurrence", err)
		}
	}
	return nil
}

// IsGrouped reports whether the row belongs to an installment or recurrence group.
func (t Transaction) IsGrouped() bool {
	return t.Installment != nil || t.Recurrence != nil
}

// GroupID returns the installment or recurrence group id, or "".
func (t Transaction) GroupID() string {
	switch {
	case t.Installment != nil:
		return t.Installment.GroupID
	case t.Recurrence != nil:
		return t.Recurrence.GroupID
	}
	return ""
}
