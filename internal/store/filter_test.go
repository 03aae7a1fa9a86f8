package store

import (
	"testing"
	"time"

	"carteira/internal/core"
)

func sampleTx() core.Transaction {
	return core.Transaction{
		ID: "tx-1",
		Details: core.Details{
			Date:        core.NewDate(2024, 3, 15),
			Description: "Groceries at Esselunga",
			Note:        "weekly shop",
			Type:        core.Expense,
			Amount:      core.Money{Cents: 4520},
			AccountID:   "acc-main",
			CategoryID:  "cat-food",
		},
		Installment: &core.Installment{GroupID: "grp-1", Index: 3, Total: 5},
	}
}

func TestFilterMatch(t *testing.T) {
	tx := sampleTx()
	transfer := core.Transaction{ID: "tx-2", Details: core.Details{
		Date: core.NewDate(2024, 3, 1), Description: "Move", Type: core.Transfer,
		AccountFromID: "acc-main", AccountToID: "acc-savings", Cleared: true,
	}}

	tests := []struct {
		name string
		f    Filter
		tx   core.Transaction
		want bool
	}{
		{"empty filter", Filter{}, tx, true},
		{"by id", ByID("tx-1"), tx, true},
		{"other id", ByID("tx-9"), tx, false},
		{"installment group", Filter{InstallmentGroupID: "grp-1"}, tx, true},
		{"recurrence group on installment row", Filter{RecurrenceGroupID: "grp-1"}, tx, false},
		{"min index met", Filter{InstallmentGroupID: "grp-1", MinInstallmentIndex: 3}, tx, true},
		{"min index missed", Filter{MinInstallmentIndex: 4}, tx, false},
		{"date inside", Filter{DateFrom: core.NewDate(2024, 3, 1), DateTo: core.NewDate(2024, 3, 31)}, tx, true},
		{"date from inclusive", Filter{DateFrom: core.NewDate(2024, 3, 15)}, tx, true},
		{"date to exclusive of later", Filter{DateTo: core.NewDate(2024, 3, 14)}, tx, false},
		{"account on expense", Filter{AccountIDs: []string{"acc-main"}}, tx, true},
		{"account on transfer destination", Filter{AccountIDs: []string{"acc-savings"}}, transfer, true},
		{"account mismatch", Filter{AccountIDs: []string{"acc-other"}}, transfer, false},
		{"category", Filter{CategoryIDs: []string{"cat-food", "cat-home"}}, tx, true},
		{"category mismatch", Filter{CategoryIDs: []string{"cat-home"}}, tx, false},
		{"search description case-insensitive", Filter{Search: "ESSELUNGA"}, tx, true},
		{"search note", Filter{Search: "weekly"}, tx, true},
		{"search miss", Filter{Search: "rent"}, tx, false},
		{"uncleared only keeps uncleared", Filter{UnclearedOnly: true}, tx, true},
		{"uncleared only drops cleared", Filter{UnclearedOnly: true}, transfer, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.Match(tt.tx); got != tt.want {
				t.Fatalf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterIsEmpty(t *testing.T) {
	if !(Filter{}).IsEmpty() {
		t.Fatal("zero filter should be empty")
	}
	if !(Filter{Search: "  "}).IsEmpty() {
		t.Fatal("blank search should be empty")
	}
	if (Filter{RecurrenceGroupID: "g"}).IsEmpty() {
		t.Fatal("group filter is not empty")
	}
}

func TestCompare(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	a := core.Transaction{Details: core.Details{Date: core.NewDate(2024, 1, 5)}, CreatedAt: base.Add(time.Minute)}
	b := core.Transaction{Details: core.Details{Date: core.NewDate(2024, 1, 5)}, CreatedAt: base}
	c := core.Transaction{Details: core.Details{Date: core.NewDate(2024, 1, 2)}, CreatedAt: base.Add(time.Hour)}

	if Compare(c, a, nil) >= 0 {
		t.Error("earlier date should sort first")
	}
	if Compare(b, a, nil) >= 0 {
		t.Error("same date should fall back to created_at")
	}
	if Compare(c, a, []Order{{Field: ByDate, Desc: true}}) <= 0 {
		t.Error("descending date should reverse")
	}
}

func TestPatchApply(t *testing.T) {
	tx := sampleTx()
	cleared := true
	details := tx.Details
	details.Date = core.NewDate(2024, 4, 1)
	details.Description = "Sofa (moved)"
	n := 4
	got := Patch{
		Details:    &details,
		Cleared:    &cleared,
		Recurrence: &core.Recurrence{GroupID: "r-1", Rule: core.RecurrenceRule{Interval: 1, Unit: core.Month, Occurrences: &n}},
	}.Apply(tx)

	if !got.Date.Equal(details.Date) || got.Description != "Sofa (moved)" || !got.Cleared {
		t.Fatalf("details/cleared not applied: %+v", got.Details)
	}
	if got.Installment == nil || got.Installment.GroupID != tx.Installment.GroupID {
		t.Fatal("installment should be left untouched")
	}
	if got.Recurrence == nil || got.Recurrence.GroupID != "r-1" {
		t.Fatalf("recurrence not set: %+v", got.Recurrence)
	}
	n = 9
	if *got.Recurrence.Rule.Occurrences != 4 {
		t.Fatal("patch shares the occurrences pointer with the result")
	}
	if tx.Recurrence != nil || tx.Cleared {
		t.Fatal("Apply mutated its input")
	}
}
