package services

import (
	"testing"

	"carteira/internal/core"
	"carteira/internal/store"
)

func TestResolveEffectiveScope(t *testing.T) {
	plain := core.Transaction{ID: "p"}
	inst := core.Transaction{ID: "i", Installment: &core.Installment{GroupID: "g", Index: 2, Total: 4}}
	rec := core.Transaction{ID: "r", Recurrence: &core.Recurrence{GroupID: "h", Rule: core.NewIndefiniteRule(1, core.Month)}}

	tests := []struct {
		name      string
		target    core.Transaction
		requested core.Scope
		want      core.Scope
		wantErr   bool
	}{
		{"plain with no scope", plain, "", core.ScopeOnly, false},
		{"plain with from_first", plain, core.ScopeFromFirst, core.ScopeOnly, false},
		{"plain with garbage", plain, "sideways", core.ScopeOnly, false},
		{"installment needs scope", inst, "", "", true},
		{"installment from_here", inst, core.ScopeFromHere, core.ScopeFromHere, false},
		{"recurrence only", rec, core.ScopeOnly, core.ScopeOnly, false},
		{"recurrence unknown scope", rec, "sideways", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveEffectiveScope(tt.target, tt.requested)
			if tt.wantErr {
				if !core.IsValidation(err) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ResolveEffectiveScope() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestDeleteFilter(t *testing.T) {
	d := core.NewDate(2024, 3, 5)
	plain := core.Transaction{ID: "p", Details: core.Details{Date: d}}
	inst := core.Transaction{ID: "i", Details: core.Details{Date: d}, Installment: &core.Installment{GroupID: "g", Index: 3, Total: 5}}
	rec := core.Transaction{ID: "r", Details: core.Details{Date: d}, Recurrence: &core.Recurrence{GroupID: "h"}}

	tests := []struct {
		name   string
		target core.Transaction
		scope  core.Scope
		want   store.Filter
	}{
		{"only", inst, core.ScopeOnly, store.ByID("i")},
		{"plain ignores group scope", plain, core.ScopeFromFirst, store.ByID("p")},
		{"installment from here", inst, core.ScopeFromHere, store.Filter{InstallmentGroupID: "g", MinInstallmentIndex: 3}},
		{"installment from first", inst, core.ScopeFromFirst, store.Filter{InstallmentGroupID: "g"}},
		{"recurrence from here", rec, core.ScopeFromHere, store.Filter{RecurrenceGroupID: "h", DateFrom: d}},
		{"recurrence from first", rec, core.ScopeFromFirst, store.Filter{RecurrenceGroupID: "h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeleteFilter(tt.target, tt.scope)
			if got.InstallmentGroupID != tt.want.InstallmentGroupID ||
				got.RecurrenceGroupID != tt.want.RecurrenceGroupID ||
				got.MinInstallmentIndex != tt.want.MinInstallmentIndex ||
				!got.DateFrom.Equal(tt.want.DateFrom) ||
				!equalStrings(got.IDs, tt.want.IDs) {
				t.Fatalf("DeleteFilter() = %+v, want %+v", got, tt.want)
			}
			if got.IsEmpty() {
				t.Fatal("delete filter must never be empty")
			}
		})
	}
}
