package schedule

import (
	"testing"

	"carteira/internal/core"
)

func dates(t *testing.T, in ...string) []core.Date {
	t.Helper()
	out := make([]core.Date, len(in))
	for i, s := range in {
		d, err := core.ParseDate(s)
		if err != nil {
			t.Fatalf("bad fixture %q: %v", s, err)
		}
		out[i] = d
	}
	return out
}

func assertDates(t *testing.T, got, want []core.Date) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d dates %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("date[%d] = %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		count    int
		interval int
		unit     core.Unit
		want     []string
	}{
		{
			name:  "month end clamps in leap february",
			start: "2024-01-31", count: 3, interval: 1, unit: core.Month,
			want: []string{"2024-01-31", "2024-02-29", "2024-03-31"},
		},
		{
			name:  "month end clamps in common february",
			start: "2023-01-31", count: 4, interval: 1, unit: core.Month,
			want: []string{"2023-01-31", "2023-02-28", "2023-03-31", "2023-04-30"},
		},
		{
			name:  "biweekly",
			start: "2024-03-01", count: 5, interval: 2, unit: core.Week,
			want: []string{"2024-03-01", "2024-03-15", "2024-03-29", "2024-04-12", "2024-04-26"},
		},
		{
			name:  "every 10 days across month boundary",
			start: "2024-02-25", count: 3, interval: 10, unit: core.Day,
			want: []string{"2024-02-25", "2024-03-06", "2024-03-16"},
		},
		{
			name:  "quarterly across year",
			start: "2024-11-30", count: 3, interval: 3, unit: core.Month,
			want: []string{"2024-11-30", "2025-02-28", "2025-05-30"},
		},
		{
			name:  "single occurrence",
			start: "2024-06-15", count: 1, interval: 1, unit: core.Month,
			want: []string{"2024-06-15"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start := dates(t, tt.start)[0]
			got, err := Generate(start, tt.count, tt.interval, tt.unit)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			assertDates(t, got, dates(t, tt.want...))
		})
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	start := core.NewDate(2024, 1, 1)
	cases := []struct {
		name     string
		start    core.Date
		count    int
		interval int
		unit     core.Unit
	}{
		{"zero count", start, 0, 1, core.Day},
		{"zero interval", start, 3, 0, core.Day},
		{"count over cap", start, core.MaxRepeat + 1, 1, core.Day},
		{"huge count", start, 1 << 62, 1, core.Day},
		{"interval over cap", start, 3, core.MaxRepeat + 1, core.Month},
		{"unknown unit", start, 3, 1, "year"},
		{"zero start", core.Date{}, 3, 1, core.Day},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.start, tc.count, tc.interval, tc.unit)
			if !core.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestShiftMonths(t *testing.T) {
	tests := []struct {
		in     string
		months int
		want   string
	}{
		{"2024-03-31", -1, "2024-02-29"},
		{"2024-03-31", 1, "2024-04-30"},
		{"2024-05-15", -5, "2023-12-15"},
		{"2024-02-29", 12, "2025-02-28"},
		{"2024-08-31", 0, "2024-08-31"},
	}
	for _, tt := range tests {
		got := ShiftMonths(dates(t, tt.in)[0], tt.months)
		if got.String() != tt.want {
			t.Errorf("ShiftMonths(%s, %d) = %s, want %s", tt.in, tt.months, got, tt.want)
		}
	}
}

func TestInstallmentDates(t *testing.T) {
	// Installment 3 dated 2024-05-10 puts installment 1 on 2024-03-10.
	first := FirstInstallmentDate(core.NewDate(2024, 5, 10), 3)
	if first.String() != "2024-03-10" {
		t.Fatalf("first = %s", first)
	}
	if got := InstallmentDate(first, 5); got.String() != "2024-07-10" {
		t.Fatalf("installment 5 = %s", got)
	}
	// The back-computation is not invertible across a clamp.
	first = FirstInstallmentDate(core.NewDate(2024, 3, 31), 2)
	if first.String() != "2024-02-29" {
		t.Fatalf("first across clamp = %s", first)
	}
	if got := InstallmentDate(first, 2); got.String() != "2024-03-29" {
		t.Fatalf("installment 2 after clamp = %s", got)
	}
}

func TestStepperFor(t *testing.T) {
	for _, u := range []core.Unit{core.Day, core.Week, core.Month} {
		if _, err := StepperFor(u); err != nil {
			t.Errorf("StepperFor(%s) error = %v", u, err)
		}
	}
	if _, err := StepperFor("fortnight"); err == nil {
		t.Errorf("expected error for unknown unit")
	}
	d, err := Shift(core.NewDate(2024, 1, 10), -2, core.Week)
	if err != nil || d.String() != "2023-12-27" {
		t.Errorf("Shift back two weeks = %s, %v", d, err)
	}
}

func TestForRule(t *testing.T) {
	got, err := ForRule(core.NewDate(2024, 1, 1), core.NewIndefiniteRule(1, core.Month))
	if err != nil {
		t.Fatalf("ForRule() error = %v", err)
	}
	if len(got) != core.IndefiniteBatch {
		t.Fatalf("indefinite rule produced %d dates", len(got))
	}
	if got[11].String() != "2024-12-01" {
		t.Fatalf("last date = %s", got[11])
	}
}
