package insight

import (
	"testing"

	"pocketsight/internal/core"
)

func TestBudgetPerformanceOverspend(t *testing.T) {
	rows := BudgetPerformance(PerformanceInput{
		Categories: []core.Category{{ID: 10, Name: "Food"}},
		Targets: []core.BudgetTarget{
			{CategoryID: 10, CategoryName: "Food", Target: core.Money{Cents: 40000}},
		},
		ActualByCategory: map[int64]core.Money{10: {Cents: 46000}},
	})
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != StatusOver {
		t.Errorf("status = %s, want over", row.Status)
	}
	if row.Variance.Cents != -6000 {
		t.Errorf("variance = %d, want -6000", row.Variance.Cents)
	}
	if row.VariancePct != -15 {
		t.Errorf("variance pct = %v, want -15", row.VariancePct)
	}
}

func TestBudgetPerformanceStatusBoundary(t *testing.T) {
	cases := []struct {
		name   string
		target int64
		actual int64
		want   PerformanceStatus
	}{
		{"exact match", 40000, 40000, StatusOnTrack},
		{"one cent over", 40000, 40001, StatusOnTrack},
		{"one cent under", 40000, 39999, StatusOnTrack},
		{"two cents over", 40000, 40002, StatusOver},
		{"two cents under", 40000, 39998, StatusUnder},
		{"well under", 40000, 10000, StatusUnder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := BudgetPerformance(PerformanceInput{
				Targets: []core.BudgetTarget{
					{CategoryID: 1, CategoryName: "Cat", Target: core.Money{Cents: tc.target}},
				},
				ActualByCategory: map[int64]core.Money{1: {Cents: tc.actual}},
			})
			if rows[0].Status != tc.want {
				t.Errorf("status = %s, want %s", rows[0].Status, tc.want)
			}
		})
	}
}

func TestBudgetPerformanceMissingActualAndZeroTarget(t *testing.T) {
	rows := BudgetPerformance(PerformanceInput{
		Targets: []core.BudgetTarget{
			{CategoryID: 5, CategoryName: "Travel", Target: core.Money{Cents: 20000}},
			{CategoryID: 6, CategoryName: "Misc", Target: core.Money{Cents: 0}},
		},
		ActualByCategory: map[int64]core.Money{},
	})
	travel := rows[0]
	if travel.Actual.Cents != 0 || travel.Variance.Cents != 20000 || travel.Status != StatusUnder {
		t.Errorf("missing actual should default to zero: %+v", travel)
	}
	misc := rows[1]
	if misc.VariancePct != 0 {
		t.Errorf("zero target must not divide: pct = %v", misc.VariancePct)
	}
	if misc.Status != StatusOnTrack {
		t.Errorf("zero target, zero actual should be on track, got %s", misc.Status)
	}
}

func TestBudgetPerformanceNameResolution(t *testing.T) {
	rows := BudgetPerformance(PerformanceInput{
		Categories: []core.Category{{ID: 10, Name: "Food & Groceries"}},
		Targets: []core.BudgetTarget{
			{CategoryID: 10, CategoryName: "Food", Target: core.Money{Cents: 100}},
			{CategoryID: 99, CategoryName: "Old Name", Target: core.Money{Cents: 100}},
		},
		ActualByCategory: map[int64]core.Money{},
	})
	if rows[0].CategoryName != "Food & Groceries" {
		t.Errorf("live lookup should win, got %q", rows[0].CategoryName)
	}
	if rows[1].CategoryName != "Old Name" {
		t.Errorf("fallback to captured name, got %q", rows[1].CategoryName)
	}
}

func TestActualSpendByCategory(t *testing.T) {
	food := expense(-4000, 2026, 2, 4)
	food.CategoryID = 10
	alsoFood := expense(-3000, 2026, 2, 9)
	alsoFood.CategoryID = 10
	lastMonth := expense(-6000, 2026, 1, 11)
	lastMonth.CategoryID = 10
	transfer := expense(-5000, 2026, 2, 5)
	transfer.CategoryID = 10
	transfer.InternalTransfer = true
	travel := expense(-2500, 2026, 2, 12)
	travel.CategoryID = 7

	got := ActualSpendByCategory([]core.Transaction{food, alsoFood, lastMonth, transfer, travel}, "2026-02")
	if got[10].Cents != 7000 {
		t.Errorf("food actual = %d, want 7000", got[10].Cents)
	}
	if got[7].Cents != 2500 {
		t.Errorf("travel actual = %d, want 2500", got[7].Cents)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 categories, got %d", len(got))
	}
}
