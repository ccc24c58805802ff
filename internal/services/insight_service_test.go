package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pocketsight/internal/core"
	"pocketsight/internal/insight"
	"pocketsight/internal/ledger"
	"pocketsight/internal/storage/memory"
)

type stubSource struct {
	snapshot ledger.Snapshot
	calls    int
	lastFrom string
	lastTo   string
}

func (s *stubSource) FetchSnapshot(_ context.Context, fromMonth, toMonth string) (ledger.Snapshot, error) {
	s.calls++
	s.lastFrom = fromMonth
	s.lastTo = toMonth
	return s.snapshot, nil
}

type stubPublisher struct {
	months  []string
	reasons []string
}

func (p *stubPublisher) PublishReportRefresh(_ context.Context, monthKey, reason string) error {
	p.months = append(p.months, monthKey)
	p.reasons = append(p.reasons, reason)
	return nil
}

func expense(payee string, cents int64, y int, m time.Month, d int) core.Transaction {
	return core.Transaction{
		ID:       payee,
		PostedAt: time.Date(y, m, d, 10, 0, 0, 0, time.UTC),
		Amount:   core.Money{Cents: cents},
		Payee:    payee,
	}
}

func fixtureSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		Transactions: []core.Transaction{
			expense("Coffee Spot", -4000, 2026, time.February, 4),
			expense("Coffee Spot", -3000, 2026, time.February, 9),
			expense("Market Store", -6000, 2026, time.January, 11),
			expense("Market Store", -12000, 2025, time.December, 19),
		},
		Categories:    []core.Category{{ID: 10, Name: "Food"}},
		EarliestMonth: "2024-01",
	}
}

func newService(source *stubSource, publisher RefreshPublisher) (*InsightService, *memory.Store) {
	store := memory.New()
	return NewInsightService(source, store, store, publisher, Options{
		HistoryMonths: 3,
		AverageMonths: 3,
	}), store
}

func TestSpendSeries(t *testing.T) {
	source := &stubSource{snapshot: fixtureSnapshot()}
	svc, _ := newService(source, nil)

	series, err := svc.SpendSeries(context.Background(), "2026-02", 3, 0)
	if err != nil {
		t.Fatalf("SpendSeries: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 points, got %d", len(series))
	}
	want := []int64{12000, 6000, 7000}
	for i, w := range want {
		if series[i].Amount.Cents != w {
			t.Errorf("series[%d] = %d, want %d", i, series[i].Amount.Cents, w)
		}
	}
	if source.lastFrom != "2025-12" || source.lastTo != "2026-02" {
		t.Errorf("fetched window %s..%s, want 2025-12..2026-02", source.lastFrom, source.lastTo)
	}
}

func TestSpendSeriesCategoryFilter(t *testing.T) {
	snap := fixtureSnapshot()
	snap.Transactions[0].CategoryID = 10
	source := &stubSource{snapshot: snap}
	svc, _ := newService(source, nil)

	series, err := svc.SpendSeries(context.Background(), "2026-02", 3, 10)
	if err != nil {
		t.Fatalf("SpendSeries: %v", err)
	}
	if series[2].Amount.Cents != 4000 {
		t.Errorf("current month = %d, want 4000 (only the categorized expense)", series[2].Amount.Cents)
	}
	if series[0].Amount.Cents != 0 || series[1].Amount.Cents != 0 {
		t.Errorf("earlier months should be empty after filter: %+v", series)
	}
}

func TestSpendSeriesRejectsBadMonth(t *testing.T) {
	svc, _ := newService(&stubSource{snapshot: fixtureSnapshot()}, nil)
	if _, err := svc.SpendSeries(context.Background(), "2026-13", 3, 0); err == nil {
		t.Fatal("expected error for invalid month key")
	}
}

func TestSnapshotCaching(t *testing.T) {
	source := &stubSource{snapshot: fixtureSnapshot()}
	svc, _ := newService(source, nil)

	ctx := context.Background()
	if _, err := svc.SpendSeries(ctx, "2026-02", 3, 0); err != nil {
		t.Fatalf("SpendSeries: %v", err)
	}
	if _, err := svc.SpendSeries(ctx, "2026-02", 3, 7); err != nil {
		t.Fatalf("SpendSeries: %v", err)
	}
	if source.calls != 1 {
		t.Errorf("expected 1 upstream fetch, got %d", source.calls)
	}

	svc.InvalidateSnapshots()
	if _, err := svc.SpendSeries(ctx, "2026-02", 3, 0); err != nil {
		t.Fatalf("SpendSeries: %v", err)
	}
	if source.calls != 2 {
		t.Errorf("expected refetch after invalidation, got %d calls", source.calls)
	}
}

func TestMerchantInsightsSortPreference(t *testing.T) {
	source := &stubSource{snapshot: fixtureSnapshot()}
	svc, store := newService(source, nil)
	ctx := context.Background()

	// No preference: rows come back sorted by merchant name.
	result, err := svc.MerchantInsights(ctx, "2026-02", 3, "", "")
	if err != nil {
		t.Fatalf("MerchantInsights: %v", err)
	}
	if len(result.Rows) != 1 || result.Rows[0].Merchant != "Coffee Spot" {
		t.Fatalf("unexpected rows: %+v", result.Rows)
	}
	if result.EffectiveAverageMonths != 2 {
		t.Errorf("EffectiveAverageMonths = %d, want 2", result.EffectiveAverageMonths)
	}

	// Saved preference is applied when no explicit sort is passed.
	if err := svc.SaveSortPreference(ctx, "currentSpend", "desc"); err != nil {
		t.Fatalf("SaveSortPreference: %v", err)
	}
	stored, ok, _ := store.GetPreference(ctx, SortPreferenceKey)
	if !ok || stored != "currentSpend:desc" {
		t.Errorf("stored preference = %q, want currentSpend:desc", stored)
	}
	if _, err := svc.MerchantInsights(ctx, "2026-02", 3, "", ""); err != nil {
		t.Fatalf("MerchantInsights with preference: %v", err)
	}
}

func TestBudgetPerformance(t *testing.T) {
	source := &stubSource{snapshot: fixtureSnapshot()}
	svc, store := newService(source, nil)
	ctx := context.Background()

	err := store.PutTarget(ctx, core.BudgetTarget{
		MonthKey: "2026-02", CategoryID: 10, CategoryName: "Groceries",
		Target: core.Money{Cents: 40000},
	})
	if err != nil {
		t.Fatalf("PutTarget: %v", err)
	}

	rows, err := svc.BudgetPerformance(ctx, "2026-02")
	if err != nil {
		t.Fatalf("BudgetPerformance: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	// Live category name wins over the one stored with the target.
	if row.CategoryName != "Food" {
		t.Errorf("CategoryName = %q, want Food", row.CategoryName)
	}
	// Fixture transactions carry no category, so actual spend is zero.
	if row.Actual.Cents != 0 {
		t.Errorf("Actual = %d, want 0", row.Actual.Cents)
	}
	if row.Status != insight.StatusUnder {
		t.Errorf("Status = %q, want %q", row.Status, insight.StatusUnder)
	}
}

func TestSaveTargetPublishesRefresh(t *testing.T) {
	publisher := &stubPublisher{}
	svc, _ := newService(&stubSource{snapshot: fixtureSnapshot()}, publisher)
	ctx := context.Background()

	target := core.BudgetTarget{
		MonthKey: "2026-02", CategoryID: 10, CategoryName: "Food",
		Target: core.Money{Cents: 40000},
	}
	if err := svc.SaveTarget(ctx, target); err != nil {
		t.Fatalf("SaveTarget: %v", err)
	}
	if err := svc.RemoveTarget(ctx, "2026-02", 10); err != nil {
		t.Fatalf("RemoveTarget: %v", err)
	}

	if len(publisher.months) != 2 {
		t.Fatalf("expected 2 refresh messages, got %d", len(publisher.months))
	}
	for _, reason := range publisher.reasons {
		if reason != "target_changed" {
			t.Errorf("reason = %q, want target_changed", reason)
		}
	}
}

func TestNarrative(t *testing.T) {
	svc, _ := newService(&stubSource{snapshot: fixtureSnapshot()}, nil)

	text, err := svc.Narrative(context.Background(), "2026-02", 3, 0)
	if err != nil {
		t.Fatalf("Narrative: %v", err)
	}
	if text == "" {
		t.Fatal("expected non-empty narrative")
	}
}

func TestRequestReportRefresh(t *testing.T) {
	publisher := &stubPublisher{}
	svc, _ := newService(&stubSource{snapshot: fixtureSnapshot()}, publisher)
	ctx := context.Background()

	if err := svc.RequestReportRefresh(ctx, "2026-02"); err != nil {
		t.Fatalf("RequestReportRefresh: %v", err)
	}
	if len(publisher.reasons) != 1 || publisher.reasons[0] != "manual" {
		t.Errorf("reasons = %v, want [manual]", publisher.reasons)
	}

	if err := svc.RequestReportRefresh(ctx, "2026-13"); !errors.Is(err, core.ErrInvalidMonthKey) {
		t.Errorf("invalid month error = %v, want ErrInvalidMonthKey", err)
	}

	noPublisher, _ := newService(&stubSource{snapshot: fixtureSnapshot()}, nil)
	if err := noPublisher.RequestReportRefresh(ctx, "2026-02"); !errors.Is(err, ErrRefreshUnavailable) {
		t.Errorf("no-publisher error = %v, want ErrRefreshUnavailable", err)
	}
}

func TestBuildReport(t *testing.T) {
	svc, store := newService(&stubSource{snapshot: fixtureSnapshot()}, nil)
	ctx := context.Background()

	if err := store.PutTarget(ctx, core.BudgetTarget{
		MonthKey: "2026-02", CategoryID: 10, CategoryName: "Food",
		Target: core.Money{Cents: 40000},
	}); err != nil {
		t.Fatalf("PutTarget: %v", err)
	}

	rows, series, err := svc.BuildReport(ctx, "2026-02")
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected 1 performance row, got %d", len(rows))
	}
	if len(series) != 3 {
		t.Errorf("expected 3 series points, got %d", len(series))
	}
}
