// Package services orchestrates the insight computations: it pulls
// transaction snapshots from the ledger API, runs the aggregation core over
// them, and layers caching, stored budget targets, and refresh publishing on
// top.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pocketsight/internal/cache"
	"pocketsight/internal/core"
	"pocketsight/internal/format"
	"pocketsight/internal/insight"
	"pocketsight/internal/ledger"
	"pocketsight/internal/ports"
)

// SnapshotSource supplies ledger snapshots for a month window.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context, fromMonth, toMonth string) (ledger.Snapshot, error)
}

// RefreshPublisher notifies the report worker that a month needs
// recomputing.
type RefreshPublisher interface {
	PublishReportRefresh(ctx context.Context, monthKey, reason string) error
}

// Options tune the service defaults.
type Options struct {
	HistoryMonths int
	AverageMonths int
	CacheSize     int
	CacheTTL      time.Duration
	Currency      string
}

const (
	defaultHistoryMonths = 6
	defaultAverageMonths = 3
	defaultCacheSize     = 64
	defaultCacheTTL      = 5 * time.Minute
)

// SortPreferenceKey is the preference slot holding the saved merchant table
// sort, stored as "column:direction".
const SortPreferenceKey = "merchants.sort"

// InsightService computes spend series, merchant tables, narratives, and
// budget performance for a month.
type InsightService struct {
	source    SnapshotSource
	targets   ports.TargetStore
	prefs     ports.PreferenceStore
	publisher RefreshPublisher

	snapshots *cache.LRUCache[ledger.Snapshot]

	historyMonths int
	averageMonths int
	formatAmount  insight.AmountFormatter
}

func NewInsightService(source SnapshotSource, targets ports.TargetStore, prefs ports.PreferenceStore, publisher RefreshPublisher, opts Options) *InsightService {
	if opts.HistoryMonths <= 0 {
		opts.HistoryMonths = defaultHistoryMonths
	}
	if opts.AverageMonths <= 0 {
		opts.AverageMonths = defaultAverageMonths
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}

	return &InsightService{
		source:        source,
		targets:       targets,
		prefs:         prefs,
		publisher:     publisher,
		snapshots:     cache.NewLRUCache[ledger.Snapshot](opts.CacheSize, opts.CacheTTL),
		historyMonths: opts.HistoryMonths,
		averageMonths: opts.AverageMonths,
		formatAmount:  formatterFor(opts.Currency),
	}
}

func formatterFor(currency string) insight.AmountFormatter {
	if currency == "" {
		return nil // SeriesNarrative falls back to plain numbers
	}
	return format.Currency(currency)
}

// SnapshotCache exposes the snapshot cache for cleanup registration.
func (s *InsightService) SnapshotCache() cache.Cleaner {
	return s.snapshots
}

// InvalidateSnapshots drops every cached snapshot so the next query
// refetches. Snapshot keys embed the window, so a single month change can
// touch several cached windows; dropping everything is cheap at this size.
func (s *InsightService) InvalidateSnapshots() {
	s.snapshots.Purge()
}

// snapshot fetches (or reuses) the ledger snapshot covering spanMonths before
// monthKey through monthKey itself.
func (s *InsightService) snapshot(ctx context.Context, monthKey string, spanMonths int) (ledger.Snapshot, error) {
	if !core.IsMonthKey(monthKey) {
		return ledger.Snapshot{}, fmt.Errorf("%w: %q", core.ErrInvalidMonthKey, monthKey)
	}
	fromMonth := insight.ShiftMonthKey(monthKey, -spanMonths)

	key := fromMonth + "|" + monthKey
	if snap, ok := s.snapshots.Get(key); ok {
		slog.DebugContext(ctx, "Snapshot cache hit", "from", fromMonth, "to", monthKey)
		return snap, nil
	}

	snap, err := s.source.FetchSnapshot(ctx, fromMonth, monthKey)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("fetch snapshot %s..%s: %w", fromMonth, monthKey, err)
	}
	s.snapshots.Set(key, snap)
	return snap, nil
}

// SpendSeries builds the monthly spend series ending at monthKey. A positive
// categoryID restricts the series to that category; historyMonths <= 0 uses
// the configured default.
func (s *InsightService) SpendSeries(ctx context.Context, monthKey string, historyMonths int, categoryID int64) ([]insight.SpendPoint, error) {
	if historyMonths <= 0 {
		historyMonths = s.historyMonths
	}

	snap, err := s.snapshot(ctx, monthKey, historyMonths-1)
	if err != nil {
		return nil, err
	}

	txs := snap.Transactions
	if categoryID > 0 {
		filtered := make([]core.Transaction, 0, len(txs))
		for _, tx := range txs {
			if tx.CategoryID == categoryID {
				filtered = append(filtered, tx)
			}
		}
		txs = filtered
	}

	return insight.BuildMonthlySpendSeries(txs, monthKey, historyMonths, snap.EarliestMonth), nil
}

// MerchantInsights builds the merchant table for monthKey. Empty sortColumn
// falls back to the stored sort preference, then to merchant name ascending.
func (s *InsightService) MerchantInsights(ctx context.Context, monthKey string, averageMonths int, sortColumn, sortDirection string) (insight.MerchantResult, error) {
	if averageMonths <= 0 {
		averageMonths = s.averageMonths
	}

	snap, err := s.snapshot(ctx, monthKey, averageMonths)
	if err != nil {
		return insight.MerchantResult{}, err
	}

	result := insight.BuildMerchantRows(snap.Transactions, monthKey, averageMonths, snap.EarliestMonth)

	column, direction := s.resolveSort(ctx, sortColumn, sortDirection)
	if column != "" {
		result.Rows = insight.SortMerchantRows(result.Rows, insight.SortColumn(column), direction)
	}
	return result, nil
}

func (s *InsightService) resolveSort(ctx context.Context, column, direction string) (string, insight.SortDirection) {
	if column == "" && s.prefs != nil {
		if stored, ok, err := s.prefs.GetPreference(ctx, SortPreferenceKey); err == nil && ok {
			if col, dir, found := strings.Cut(stored, ":"); found {
				column, direction = col, dir
			}
		}
	}

	dir := insight.SortAsc
	if strings.EqualFold(direction, "desc") {
		dir = insight.SortDesc
	}
	return column, dir
}

// SaveSortPreference persists the merchant table sort as the new default.
func (s *InsightService) SaveSortPreference(ctx context.Context, column, direction string) error {
	if s.prefs == nil {
		return nil
	}
	if !strings.EqualFold(direction, "desc") {
		direction = "asc"
	}
	return s.prefs.SetPreference(ctx, SortPreferenceKey, column+":"+strings.ToLower(direction))
}

// Narrative renders the one-sentence spending summary for monthKey. A
// positive categoryID narrows the summary to that category.
func (s *InsightService) Narrative(ctx context.Context, monthKey string, historyMonths int, categoryID int64) (string, error) {
	series, err := s.SpendSeries(ctx, monthKey, historyMonths, categoryID)
	if err != nil {
		return "", err
	}
	return insight.SeriesNarrative(series, s.formatAmount), nil
}

// BudgetPerformance compares stored targets against actual spend for
// monthKey.
func (s *InsightService) BudgetPerformance(ctx context.Context, monthKey string) ([]insight.PerformanceRow, error) {
	snap, err := s.snapshot(ctx, monthKey, 0)
	if err != nil {
		return nil, err
	}

	targets, err := s.targets.ListTargets(ctx, monthKey)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}

	return insight.BudgetPerformance(insight.PerformanceInput{
		Categories:       snap.Categories,
		Targets:          targets,
		ActualByCategory: insight.ActualSpendByCategory(snap.Transactions, monthKey),
	}), nil
}

// BuildReport computes everything the export worker ships: performance rows
// plus the spend series for context.
func (s *InsightService) BuildReport(ctx context.Context, monthKey string) ([]insight.PerformanceRow, []insight.SpendPoint, error) {
	rows, err := s.BudgetPerformance(ctx, monthKey)
	if err != nil {
		return nil, nil, err
	}
	series, err := s.SpendSeries(ctx, monthKey, 0, 0)
	if err != nil {
		return nil, nil, err
	}
	return rows, series, nil
}

// ListTargets returns stored budget targets for monthKey.
func (s *InsightService) ListTargets(ctx context.Context, monthKey string) ([]core.BudgetTarget, error) {
	if !core.IsMonthKey(monthKey) {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidMonthKey, monthKey)
	}
	return s.targets.ListTargets(ctx, monthKey)
}

// SaveTarget stores a budget target and nudges the worker to refresh the
// month's report. Publish failures are logged, not returned: the target is
// already saved.
func (s *InsightService) SaveTarget(ctx context.Context, target core.BudgetTarget) error {
	if err := s.targets.PutTarget(ctx, target); err != nil {
		return fmt.Errorf("save target: %w", err)
	}
	s.publishRefresh(ctx, target.MonthKey)
	return nil
}

// RemoveTarget deletes a budget target and nudges the worker.
func (s *InsightService) RemoveTarget(ctx context.Context, monthKey string, categoryID int64) error {
	if !core.IsMonthKey(monthKey) {
		return fmt.Errorf("%w: %q", core.ErrInvalidMonthKey, monthKey)
	}
	if err := s.targets.DeleteTarget(ctx, monthKey, categoryID); err != nil {
		return fmt.Errorf("remove target: %w", err)
	}
	s.publishRefresh(ctx, monthKey)
	return nil
}

// RequestReportRefresh publishes an on-demand export request for monthKey.
func (s *InsightService) RequestReportRefresh(ctx context.Context, monthKey string) error {
	if !core.IsMonthKey(monthKey) {
		return fmt.Errorf("%w: %q", core.ErrInvalidMonthKey, monthKey)
	}
	if s.publisher == nil {
		return ErrRefreshUnavailable
	}
	if err := s.publisher.PublishReportRefresh(ctx, monthKey, refreshReasonManual); err != nil {
		return fmt.Errorf("publish report refresh: %w", err)
	}
	return nil
}

func (s *InsightService) publishRefresh(ctx context.Context, monthKey string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishReportRefresh(ctx, monthKey, refreshReasonTargetChanged); err != nil {
		slog.ErrorContext(ctx, "Failed to publish report refresh",
			"month_key", monthKey, "error", err)
	}
}

// ErrRefreshUnavailable means no refresh publisher is configured.
var ErrRefreshUnavailable = errors.New("report refresh publishing is not configured")

const (
	refreshReasonTargetChanged = "target_changed"
	refreshReasonManual        = "manual"
)
