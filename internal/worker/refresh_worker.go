// Package worker recomputes and exports budget reports. Refresh requests
// arrive over AMQP (a target changed, or a manual nudge); a ticker also
// refreshes the current month on a schedule so exports never go stale.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pocketsight/internal/amqp"
	"pocketsight/internal/insight"
	applog "pocketsight/internal/log"
	"pocketsight/internal/ports"
)

// ReportBuilder computes the exportable report for a month.
type ReportBuilder interface {
	BuildReport(ctx context.Context, monthKey string) ([]insight.PerformanceRow, []insight.SpendPoint, error)
	InvalidateSnapshots()
}

// RefreshWorker consumes refresh messages and ships reports to the exporter.
type RefreshWorker struct {
	builder  ReportBuilder
	exporter ports.ReportExporter
	interval time.Duration
	events   *applog.StructuredLogger
}

func NewRefreshWorker(builder ReportBuilder, exporter ports.ReportExporter, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		builder:  builder,
		exporter: exporter,
		interval: interval,
		events: applog.NewStructuredLogger(applog.New(applog.Config{
			Component: applog.ComponentWorker,
		})),
	}
}

// HandleRefreshMessage processes a single refresh request.
func (w *RefreshWorker) HandleRefreshMessage(ctx context.Context, msg *amqp.ReportRefreshMessage) error {
	slog.InfoContext(ctx, "Processing refresh message",
		"month_key", msg.MonthKey,
		"reason", msg.Reason)

	// A refresh means upstream state changed; drop cached snapshots so the
	// rebuilt report sees it.
	w.builder.InvalidateSnapshots()

	return w.RefreshMonth(ctx, msg.MonthKey)
}

// RefreshMonth recomputes the report for one month and exports it.
func (w *RefreshWorker) RefreshMonth(ctx context.Context, monthKey string) error {
	rows, series, err := w.builder.BuildReport(ctx, monthKey)
	if err != nil {
		return fmt.Errorf("build report for %s: %w", monthKey, err)
	}

	if w.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, skipping export",
			"month_key", monthKey)
		return nil
	}

	if err := w.exporter.ExportBudgetReport(ctx, monthKey, rows, series); err != nil {
		return fmt.Errorf("export report for %s: %w", monthKey, err)
	}

	w.events.LogReportExported(ctx, monthKey, len(rows), w.exporter.Ref())

	return nil
}

// RunScheduled refreshes the current month on the configured interval until
// the context is cancelled. Errors are logged and retried on the next tick.
func (w *RefreshWorker) RunScheduled(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("refresh interval must be positive, got %v", w.interval)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Scheduled refresh started", "interval", w.interval)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Scheduled refresh stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			monthKey := insight.MonthKeyFromTime(time.Now())
			w.builder.InvalidateSnapshots()
			if err := w.RefreshMonth(ctx, monthKey); err != nil {
				slog.ErrorContext(ctx, "Scheduled refresh failed",
					"month_key", monthKey, "error", err)
			}
		}
	}
}
