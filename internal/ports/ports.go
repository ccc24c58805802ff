package ports

import (
	"context"

	"pocketsight/internal/core"
	"pocketsight/internal/insight"
)

// Ports for outbound adapters.
type (
	// TransactionSource supplies transaction batches covering a month-key
	// range, inclusive on both ends.
	TransactionSource interface {
		ListTransactions(ctx context.Context, fromMonth, toMonth string) ([]core.Transaction, error)
	}

	// CategorySource supplies the upstream category list.
	CategorySource interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	// CoverageSource reports the earliest month for which the upstream has
	// transaction data, as a month key ("" when unknown).
	CoverageSource interface {
		EarliestMonth(ctx context.Context) (string, error)
	}

	// TargetStore persists budget targets keyed by (month key, category id).
	TargetStore interface {
		ListTargets(ctx context.Context, monthKey string) ([]core.BudgetTarget, error)
		PutTarget(ctx context.Context, target core.BudgetTarget) error
		DeleteTarget(ctx context.Context, monthKey string, categoryID int64) error
	}

	// PreferenceStore is a small composite-key value store for view
	// preferences (sort order, default windows), replacing what the
	// browser build kept in local storage.
	PreferenceStore interface {
		GetPreference(ctx context.Context, key string) (string, bool, error)
		SetPreference(ctx context.Context, key, value string) error
		DeletePreference(ctx context.Context, key string) error
	}

	// ReportExporter writes a computed budget report to an external
	// destination. Ref identifies the destination for log output.
	ReportExporter interface {
		ExportBudgetReport(ctx context.Context, monthKey string, rows []insight.PerformanceRow, series []insight.SpendPoint) error
		Ref() string
	}
)
