package insight

import (
	"pocketsight/internal/core"
)

// PerformanceStatus classifies a budget row.
type PerformanceStatus string

const (
	StatusUnder   PerformanceStatus = "under"
	StatusOver    PerformanceStatus = "over"
	StatusOnTrack PerformanceStatus = "on_track"
)

// PerformanceRow is one category's target-vs-actual comparison. Variance is
// target minus actual: negative means overspent.
type PerformanceRow struct {
	CategoryID   int64             `json:"categoryId"`
	CategoryName string            `json:"categoryName"`
	Target       core.Money        `json:"targetAmount"`
	Actual       core.Money        `json:"actualAmount"`
	Variance     core.Money        `json:"varianceAmount"`
	VariancePct  float64           `json:"variancePct"`
	Status       PerformanceStatus `json:"status"`
}

// PerformanceInput bundles the three collaborator-supplied inputs.
type PerformanceInput struct {
	Categories       []core.Category
	Targets          []core.BudgetTarget
	ActualByCategory map[int64]core.Money
}

// onTrackToleranceCents: a variance within one cent either way still counts
// as on track.
const onTrackToleranceCents = 1

// BudgetPerformance computes a performance row per target. Actuals default
// to zero for categories with no recorded spend; a zero target yields a
// zero variance percentage rather than a division blow-up. Category names
// prefer the live category list, falling back to the name captured on the
// target.
func BudgetPerformance(in PerformanceInput) []PerformanceRow {
	nameByID := make(map[int64]string, len(in.Categories))
	for _, c := range in.Categories {
		nameByID[c.ID] = c.Name
	}

	rows := make([]PerformanceRow, 0, len(in.Targets))
	for _, target := range in.Targets {
		actual := in.ActualByCategory[target.CategoryID]
		variance := target.Target.Cents - actual.Cents

		var pct float64
		if target.Target.Cents > 0 {
			pct = float64(variance) / float64(target.Target.Cents) * 100
		}

		status := StatusUnder
		switch {
		case variance >= -onTrackToleranceCents && variance <= onTrackToleranceCents:
			status = StatusOnTrack
		case variance < 0:
			status = StatusOver
		}

		name := target.CategoryName
		if live, ok := nameByID[target.CategoryID]; ok && live != "" {
			name = live
		}

		rows = append(rows, PerformanceRow{
			CategoryID:   target.CategoryID,
			CategoryName: name,
			Target:       target.Target,
			Actual:       actual,
			Variance:     core.Money{Cents: variance},
			VariancePct:  pct,
			Status:       status,
		})
	}
	return rows
}

// ActualSpendByCategory aggregates eligible spend per category for a single
// month, the shape BudgetPerformance expects for actuals.
func ActualSpendByCategory(txs []core.Transaction, monthKey string) map[int64]core.Money {
	totals := make(map[int64]core.Money)
	for _, tx := range txs {
		if !IsEligibleExpense(tx) {
			continue
		}
		if MonthKeyFromTime(tx.PostedAt) != monthKey {
			continue
		}
		m := totals[tx.CategoryID]
		m.Cents += tx.Amount.Abs().Cents
		totals[tx.CategoryID] = m
	}
	return totals
}
