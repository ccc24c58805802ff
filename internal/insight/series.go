package insight

import (
	"pocketsight/internal/core"
)

// SpendPoint is one month of a spend series. Amount is non-negative cents.
type SpendPoint struct {
	Month  string     `json:"month"`
	Label  string     `json:"label"`
	Amount core.Money `json:"amount"`
}

// BuildMonthlySpendSeries totals eligible spend per month over the
// historyMonths-wide window ending at monthKey, clipped to earliest when
// provided. The series is dense: every month in the window gets a point,
// with zero amounts where no transactions matched, so charts never see
// gaps. An empty window yields an empty series.
func BuildMonthlySpendSeries(txs []core.Transaction, monthKey string, historyMonths int, earliest string) []SpendPoint {
	months := MonthRangeEndingAt(monthKey, historyMonths, earliest)
	if len(months) == 0 {
		return nil
	}

	totals := make(map[string]int64, len(months))
	for _, m := range months {
		totals[m] = 0
	}
	for _, tx := range txs {
		if !IsEligibleExpense(tx) {
			continue
		}
		m := MonthKeyFromTime(tx.PostedAt)
		if _, inRange := totals[m]; !inRange {
			continue
		}
		totals[m] += tx.Amount.Abs().Cents
	}

	series := make([]SpendPoint, 0, len(months))
	for _, m := range months {
		series = append(series, SpendPoint{
			Month:  m,
			Label:  MonthLabel(m),
			Amount: core.Money{Cents: totals[m]},
		})
	}
	return series
}
