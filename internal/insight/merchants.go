package insight

import (
	"math"
	"sort"
	"strings"

	"pocketsight/internal/core"
)

// MerchantRow is one merchant's current-month activity alongside its
// trailing-window averages.
type MerchantRow struct {
	Merchant         string     `json:"merchant"`
	CurrentCount     int        `json:"currentMonthTransactionCount"`
	CurrentSpend     core.Money `json:"currentMonthSpend"`
	AvgCountPerMonth float64    `json:"averageTransactionCountPerMonth"`
	AvgSpendPerMonth core.Money `json:"averageSpendPerMonth"`
}

// MerchantResult carries the rows plus the window size actually used, which
// may be smaller than requested when history is clipped.
type MerchantResult struct {
	Rows                   []MerchantRow `json:"rows"`
	EffectiveAverageMonths int           `json:"effectiveAverageMonths"`
}

type merchantAccum struct {
	currentCount int
	currentSpend int64
	windowCount  int
	windowSpend  int64
	activeMonths map[string]struct{}
}

// BuildMerchantRows groups eligible spend by merchant for the target month
// and for the averageMonths-wide window strictly before it (clipped to
// earliest). The per-merchant spend average divides by the merchant's
// active months inside the window, not the window width: a merchant seen in
// 2 of 6 window months averages over 2. The count average divides by the
// full effective window. Rows come back sorted by merchant name ascending.
func BuildMerchantRows(txs []core.Transaction, monthKey string, averageMonths int, earliest string) MerchantResult {
	window := MonthRangeEndingAt(ShiftMonthKey(monthKey, -1), averageMonths, earliest)
	inWindow := make(map[string]struct{}, len(window))
	for _, m := range window {
		inWindow[m] = struct{}{}
	}

	accums := make(map[string]*merchantAccum)
	byMerchant := func(name string) *merchantAccum {
		a, ok := accums[name]
		if !ok {
			a = &merchantAccum{activeMonths: make(map[string]struct{})}
			accums[name] = a
		}
		return a
	}

	for _, tx := range txs {
		if !IsEligibleExpense(tx) {
			continue
		}
		m := MonthKeyFromTime(tx.PostedAt)
		switch {
		case m == monthKey:
			a := byMerchant(MerchantName(tx))
			a.currentCount++
			a.currentSpend += tx.Amount.Abs().Cents
		default:
			if _, ok := inWindow[m]; !ok {
				continue
			}
			a := byMerchant(MerchantName(tx))
			a.windowCount++
			a.windowSpend += tx.Amount.Abs().Cents
			a.activeMonths[m] = struct{}{}
		}
	}

	rows := make([]MerchantRow, 0, len(accums))
	for name, a := range accums {
		row := MerchantRow{
			Merchant:     name,
			CurrentCount: a.currentCount,
			CurrentSpend: core.Money{Cents: a.currentSpend},
		}
		if len(window) > 0 {
			row.AvgCountPerMonth = round2(float64(a.windowCount) / float64(len(window)))
		}
		// Spend averages over months the merchant was active in, so a
		// merchant seen once is not diluted across the whole window.
		row.AvgSpendPerMonth = core.Money{Cents: core.RoundHalfUp(a.windowSpend, int64(len(a.activeMonths)))}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return compareMerchantNames(rows[i].Merchant, rows[j].Merchant) < 0
	})

	return MerchantResult{Rows: rows, EffectiveAverageMonths: len(window)}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortColumn names a sortable merchant table column.
type SortColumn string

const (
	SortByMerchant     SortColumn = "merchant"
	SortByCurrentCount SortColumn = "currentCount"
	SortByCurrentSpend SortColumn = "currentSpend"
	SortByAvgCount     SortColumn = "avgCount"
	SortByAvgSpend     SortColumn = "avgSpend"
)

// ParseSortColumn maps a column name onto its SortColumn, reporting whether
// the name is one of the sortable columns.
func ParseSortColumn(name string) (SortColumn, bool) {
	switch c := SortColumn(name); c {
	case SortByMerchant, SortByCurrentCount, SortByCurrentSpend, SortByAvgCount, SortByAvgSpend:
		return c, true
	default:
		return "", false
	}
}

// SortDirection is "asc" or "desc".
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// floats closer than this are a tie
const numericTieEpsilon = 0.0001

// SortMerchantRows returns a new, stably sorted copy of rows. Name ordering
// is case-insensitive. Numeric ties always fall back to ascending merchant
// name regardless of the requested direction, so any input has exactly one
// valid output order.
func SortMerchantRows(rows []MerchantRow, column SortColumn, direction SortDirection) []MerchantRow {
	sorted := make([]MerchantRow, len(rows))
	copy(sorted, rows)

	desc := direction == SortDesc
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if column == SortByMerchant {
			c := compareMerchantNames(a.Merchant, b.Merchant)
			if desc {
				return c > 0
			}
			return c < 0
		}
		diff := numericColumn(a, column) - numericColumn(b, column)
		if math.Abs(diff) <= numericTieEpsilon {
			return compareMerchantNames(a.Merchant, b.Merchant) < 0
		}
		if desc {
			return diff > 0
		}
		return diff < 0
	})
	return sorted
}

func numericColumn(r MerchantRow, column SortColumn) float64 {
	switch column {
	case SortByCurrentCount:
		return float64(r.CurrentCount)
	case SortByCurrentSpend:
		return float64(r.CurrentSpend.Cents)
	case SortByAvgCount:
		return r.AvgCountPerMonth
	case SortByAvgSpend:
		return float64(r.AvgSpendPerMonth.Cents)
	default:
		return 0
	}
}

func compareMerchantNames(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
