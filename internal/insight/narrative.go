package insight

import (
	"fmt"
	"math"

	"pocketsight/internal/core"
)

// AmountFormatter renders a money value for narrative text. Callers inject
// their presentation-layer formatter; the aggregation code never owns
// currency formatting.
type AmountFormatter func(core.Money) string

func plainAmount(m core.Money) string {
	return fmt.Sprintf("%.2f", m.Major())
}

// SeriesNarrative summarizes a spend series in one sentence: the latest
// month's spend compared against the average of the preceding months in the
// series. Deterministic for a given series; empty input yields a fixed
// no-data sentence.
func SeriesNarrative(series []SpendPoint, formatAmount AmountFormatter) string {
	if formatAmount == nil {
		formatAmount = plainAmount
	}
	if len(series) == 0 {
		return "No spending data for this period."
	}

	current := series[len(series)-1]
	prior := series[:len(series)-1]
	if len(prior) == 0 {
		return fmt.Sprintf("Spending in %s was %s.", current.Label, formatAmount(current.Amount))
	}

	var priorTotal int64
	for _, p := range prior {
		priorTotal += p.Amount.Cents
	}
	avg := core.Money{Cents: core.RoundHalfUp(priorTotal, int64(len(prior)))}
	if avg.Cents == 0 {
		if current.Amount.Cents == 0 {
			return fmt.Sprintf("No spending recorded in %s or the preceding %s.", current.Label, monthsPhrase(len(prior)))
		}
		return fmt.Sprintf("Spending in %s was %s, up from nothing in the preceding %s.",
			current.Label, formatAmount(current.Amount), monthsPhrase(len(prior)))
	}

	pct := math.Round(math.Abs(float64(current.Amount.Cents-avg.Cents)) / float64(avg.Cents) * 100)
	direction := "above"
	if current.Amount.Cents < avg.Cents {
		direction = "below"
	}
	if pct == 0 {
		return fmt.Sprintf("Spending in %s was %s, in line with the %s average of %s.",
			current.Label, formatAmount(current.Amount), monthsPhrase(len(prior)), formatAmount(avg))
	}
	return fmt.Sprintf("Spending in %s was %s, %.0f%% %s the %s average of %s.",
		current.Label, formatAmount(current.Amount), pct, direction, monthsPhrase(len(prior)), formatAmount(avg))
}

func monthsPhrase(n int) string {
	if n == 1 {
		return "1-month"
	}
	return fmt.Sprintf("%d-month", n)
}
