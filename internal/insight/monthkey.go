// Package insight derives budget insight views from transaction batches:
// monthly spend series, merchant aggregates with trailing averages, and
// budget-vs-actual performance. Everything here is pure and side-effect
// free; callers supply snapshots and receive fresh result values.
package insight

import (
	"fmt"
	"strconv"
	"time"

	"pocketsight/internal/core"
)

// NormalizeMonthKey returns value when it is a canonical YYYY-MM month key,
// and fallback otherwise. It never fails: malformed input degrades to the
// caller's default.
func NormalizeMonthKey(value, fallback string) string {
	if core.IsMonthKey(value) {
		return value
	}
	return fallback
}

// parseMonthKey splits a canonical month key into year and month.
func parseMonthKey(key string) (year, month int, ok bool) {
	if !core.IsMonthKey(key) {
		return 0, 0, false
	}
	year, err := strconv.Atoi(key[:4])
	if err != nil {
		return 0, 0, false
	}
	month, err = strconv.Atoi(key[5:])
	if err != nil {
		return 0, 0, false
	}
	return year, month, true
}

func formatMonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// ShiftMonthKey returns the month key delta months away from key. The shift
// runs over a linear month index (year*12 + month-1) so calendar edge cases
// cannot bite. Unparseable keys and shifts outside the representable year
// range come back unchanged.
func ShiftMonthKey(key string, delta int) string {
	year, month, ok := parseMonthKey(key)
	if !ok {
		return key
	}
	idx := year*12 + (month - 1) + delta
	if idx < 0 || idx > 9999*12+11 {
		return key
	}
	return formatMonthKey(idx/12, idx%12+1)
}

// MonthRangeEndingAt returns the ordered month keys [key-months+1 .. key],
// clipped so no key precedes earliest (when earliest is a valid month key).
// A non-positive width, an unparseable end key, or a clipped start past the
// end all yield an empty range.
func MonthRangeEndingAt(key string, months int, earliest string) []string {
	if months <= 0 || !core.IsMonthKey(key) {
		return nil
	}
	start := ShiftMonthKey(key, -(months - 1))
	if core.IsMonthKey(earliest) && earliest > start {
		start = earliest
	}
	if start > key {
		return nil
	}
	// Walk a linear month index rather than shifting keys: ShiftMonthKey
	// clamps at the representable year range, which would stall a key
	// comparison loop at the upper bound.
	startYear, startMonth, ok := parseMonthKey(start)
	if !ok {
		return nil
	}
	endYear, endMonth, _ := parseMonthKey(key)
	startIdx := startYear*12 + startMonth - 1
	endIdx := endYear*12 + endMonth - 1
	keys := make([]string, 0, endIdx-startIdx+1)
	for idx := startIdx; idx <= endIdx; idx++ {
		keys = append(keys, formatMonthKey(idx/12, idx%12+1))
	}
	return keys
}

// LaterMonthKey returns the chronologically later of two optional month
// keys. Empty or malformed values count as absent; when both are absent the
// result is empty. Ties resolve to a.
func LaterMonthKey(a, b string) string {
	if !core.IsMonthKey(a) {
		a = ""
	}
	if !core.IsMonthKey(b) {
		b = ""
	}
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case a >= b:
		return a
	default:
		return b
	}
}

// MonthKeyFromTime returns the UTC month key for t.
func MonthKeyFromTime(t time.Time) string {
	u := t.UTC()
	return formatMonthKey(u.Year(), int(u.Month()))
}

// MonthKeyFromISODate extracts the UTC month key from an ISO timestamp or
// plain date. Returns "" for missing or unparseable input.
func MonthKeyFromISODate(s string) string {
	if s == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthKeyFromTime(t)
		}
	}
	return ""
}

// MonthLabel renders a month key for display, e.g. "Feb 2026". Unparseable
// keys come back unchanged.
func MonthLabel(key string) string {
	year, month, ok := parseMonthKey(key)
	if !ok {
		return key
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).Format("Jan 2006")
}
