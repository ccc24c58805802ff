// Package format renders money values for display. Formatters are built once
// per currency code and cached, since every insight response formats many
// amounts with the same currency.
package format

import (
	"fmt"
	"strings"
	"sync"

	"pocketsight/internal/core"
	"pocketsight/internal/insight"
)

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CHF": "CHF ",
}

var (
	mu    sync.Mutex
	cache = map[string]insight.AmountFormatter{}
)

// Currency returns a formatter for the given ISO currency code. Unknown codes
// fall back to "CODE 12.34".
func Currency(code string) insight.AmountFormatter {
	code = strings.ToUpper(strings.TrimSpace(code))

	mu.Lock()
	defer mu.Unlock()
	if f, ok := cache[code]; ok {
		return f
	}

	prefix, ok := symbols[code]
	if !ok && code != "" {
		prefix = code + " "
	}
	f := func(m core.Money) string {
		cents := m.Cents
		sign := ""
		if cents < 0 {
			sign = "-"
			cents = -cents
		}
		return fmt.Sprintf("%s%s%s.%02d", sign, prefix, group(cents/100), cents%100)
	}
	cache[code] = f
	return f
}

// group inserts thousands separators into a non-negative integer.
func group(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
