package insight

import (
	"strings"

	"pocketsight/internal/core"
)

// UnknownMerchant is the placeholder identity for transactions with no
// usable payee, description, or memo.
const UnknownMerchant = "Unknown Merchant"

// IsEligibleExpense reports whether a transaction counts toward spend
// totals: a strict outflow that is neither an internal transfer nor flagged
// as excluded. Exactly zero is not spend.
func IsEligibleExpense(tx core.Transaction) bool {
	return tx.Amount.Cents < 0 && !tx.InternalTransfer && !tx.ExcludeFromTotals
}

// MerchantName resolves a transaction's merchant identity: the first
// non-empty trimmed value among payee, description, and memo, in that
// order, falling back to UnknownMerchant.
func MerchantName(tx core.Transaction) string {
	for _, candidate := range []string{tx.Payee, tx.Description, tx.Memo} {
		if name := strings.TrimSpace(candidate); name != "" {
			return name
		}
	}
	return UnknownMerchant
}
