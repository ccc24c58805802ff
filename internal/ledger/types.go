package ledger

import (
	"fmt"
	"time"

	"pocketsight/internal/core"
)

// Wire types for the upstream budgeting API.

type transactionPage struct {
	Transactions []wireTransaction `json:"transactions"`
	Page         int               `json:"page"`
	TotalPages   int               `json:"totalPages"`
}

type wireTransaction struct {
	ID                string        `json:"id"`
	AccountID         string        `json:"accountId"`
	PostedAt          string        `json:"postedAt"`
	Amount            string        `json:"amount"`
	Pending           bool          `json:"pending"`
	Description       string        `json:"description"`
	Payee             string        `json:"payee"`
	Memo              string        `json:"memo"`
	Category          *wireCategory `json:"category"`
	InternalTransfer  bool          `json:"internalTransfer"`
	ExcludeFromTotals bool          `json:"excludeFromTotals"`
	Notes             string        `json:"notes"`
}

type wireCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type categoryList struct {
	Categories []wireCategory `json:"categories"`
}

type coverageResponse struct {
	EarliestPostedAt string `json:"earliestPostedAt"`
}

func (w wireTransaction) toCore() (core.Transaction, error) {
	posted, err := time.Parse(time.RFC3339, w.PostedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse posted time %q: %w", w.PostedAt, err)
	}
	cents, err := core.ParseSignedDecimalToCents(w.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", w.Amount, err)
	}
	tx := core.Transaction{
		ID:                w.ID,
		AccountID:         w.AccountID,
		PostedAt:          posted,
		Amount:            core.Money{Cents: cents},
		Pending:           w.Pending,
		Description:       w.Description,
		Payee:             w.Payee,
		Memo:              w.Memo,
		InternalTransfer:  w.InternalTransfer,
		ExcludeFromTotals: w.ExcludeFromTotals,
		Notes:             w.Notes,
	}
	if w.Category != nil {
		tx.CategoryID = w.Category.ID
	}
	return tx, nil
}

// Snapshot is everything the insight layer needs for one query window,
// fetched in a single pass.
type Snapshot struct {
	Transactions  []core.Transaction
	Categories    []core.Category
	EarliestMonth string
}
