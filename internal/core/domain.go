package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Transaction is a single ledger entry as delivered by the upstream
	// budgeting API. Amounts are signed cents: negative for outflows.
	Transaction struct {
		ID                string
		AccountID         string
		PostedAt          time.Time
		Amount            Money
		Pending           bool
		Description       string
		Payee             string
		Memo              string
		CategoryID        int64
		InternalTransfer  bool
		ExcludeFromTotals bool
		Notes             string
	}

	// Category is an upstream spending category.
	Category struct {
		ID   int64
		Name string
	}

	// BudgetTarget is a locally stored spending target for one category in
	// one month.
	BudgetTarget struct {
		MonthKey     string
		CategoryID   int64
		CategoryName string
		Target       Money
		Notes        string
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidMonthKey = errors.New("invalid month key")
	ErrEmptyCategory   = errors.New("empty category name")

	ErrEmptyPreferenceKey = errors.New("empty preference key")
)

// Validate checks a budget target before it is persisted.
func (t BudgetTarget) Validate() error {
	if !IsMonthKey(t.MonthKey) {
		return ErrInvalidMonthKey
	}
	if t.CategoryID <= 0 {
		return errors.New("invalid category id")
	}
	if strings.TrimSpace(t.CategoryName) == "" {
		return ErrEmptyCategory
	}
	if len(t.CategoryName) > 200 {
		return errors.New("category name too long (max 200 characters)")
	}
	if t.Target.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// IsMonthKey reports whether s is a canonical YYYY-MM month key with a
// month between 01 and 12.
func IsMonthKey(s string) bool {
	if len(s) != 7 || s[4] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	month := int(s[5]-'0')*10 + int(s[6]-'0')
	return month >= 1 && month <= 12
}
