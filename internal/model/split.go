package model

import (
	"fmt"
	"time"
)

// SplitLine is one category line inside a split entry.
type SplitLine struct {
	CategoryID  string
	Memo        string
	AmountMinor int64
}

// SplitEntry is a synthesized ledger entry: one parent transaction split
// across category lines. The import key makes creation idempotent; the
// ledger rejects duplicates of a key it has already seen.
type SplitEntry struct {
	Date       time.Time
	ImportKey  string
	Payee      string
	Memo       string
	OrderID    string
	Lines      []SplitLine
	TotalMinor int64
	IsItemized bool
}

// ImportKey builds the deterministic idempotency key for a charge. The
// version prefix is bumped when an entry is recreated after a category
// correction, because the ledger remembers deleted keys and would silently
// drop an exact re-import.
func ImportKey(version int, orderID string, amountMinor int64, dir Direction) string {
	return fmt.Sprintf("SPL%d:%s:%d:%s", version, orderID, amountMinor, dir.Letter())
}

// Validate checks the split invariant: line amounts sum to the entry total.
func (e *SplitEntry) Validate() error {
	var sum int64
	for i := range e.Lines {
		sum += e.Lines[i].AmountMinor
	}
	if sum != e.TotalMinor {
		return fmt.Errorf("split entry %s: line sum %d does not equal total %d",
			e.ImportKey, sum, e.TotalMinor)
	}
	return nil
}
