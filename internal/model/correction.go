package model

import "time"

// Correction records a user fixing a category in the ledger after sync. The
// corrections table is append-only audit history; the cache is updated
// separately.
type Correction struct {
	DetectedAt          time.Time
	ItemKey             string
	ItemName            string
	OriginalCategoryID  string
	CorrectedCategoryID string
	ImportKey           string
}

// SyncedLine is the category snapshot of one line at synthesis time.
type SyncedLine struct {
	CategoryID  string
	ItemKeys    []string
	AmountMinor int64
}

// SyncedEntry is the record of a split entry uploaded to the ledger. The
// snapshot of lines and contributing item keys is what the correction
// learner diffs against the ledger's current state.
type SyncedEntry struct {
	SyncedAt    time.Time
	ImportKey   string
	ExternalID  string
	Payee       string
	Lines       []SyncedLine
	TotalMinor  int64
	KeyVersion  int
}
