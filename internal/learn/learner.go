// Package learn feeds user corrections in the ledger back into the
// classification cache.
package learn

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/service"
)

// confidenceFloor keeps decayed cache entries from dropping so low that a
// single stale correction permanently poisons an item.
const confidenceFloor = 0.30

// Learner detects category corrections made in the ledger after sync.
type Learner struct {
	sink   service.LedgerSink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a learner reading current entry state from the ledger.
func New(sink service.LedgerSink, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{sink: sink, logger: logger, now: time.Now}
}

// DetectCorrections diffs each synced snapshot against the ledger's current
// lines. Entries the user deleted are skipped; moved lines produce one
// correction per contributing item key.
func (l *Learner) DetectCorrections(ctx context.Context, synced []model.SyncedEntry) ([]model.Correction, error) {
	var corrections []model.Correction
	for i := range synced {
		snapshot := &synced[i]
		current, err := l.sink.Get(ctx, snapshot.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch ledger entry %s: %w", snapshot.ExternalID, err)
		}
		if current == nil {
			l.logger.Debug("Synced entry no longer in ledger",
				"import_key", snapshot.ImportKey)
			continue
		}
		corrections = append(corrections, diffEntry(snapshot, current, l.now())...)
	}
	return corrections, nil
}

// diffEntry pairs snapshot lines with current lines by amount and reports
// every category that moved.
func diffEntry(snapshot *model.SyncedEntry, current *service.LedgerEntry, detectedAt time.Time) []model.Correction {
	remaining := make([]service.LedgerLine, len(current.Lines))
	copy(remaining, current.Lines)

	var corrections []model.Correction
	for _, line := range snapshot.Lines {
		idx := -1
		// Prefer an untouched line; fall back to any line with the same
		// amount.
		for j, cur := range remaining {
			if cur.AmountMinor != line.AmountMinor {
				continue
			}
			if cur.CategoryID == line.CategoryID {
				idx = j
				break
			}
			if idx < 0 {
				idx = j
			}
		}
		if idx < 0 {
			continue
		}
		cur := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		if cur.CategoryID == line.CategoryID {
			continue
		}
		for _, itemKey := range line.ItemKeys {
			corrections = append(corrections, model.Correction{
				DetectedAt:          detectedAt,
				ItemKey:             itemKey,
				OriginalCategoryID:  line.CategoryID,
				CorrectedCategoryID: cur.CategoryID,
				ImportKey:           snapshot.ImportKey,
			})
		}
	}
	return corrections
}

// ApplyCorrections folds corrections into the cache. Every touched entry
// takes the corrected category, its correction counter, and a confidence
// decay proportional to its correction rate. Decay is monotone and floored,
// and entries are never removed.
func ApplyCorrections(cache map[string]model.CacheEntry, corrections []model.Correction, categories []model.Category, now time.Time) {
	nameByID := make(map[string]string, len(categories))
	for _, cat := range categories {
		nameByID[cat.ID] = cat.Name
	}
	for _, c := range corrections {
		entry, ok := cache[c.ItemKey]
		if !ok {
			entry = model.CacheEntry{
				Key:        c.ItemKey,
				Confidence: 1.0,
			}
		}
		entry.CategoryID = c.CorrectedCategoryID
		entry.CategoryName = nameByID[c.CorrectedCategoryID]
		entry.TimesCorrected++
		entry.LastUsedAt = now

		rate := float64(entry.TimesCorrected) / float64(entry.TimesUsed+entry.TimesCorrected)
		decayed := entry.Confidence * (1 - rate)
		if decayed < confidenceFloor {
			decayed = confidenceFloor
		}
		if decayed < entry.Confidence {
			entry.Confidence = decayed
		}
		cache[c.ItemKey] = entry
	}
}
