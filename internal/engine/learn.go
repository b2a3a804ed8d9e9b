package engine

import (
	"context"
	"fmt"

	"github.com/fernwick/ledgerloom/internal/learn"
	"github.com/fernwick/ledgerloom/internal/model"
)

// Learn runs the correction feedback loop: diff synced snapshots against
// the ledger's current state, record every divergence, and fold the
// corrections into the category cache.
func (e *Engine) Learn(ctx context.Context) ([]model.Correction, error) {
	synced, err := e.storage.GetSyncedEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync snapshots: %w", err)
	}
	if len(synced) == 0 {
		e.logger.Info("No synced entries to learn from")
		return nil, nil
	}

	learner := learn.New(e.sink, e.logger)
	corrections, err := learner.DetectCorrections(ctx, synced)
	if err != nil {
		return nil, err
	}
	if len(corrections) == 0 {
		e.logger.Info("No corrections detected", "entries_checked", len(synced))
		return nil, nil
	}

	for i := range corrections {
		if err := e.storage.SaveCorrection(ctx, &corrections[i]); err != nil {
			return nil, fmt.Errorf("failed to record correction: %w", err)
		}
	}

	cache, err := e.storage.LoadCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load category cache: %w", err)
	}
	categories, err := e.storage.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	learn.ApplyCorrections(cache, corrections, categories, e.now())
	if err := e.storage.SaveCache(ctx, cache); err != nil {
		return nil, fmt.Errorf("failed to persist category cache: %w", err)
	}

	e.logger.Info("Applied corrections to cache",
		"corrections", len(corrections),
		"entries_checked", len(synced))
	return corrections, nil
}
