package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/syncplan"
)

// SyncStats summarizes plan execution.
type SyncStats struct {
	Created   int
	Recreated int
	Skipped   int
	Conflicts int
	Deferred  int
}

// PlanSync computes the disposition of prepared entries against the
// ledger's current import keys and the local sync snapshots.
func (e *Engine) PlanSync(ctx context.Context, prepared []PreparedEntry) (*syncplan.Plan, error) {
	existing, err := e.sink.ExistingImportKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger import keys: %w", err)
	}
	syncedList, err := e.storage.GetSyncedEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync snapshots: %w", err)
	}
	synced := make(map[string]*model.SyncedEntry, len(syncedList))
	for i := range syncedList {
		synced[syncedList[i].ImportKey] = &syncedList[i]
	}

	entries := make([]*model.SplitEntry, len(prepared))
	for i := range prepared {
		entries[i] = prepared[i].Entry
	}
	return syncplan.Build(entries, existing, synced)
}

// ExecutePlan applies a sync plan against the ledger. Rate-limited writes
// are retried with backoff; an entry that exhausts its retries is deferred
// to the next run, never half-written. Conflicting keys are surfaced as
// review items and left untouched.
func (e *Engine) ExecutePlan(ctx context.Context, plan *syncplan.Plan, prepared []PreparedEntry) (*SyncStats, error) {
	// Keyed by version-stripped import key so recreated entries, which carry
	// a bumped key, still find their line item keys.
	itemKeys := make(map[string]map[string][]string, len(prepared))
	for i := range prepared {
		base, err := syncplan.BaseKey(prepared[i].Entry.ImportKey)
		if err != nil {
			return nil, err
		}
		itemKeys[base] = prepared[i].LineItemKeys
	}

	stats := &SyncStats{
		Skipped:   len(plan.Skip),
		Conflicts: len(plan.Conflicts),
	}

	for _, key := range plan.Conflicts {
		item := model.ReviewItem{
			ID:         newReviewID(),
			ChargeHash: key,
			Reason:     model.ReviewSyncDeferred,
			Detail:     fmt.Sprintf("import key %s exists in ledger without a local sync record: %v", key, common.ErrSyncConflict),
			CreatedAt:  e.now(),
		}
		if err := e.storage.SaveReviewItem(ctx, &item); err != nil {
			return nil, err
		}
	}

	bar := progressbar.NewOptions(len(plan.Create)+len(plan.Recreate),
		progressbar.OptionSetDescription("Syncing entries"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	for _, entry := range plan.Create {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base, err := syncplan.BaseKey(entry.ImportKey)
		if err != nil {
			return nil, err
		}
		if err := e.createEntry(ctx, entry, 1, itemKeys[base]); err != nil {
			if errors.Is(err, common.ErrMaxRetries) {
				e.logger.Warn("Deferring entry after exhausted retries",
					"import_key", entry.ImportKey,
					"error", err)
				stats.Deferred++
				_ = bar.Add(1)
				continue
			}
			if errors.Is(err, common.ErrDuplicateEntry) {
				// The ledger already holds or burned this key behind our
				// back. Same treatment as a planner conflict: surface it
				// for review and leave the ledger alone.
				e.logger.Warn("Ledger rejected import key as duplicate",
					"import_key", entry.ImportKey)
				item := model.ReviewItem{
					ID:         newReviewID(),
					ChargeHash: entry.ImportKey,
					Reason:     model.ReviewSyncDeferred,
					Detail:     fmt.Sprintf("import key %s rejected by ledger as duplicate: %v", entry.ImportKey, common.ErrSyncConflict),
					CreatedAt:  e.now(),
				}
				if saveErr := e.storage.SaveReviewItem(ctx, &item); saveErr != nil {
					return nil, saveErr
				}
				stats.Conflicts++
				_ = bar.Add(1)
				continue
			}
			return nil, err
		}
		stats.Created++
		_ = bar.Add(1)
	}

	for _, rec := range plan.Recreate {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base, err := syncplan.BaseKey(rec.Entry.ImportKey)
		if err != nil {
			return nil, err
		}
		if err := e.recreateEntry(ctx, rec, itemKeys[base]); err != nil {
			if errors.Is(err, common.ErrMaxRetries) {
				e.logger.Warn("Deferring recreate after exhausted retries",
					"import_key", rec.Entry.ImportKey,
					"error", err)
				stats.Deferred++
				_ = bar.Add(1)
				continue
			}
			return nil, err
		}
		stats.Recreated++
		_ = bar.Add(1)
	}

	e.logger.Info("Sync plan executed",
		"created", stats.Created,
		"recreated", stats.Recreated,
		"skipped", stats.Skipped,
		"conflicts", stats.Conflicts,
		"deferred", stats.Deferred)
	return stats, nil
}

// createEntry writes one entry and records its snapshot.
func (e *Engine) createEntry(ctx context.Context, entry *model.SplitEntry, keyVersion int, lineKeys map[string][]string) error {
	var externalID string
	err := common.WithRetry(ctx, func() error {
		id, err := e.sink.Create(ctx, entry)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: common.IsRetryable(err)}
		}
		externalID = id
		return nil
	}, e.cfg.RetryOpts)
	if err != nil {
		return err
	}

	snapshot := &model.SyncedEntry{
		SyncedAt:   e.now(),
		ImportKey:  entry.ImportKey,
		ExternalID: externalID,
		Payee:      entry.Payee,
		TotalMinor: entry.TotalMinor,
		KeyVersion: keyVersion,
	}
	for _, line := range entry.Lines {
		snapshot.Lines = append(snapshot.Lines, model.SyncedLine{
			CategoryID:  line.CategoryID,
			AmountMinor: line.AmountMinor,
			ItemKeys:    lineKeys[line.CategoryID],
		})
	}
	if err := e.storage.SaveSyncedEntry(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to record sync snapshot for %s: %w", entry.ImportKey, err)
	}
	return nil
}

// recreateEntry deletes the stale ledger entry, drops its snapshot, and
// creates the replacement under the bumped key.
func (e *Engine) recreateEntry(ctx context.Context, rec syncplan.Recreate, lineKeys map[string][]string) error {
	if rec.DeleteExternalID != "" {
		err := common.WithRetry(ctx, func() error {
			if err := e.sink.Delete(ctx, rec.DeleteExternalID); err != nil {
				return &common.RetryableError{Err: err, Retryable: common.IsRetryable(err)}
			}
			return nil
		}, e.cfg.RetryOpts)
		if err != nil {
			return err
		}
	}
	if err := e.storage.DeleteSyncedEntry(ctx, rec.OldImportKey); err != nil {
		return err
	}
	return e.createEntry(ctx, rec.Entry, rec.KeyVersion, lineKeys)
}
