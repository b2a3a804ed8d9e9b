package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
)

// SavePendingBatch records a submitted classification batch.
func (s *SQLiteStorage) SavePendingBatch(ctx context.Context, batch *model.PendingBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePendingBatch(batch); err != nil {
		return err
	}
	return savePendingBatch(ctx, s.db, batch)
}

// GetPendingBatches returns batches still awaiting harvest, oldest first.
func (s *SQLiteStorage) GetPendingBatches(ctx context.Context) ([]model.PendingBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getPendingBatches(ctx, s.db)
}

// UpdateBatchStatus marks a batch completed or failed.
func (s *SQLiteStorage) UpdateBatchStatus(ctx context.Context, id string, status model.BatchStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return updateBatchStatus(ctx, s.db, id, status)
}

func savePendingBatch(ctx context.Context, q queryable, batch *model.PendingBatch) error {
	keys, err := json.Marshal(batch.ItemKeys)
	if err != nil {
		return fmt.Errorf("failed to marshal batch item keys: %w", err)
	}
	submittedAt := batch.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO pending_batches (id, provider_id, item_keys, status, submitted_at)
		VALUES (?, ?, ?, ?, ?)`,
		batch.ID, batch.ProviderID, string(keys), string(batch.Status),
		submittedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save pending batch %q: %w", batch.ID, err)
	}
	return nil
}

func getPendingBatches(ctx context.Context, q queryable) ([]model.PendingBatch, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, provider_id, item_keys, status, submitted_at
		FROM pending_batches
		WHERE status = 'pending'
		ORDER BY submitted_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var batches []model.PendingBatch
	for rows.Next() {
		var batch model.PendingBatch
		var keys string
		var status string
		var submittedAt sql.NullTime
		if err := rows.Scan(&batch.ID, &batch.ProviderID, &keys, &status, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending batch: %w", err)
		}
		if err := json.Unmarshal([]byte(keys), &batch.ItemKeys); err != nil {
			return nil, fmt.Errorf("failed to unmarshal batch item keys: %w", err)
		}
		batch.Status = model.BatchStatus(status)
		if submittedAt.Valid {
			batch.SubmittedAt = submittedAt.Time
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending batches: %w", err)
	}
	return batches, nil
}

func updateBatchStatus(ctx context.Context, q queryable, id string, status model.BatchStatus) error {
	res, err := q.ExecContext(ctx, `UPDATE pending_batches SET status = ? WHERE id = ?`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update batch %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("batch %q not found", id)
	}
	return nil
}
