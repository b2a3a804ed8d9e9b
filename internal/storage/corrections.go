package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
)

// SaveCorrection appends one correction to the audit history. Corrections
// are never updated or deleted.
func (s *SQLiteStorage) SaveCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(correction); err != nil {
		return err
	}
	return saveCorrection(ctx, s.db, correction)
}

// GetCorrections returns corrections detected at or after since, oldest
// first. A zero since returns everything.
func (s *SQLiteStorage) GetCorrections(ctx context.Context, since time.Time) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCorrections(ctx, s.db, since)
}

func saveCorrection(ctx context.Context, q queryable, correction *model.Correction) error {
	detectedAt := correction.DetectedAt
	if detectedAt.IsZero() {
		detectedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO corrections
			(item_key, item_name, original_category_id, corrected_category_id, import_key, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		correction.ItemKey, correction.ItemName, correction.OriginalCategoryID,
		correction.CorrectedCategoryID, correction.ImportKey,
		detectedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save correction for %q: %w", correction.ItemKey, err)
	}
	return nil
}

func getCorrections(ctx context.Context, q queryable, since time.Time) ([]model.Correction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT item_key, item_name, original_category_id, corrected_category_id, import_key, detected_at
		FROM corrections
		WHERE detected_at >= ?
		ORDER BY detected_at`,
		since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var corrections []model.Correction
	for rows.Next() {
		var c model.Correction
		var itemName, originalID, importKey sql.NullString
		var detectedAt sql.NullTime
		if err := rows.Scan(&c.ItemKey, &itemName, &originalID,
			&c.CorrectedCategoryID, &importKey, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.ItemName = itemName.String
		c.OriginalCategoryID = originalID.String
		c.ImportKey = importKey.String
		if detectedAt.Valid {
			c.DetectedAt = detectedAt.Time
		}
		corrections = append(corrections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate corrections: %w", err)
	}
	return corrections, nil
}
