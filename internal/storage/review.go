package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
)

// SaveReviewItem persists one review queue item.
func (s *SQLiteStorage) SaveReviewItem(ctx context.Context, item *model.ReviewItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReviewItem(item); err != nil {
		return err
	}
	return saveReviewItem(ctx, s.db, item)
}

// GetUnresolvedReviewItems returns the open review queue, oldest first.
func (s *SQLiteStorage) GetUnresolvedReviewItems(ctx context.Context) ([]model.ReviewItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnresolvedReviewItems(ctx, s.db)
}

// ResolveReviewItem marks one review item handled.
func (s *SQLiteStorage) ResolveReviewItem(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return resolveReviewItem(ctx, s.db, id)
}

func saveReviewItem(ctx context.Context, q queryable, item *model.ReviewItem) error {
	orderIDs, err := json.Marshal(item.OrderIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal order ids: %w", err)
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO review_items (id, charge_hash, reason, detail, order_ids, amount_minor, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			reason = excluded.reason,
			detail = excluded.detail,
			order_ids = excluded.order_ids,
			resolved = excluded.resolved`,
		item.ID, item.ChargeHash, string(item.Reason), item.Detail,
		string(orderIDs), item.AmountMinor, item.Resolved,
		createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save review item %q: %w", item.ID, err)
	}
	return nil
}

func getUnresolvedReviewItems(ctx context.Context, q queryable) ([]model.ReviewItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, charge_hash, reason, detail, order_ids, amount_minor, resolved, created_at
		FROM review_items
		WHERE resolved = 0
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query review items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.ReviewItem
	for rows.Next() {
		var item model.ReviewItem
		var reason string
		var detail, orderIDs sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&item.ID, &item.ChargeHash, &reason, &detail,
			&orderIDs, &item.AmountMinor, &item.Resolved, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan review item: %w", err)
		}
		item.Reason = model.ReviewReason(reason)
		item.Detail = detail.String
		if orderIDs.Valid && orderIDs.String != "" {
			if err := json.Unmarshal([]byte(orderIDs.String), &item.OrderIDs); err != nil {
				return nil, fmt.Errorf("failed to unmarshal order ids: %w", err)
			}
		}
		if createdAt.Valid {
			item.CreatedAt = createdAt.Time
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate review items: %w", err)
	}
	return items, nil
}

func resolveReviewItem(ctx context.Context, q queryable, id string) error {
	res, err := q.ExecContext(ctx, `UPDATE review_items SET resolved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to resolve review item %q: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("review item %q not found", id)
	}
	return nil
}
