package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
)

// LoadCache reads the whole category cache. Runs operate on the full map in
// memory and write it back at the end.
func (s *SQLiteStorage) LoadCache(ctx context.Context) (map[string]model.CacheEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return loadCache(ctx, s.db)
}

// SaveCache replaces the persisted cache with the given entries in one
// transaction, so a failed run never leaves a half-written cache behind.
func (s *SQLiteStorage) SaveCache(ctx context.Context, entries map[string]model.CacheEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := saveCache(ctx, tx, entries); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cache: %w", err)
	}
	return nil
}

func loadCache(ctx context.Context, q queryable) (map[string]model.CacheEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT key, category_id, category_name, confidence, times_used, times_corrected, last_used_at
		FROM category_cache`)
	if err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make(map[string]model.CacheEntry)
	for rows.Next() {
		var entry model.CacheEntry
		var categoryName sql.NullString
		var lastUsed sql.NullTime
		if err := rows.Scan(&entry.Key, &entry.CategoryID, &categoryName,
			&entry.Confidence, &entry.TimesUsed, &entry.TimesCorrected, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entry.CategoryName = categoryName.String
		if lastUsed.Valid {
			entry.LastUsedAt = lastUsed.Time
		}
		entries[entry.Key] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache entries: %w", err)
	}
	return entries, nil
}

func saveCache(ctx context.Context, q queryable, entries map[string]model.CacheEntry) error {
	for key, entry := range entries {
		if err := validateCacheEntry(key, &entry); err != nil {
			return err
		}
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM category_cache`); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	for key, entry := range entries {
		var lastUsed any
		if !entry.LastUsedAt.IsZero() {
			lastUsed = entry.LastUsedAt.UTC().Format(time.RFC3339)
		}
		_, err := q.ExecContext(ctx, `
			INSERT INTO category_cache
				(key, category_id, category_name, confidence, times_used, times_corrected, last_used_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			key, entry.CategoryID, entry.CategoryName, entry.Confidence,
			entry.TimesUsed, entry.TimesCorrected, lastUsed)
		if err != nil {
			return fmt.Errorf("failed to save cache entry %q: %w", key, err)
		}
	}
	return nil
}
