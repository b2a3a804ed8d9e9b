package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
)

// GetSyncedEntries returns every synced entry snapshot.
func (s *SQLiteStorage) GetSyncedEntries(ctx context.Context) ([]model.SyncedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getSyncedEntries(ctx, s.db)
}

// GetSyncedEntry returns the snapshot for one import key, or
// common.ErrNotFound.
func (s *SQLiteStorage) GetSyncedEntry(ctx context.Context, importKey string) (*model.SyncedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(importKey, "importKey"); err != nil {
		return nil, err
	}
	return getSyncedEntry(ctx, s.db, importKey)
}

// SaveSyncedEntry upserts a snapshot after a successful ledger write.
func (s *SQLiteStorage) SaveSyncedEntry(ctx context.Context, entry *model.SyncedEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSyncedEntry(entry); err != nil {
		return err
	}
	return saveSyncedEntry(ctx, s.db, entry)
}

// DeleteSyncedEntry removes a snapshot whose ledger entry was deleted.
func (s *SQLiteStorage) DeleteSyncedEntry(ctx context.Context, importKey string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(importKey, "importKey"); err != nil {
		return err
	}
	return deleteSyncedEntry(ctx, s.db, importKey)
}

func getSyncedEntries(ctx context.Context, q queryable) ([]model.SyncedEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT import_key, external_id, payee, total_minor, key_version, lines, synced_at
		FROM synced_entries
		ORDER BY synced_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query synced entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.SyncedEntry
	for rows.Next() {
		entry, err := scanSyncedEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate synced entries: %w", err)
	}
	return entries, nil
}

func getSyncedEntry(ctx context.Context, q queryable, importKey string) (*model.SyncedEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT import_key, external_id, payee, total_minor, key_version, lines, synced_at
		FROM synced_entries
		WHERE import_key = ?`, importKey)

	entry, err := scanSyncedEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("synced entry %q: %w", importKey, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func saveSyncedEntry(ctx context.Context, q queryable, entry *model.SyncedEntry) error {
	lines, err := json.Marshal(entry.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal synced lines: %w", err)
	}
	syncedAt := entry.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO synced_entries (import_key, external_id, payee, total_minor, key_version, lines, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(import_key) DO UPDATE SET
			external_id = excluded.external_id,
			payee = excluded.payee,
			total_minor = excluded.total_minor,
			key_version = excluded.key_version,
			lines = excluded.lines,
			synced_at = excluded.synced_at`,
		entry.ImportKey, entry.ExternalID, entry.Payee, entry.TotalMinor,
		entry.KeyVersion, string(lines), syncedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save synced entry %q: %w", entry.ImportKey, err)
	}
	return nil
}

func deleteSyncedEntry(ctx context.Context, q queryable, importKey string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM synced_entries WHERE import_key = ?`, importKey)
	if err != nil {
		return fmt.Errorf("failed to delete synced entry %q: %w", importKey, err)
	}
	return nil
}

func scanSyncedEntry(row rowScanner) (*model.SyncedEntry, error) {
	var entry model.SyncedEntry
	var payee sql.NullString
	var lines string
	var syncedAt sql.NullTime
	if err := row.Scan(&entry.ImportKey, &entry.ExternalID, &payee,
		&entry.TotalMinor, &entry.KeyVersion, &lines, &syncedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan synced entry: %w", err)
	}
	entry.Payee = payee.String
	if syncedAt.Valid {
		entry.SyncedAt = syncedAt.Time
	}
	if err := json.Unmarshal([]byte(lines), &entry.Lines); err != nil {
		return nil, fmt.Errorf("failed to unmarshal synced lines: %w", err)
	}
	return &entry, nil
}
