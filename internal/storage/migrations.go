package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS category_cache (
					key TEXT PRIMARY KEY,
					category_id TEXT NOT NULL,
					category_name TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					times_used INTEGER NOT NULL DEFAULT 0,
					times_corrected INTEGER NOT NULL DEFAULT 0,
					last_used_at DATETIME
				)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					name TEXT UNIQUE NOT NULL,
					description TEXT,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				// The catch-all category always exists.
				`INSERT OR IGNORE INTO categories (id, name, description)
					VALUES ('uncategorized', 'Uncategorized',
						'Catch-all for items the classifier could not place with enough confidence')`,

				`CREATE TABLE IF NOT EXISTS synced_entries (
					import_key TEXT PRIMARY KEY,
					external_id TEXT NOT NULL,
					payee TEXT,
					total_minor INTEGER NOT NULL,
					key_version INTEGER NOT NULL DEFAULT 1,
					lines TEXT NOT NULL,
					synced_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_synced_entries_external ON synced_entries(external_id)`,

				`CREATE TABLE IF NOT EXISTS corrections (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					item_key TEXT NOT NULL,
					item_name TEXT,
					original_category_id TEXT,
					corrected_category_id TEXT NOT NULL,
					import_key TEXT,
					detected_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add pending batches and review queue",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS pending_batches (
					id TEXT PRIMARY KEY,
					provider_id TEXT NOT NULL,
					item_keys TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					submitted_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS review_items (
					id TEXT PRIMARY KEY,
					charge_hash TEXT NOT NULL,
					reason TEXT NOT NULL,
					detail TEXT,
					order_ids TEXT,
					amount_minor INTEGER NOT NULL DEFAULT 0,
					resolved INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index lookup paths for corrections and review",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE INDEX IF NOT EXISTS idx_corrections_item_key ON corrections(item_key)`,
				`CREATE INDEX IF NOT EXISTS idx_corrections_detected_at ON corrections(detected_at)`,
				`CREATE INDEX IF NOT EXISTS idx_review_items_resolved ON review_items(resolved)`,
				`CREATE INDEX IF NOT EXISTS idx_pending_batches_status ON pending_batches(status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
