package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queryable abstracts *sql.DB and *sql.Tx so query helpers work inside and
// outside transactions.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the shared helpers with the transaction.
func (t *sqliteTransaction) LoadCache(ctx context.Context) (map[string]model.CacheEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return loadCache(ctx, t.tx)
}

func (t *sqliteTransaction) SaveCache(ctx context.Context, entries map[string]model.CacheEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveCache(ctx, t.tx, entries)
}

func (t *sqliteTransaction) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCategories(ctx, t.tx)
}

func (t *sqliteTransaction) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return getCategoryByName(ctx, t.tx, name)
}

func (t *sqliteTransaction) SaveCategories(ctx context.Context, categories []model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return saveCategories(ctx, t.tx, categories)
}

func (t *sqliteTransaction) GetSyncedEntries(ctx context.Context) ([]model.SyncedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getSyncedEntries(ctx, t.tx)
}

func (t *sqliteTransaction) GetSyncedEntry(ctx context.Context, importKey string) (*model.SyncedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(importKey, "importKey"); err != nil {
		return nil, err
	}
	return getSyncedEntry(ctx, t.tx, importKey)
}

func (t *sqliteTransaction) SaveSyncedEntry(ctx context.Context, entry *model.SyncedEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSyncedEntry(entry); err != nil {
		return err
	}
	return saveSyncedEntry(ctx, t.tx, entry)
}

func (t *sqliteTransaction) DeleteSyncedEntry(ctx context.Context, importKey string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(importKey, "importKey"); err != nil {
		return err
	}
	return deleteSyncedEntry(ctx, t.tx, importKey)
}

func (t *sqliteTransaction) SaveCorrection(ctx context.Context, correction *model.Correction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCorrection(correction); err != nil {
		return err
	}
	return saveCorrection(ctx, t.tx, correction)
}

func (t *sqliteTransaction) GetCorrections(ctx context.Context, since time.Time) ([]model.Correction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getCorrections(ctx, t.tx, since)
}

func (t *sqliteTransaction) SavePendingBatch(ctx context.Context, batch *model.PendingBatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePendingBatch(batch); err != nil {
		return err
	}
	return savePendingBatch(ctx, t.tx, batch)
}

func (t *sqliteTransaction) GetPendingBatches(ctx context.Context) ([]model.PendingBatch, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getPendingBatches(ctx, t.tx)
}

func (t *sqliteTransaction) UpdateBatchStatus(ctx context.Context, id string, status model.BatchStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return updateBatchStatus(ctx, t.tx, id, status)
}

func (t *sqliteTransaction) SaveReviewItem(ctx context.Context, item *model.ReviewItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReviewItem(item); err != nil {
		return err
	}
	return saveReviewItem(ctx, t.tx, item)
}

func (t *sqliteTransaction) GetUnresolvedReviewItems(ctx context.Context) ([]model.ReviewItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return getUnresolvedReviewItems(ctx, t.tx)
}

func (t *sqliteTransaction) ResolveReviewItem(ctx context.Context, id string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return resolveReviewItem(ctx, t.tx, id)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
