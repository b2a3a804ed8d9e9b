// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Category cache operations. The cache is read wholesale before a run
	// and written back in one transaction at the end.
	LoadCache(ctx context.Context) (map[string]model.CacheEntry, error)
	SaveCache(ctx context.Context, entries map[string]model.CacheEntry) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	SaveCategories(ctx context.Context, categories []model.Category) error

	// Synced entry index
	GetSyncedEntries(ctx context.Context) ([]model.SyncedEntry, error)
	GetSyncedEntry(ctx context.Context, importKey string) (*model.SyncedEntry, error)
	SaveSyncedEntry(ctx context.Context, entry *model.SyncedEntry) error
	DeleteSyncedEntry(ctx context.Context, importKey string) error

	// Correction audit history
	SaveCorrection(ctx context.Context, correction *model.Correction) error
	GetCorrections(ctx context.Context, since time.Time) ([]model.Correction, error)

	// Pending classification batches
	SavePendingBatch(ctx context.Context, batch *model.PendingBatch) error
	GetPendingBatches(ctx context.Context) ([]model.PendingBatch, error)
	UpdateBatchStatus(ctx context.Context, id string, status model.BatchStatus) error

	// Review queue
	SaveReviewItem(ctx context.Context, item *model.ReviewItem) error
	GetUnresolvedReviewItems(ctx context.Context) ([]model.ReviewItem, error)
	ResolveReviewItem(ctx context.Context, id string) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// ClassificationRequest is one item sent to the classification service.
type ClassificationRequest struct {
	Key         string
	Description string
}

// ClassificationResult is the service's answer for one item.
type ClassificationResult struct {
	Key        string
	Category   string
	Reasoning  string
	Confidence float64
}

// ClassificationService assigns categories to item descriptions. Classify is
// the synchronous path; SubmitBatch and PollBatch are the two-phase
// asynchronous path for large runs.
type ClassificationService interface {
	Classify(ctx context.Context, items []ClassificationRequest, categories []model.Category) ([]ClassificationResult, error)
	SubmitBatch(ctx context.Context, items []ClassificationRequest, categories []model.Category) (string, error)
	PollBatch(ctx context.Context, providerID string) ([]ClassificationResult, error)
}

// LedgerLine mirrors one category line of an external ledger entry.
type LedgerLine struct {
	CategoryID  string
	AmountMinor int64
}

// LedgerEntry is the ledger's view of a previously created entry.
type LedgerEntry struct {
	ExternalID string
	ImportKey  string
	Lines      []LedgerLine
}

// LedgerSink is the write side of the external ledger. Create is idempotent
// per import key; the ledger has no partial update, so changing an entry
// means Delete followed by Create under a fresh key.
type LedgerSink interface {
	Create(ctx context.Context, entry *model.SplitEntry) (externalID string, err error)
	Delete(ctx context.Context, externalID string) error
	Get(ctx context.Context, externalID string) (*LedgerEntry, error)
	ExistingImportKeys(ctx context.Context) (map[string]bool, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
