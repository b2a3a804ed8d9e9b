// Package storage provides the data persistence layer for the application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fernwick/ledgerloom/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrInvalidCacheEntry = errors.New("invalid cache entry")
	ErrInvalidEntry      = errors.New("invalid synced entry")
	ErrInvalidCorrection = errors.New("invalid correction")
	ErrInvalidReviewItem = errors.New("invalid review item")
	ErrInvalidBatch      = errors.New("invalid pending batch")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCacheEntry validates a single cache entry.
func validateCacheEntry(key string, entry *model.CacheEntry) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidCacheEntry)
	}
	if strings.TrimSpace(entry.CategoryID) == "" {
		return fmt.Errorf("%w: missing category for %q", ErrInvalidCacheEntry, key)
	}
	if entry.Confidence < 0 || entry.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1 for %q", ErrInvalidCacheEntry, key)
	}
	return nil
}

// validateSyncedEntry validates a synced entry snapshot.
func validateSyncedEntry(entry *model.SyncedEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if strings.TrimSpace(entry.ImportKey) == "" {
		return fmt.Errorf("%w: missing import key", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.ExternalID) == "" {
		return fmt.Errorf("%w: missing external id", ErrInvalidEntry)
	}
	if len(entry.Lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrInvalidEntry)
	}
	if entry.KeyVersion < 1 {
		return fmt.Errorf("%w: key version must be at least 1", ErrInvalidEntry)
	}
	return nil
}

// validateCorrection validates a correction record.
func validateCorrection(correction *model.Correction) error {
	if correction == nil {
		return fmt.Errorf("%w: correction", ErrNilParameter)
	}
	if strings.TrimSpace(correction.ItemKey) == "" {
		return fmt.Errorf("%w: missing item key", ErrInvalidCorrection)
	}
	if strings.TrimSpace(correction.CorrectedCategoryID) == "" {
		return fmt.Errorf("%w: missing corrected category", ErrInvalidCorrection)
	}
	return nil
}

// validateReviewItem validates a review queue item.
func validateReviewItem(item *model.ReviewItem) error {
	if item == nil {
		return fmt.Errorf("%w: item", ErrNilParameter)
	}
	if strings.TrimSpace(item.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidReviewItem)
	}
	if item.Reason == "" {
		return fmt.Errorf("%w: missing reason", ErrInvalidReviewItem)
	}
	return nil
}

// validatePendingBatch validates a pending classification batch.
func validatePendingBatch(batch *model.PendingBatch) error {
	if batch == nil {
		return fmt.Errorf("%w: batch", ErrNilParameter)
	}
	if strings.TrimSpace(batch.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidBatch)
	}
	if strings.TrimSpace(batch.ProviderID) == "" {
		return fmt.Errorf("%w: missing provider id", ErrInvalidBatch)
	}
	if len(batch.ItemKeys) == 0 {
		return fmt.Errorf("%w: no item keys", ErrInvalidBatch)
	}
	return nil
}
