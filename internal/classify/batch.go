package classify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/service"
)

// SubmitMisses starts the asynchronous path: cache misses among the given
// descriptions are submitted as one provider batch and the affected items
// are deferred to a later run. Returns nil when everything hit the cache.
func (c *Classifier) SubmitMisses(ctx context.Context, descriptions []string) (*model.PendingBatch, error) {
	var requests []service.ClassificationRequest
	seen := make(map[string]bool)
	for _, desc := range descriptions {
		key := model.NormalizeItemKey(desc)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := c.cache[key]; ok {
			continue
		}
		requests = append(requests, service.ClassificationRequest{Key: key, Description: desc})
	}
	if len(requests) == 0 {
		return nil, nil
	}

	providerID, err := c.svc.SubmitBatch(ctx, requests, c.activeCategories())
	if err != nil {
		return nil, fmt.Errorf("failed to submit classification batch: %w", err)
	}

	keys := make([]string, len(requests))
	for i, req := range requests {
		keys[i] = req.Key
	}
	batch := &model.PendingBatch{
		ID:          uuid.New().String(),
		ProviderID:  providerID,
		ItemKeys:    keys,
		Status:      model.BatchPending,
		SubmittedAt: c.now(),
	}

	c.logger.Info("Submitted classification batch",
		"batch_id", batch.ID,
		"provider_id", providerID,
		"items", len(keys))
	return batch, nil
}

// ClassifyCached resolves only the descriptions already in the cache. Used
// in async mode after the misses have been submitted as a batch; missing
// keys simply have no decision and their charges are deferred.
func (c *Classifier) ClassifyCached(descriptions []string) map[string]Decision {
	decisions := make(map[string]Decision)
	for _, desc := range descriptions {
		key := model.NormalizeItemKey(desc)
		if key == "" {
			continue
		}
		if _, done := decisions[key]; done {
			continue
		}
		entry, ok := c.cache[key]
		if !ok {
			continue
		}
		entry.TimesUsed++
		entry.LastUsedAt = c.now()
		c.cache[key] = entry
		d := Decision{
			Key:          key,
			CategoryID:   entry.CategoryID,
			CategoryName: entry.CategoryName,
			Confidence:   entry.Confidence,
			FromCache:    true,
		}
		c.applyPolicy(&d)
		decisions[key] = d
	}
	return decisions
}

// Harvest polls a pending batch and, when ready, folds its results into the
// cache and returns the decisions. Callers see common.ErrBatchNotReady
// unwrapped when the provider is still working.
func (c *Classifier) Harvest(ctx context.Context, batch *model.PendingBatch) (map[string]Decision, error) {
	results, err := c.svc.PollBatch(ctx, batch.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("failed to poll batch %s: %w", batch.ID, err)
	}

	if err := validateResults(batch.ItemKeys, results); err != nil {
		return nil, err
	}
	if err := validateCategories(results, c.activeCategories()); err != nil {
		return nil, err
	}

	decisions := make(map[string]Decision, len(results))
	c.absorbResults(results, decisions)

	c.logger.Info("Harvested classification batch",
		"batch_id", batch.ID,
		"items", len(results))
	return decisions, nil
}
