package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/service"
)

// Policy holds the confidence thresholds that decide what happens to a
// classification.
type Policy struct {
	// AutoThreshold and above is applied without flagging.
	AutoThreshold float64
	// FlagThreshold up to AutoThreshold is applied but flagged for review.
	// Below FlagThreshold the item goes to Uncategorized and review.
	FlagThreshold float64
	// FallbackCap bounds the confidence of the keyword fallback so it never
	// auto-applies.
	FallbackCap float64
}

// Decision is the classifier's verdict for one cache key.
type Decision struct {
	Key          string
	CategoryID   string
	CategoryName string
	Reasoning    string
	Confidence   float64
	FromCache    bool
	Flagged      bool
	NeedsReview  bool
}

// Config configures a Classifier.
type Config struct {
	Policy    Policy
	BatchSize int
	RetryOpts service.RetryOptions
}

// Classifier resolves item descriptions to categories using the persistent
// cache first and the classification service for misses.
type Classifier struct {
	svc        service.ClassificationService
	cache      map[string]model.CacheEntry
	categories []model.Category
	policy     Policy
	batchSize  int
	retryOpts  service.RetryOptions
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a classifier over a pre-loaded cache snapshot. The cache map
// is mutated in place as decisions are made; the caller persists it
// wholesale at the end of the run.
func New(svc service.ClassificationService, cache map[string]model.CacheEntry, categories []model.Category, cfg Config, logger *slog.Logger) *Classifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.Policy.AutoThreshold == 0 {
		cfg.Policy.AutoThreshold = 0.85
	}
	if cfg.Policy.FlagThreshold == 0 {
		cfg.Policy.FlagThreshold = 0.65
	}
	if cfg.Policy.FallbackCap == 0 {
		cfg.Policy.FallbackCap = 0.70
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		svc:        svc,
		cache:      cache,
		categories: categories,
		policy:     cfg.Policy,
		batchSize:  cfg.BatchSize,
		retryOpts:  cfg.RetryOpts,
		logger:     logger,
		now:        time.Now,
	}
}

func (c *Classifier) uncategorizedName() string {
	return model.UncategorizedName
}

func (c *Classifier) uncategorizedID() string {
	for _, cat := range c.categories {
		if cat.Name == model.UncategorizedName {
			return cat.ID
		}
	}
	return ""
}

// applyPolicy sets the flag and review bits from the decision's confidence.
// Items below the flag threshold are demoted to Uncategorized.
func (c *Classifier) applyPolicy(d *Decision) {
	switch {
	case d.Confidence >= c.policy.AutoThreshold:
	case d.Confidence >= c.policy.FlagThreshold:
		d.Flagged = true
	default:
		d.CategoryID = c.uncategorizedID()
		d.CategoryName = c.uncategorizedName()
		d.NeedsReview = true
	}
}

// ClassifyItems resolves every description to a Decision keyed by its
// normalized cache key. Cache hits never touch the service; misses go out
// in bounded batches. Service failures degrade to the keyword fallback
// rather than failing the run.
func (c *Classifier) ClassifyItems(ctx context.Context, descriptions []string) (map[string]Decision, error) {
	decisions := make(map[string]Decision)
	missDesc := make(map[string]string)
	var missOrder []string

	for _, desc := range descriptions {
		key := model.NormalizeItemKey(desc)
		if key == "" {
			continue
		}
		if _, done := decisions[key]; done {
			continue
		}
		if _, miss := missDesc[key]; miss {
			continue
		}
		if entry, ok := c.cache[key]; ok {
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
			continue
		}
		missDesc[key] = desc
		missOrder = append(missOrder, key)
	}

	c.logger.Debug("classification pass",
		"total", len(descriptions),
		"cache_hits", len(decisions),
		"misses", len(missOrder))

	for start := 0; start < len(missOrder); start += c.batchSize {
		end := start + c.batchSize
		if end > len(missOrder) {
			end = len(missOrder)
		}
		chunk := missOrder[start:end]
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.classifyChunk(ctx, chunk, missDesc, decisions)
	}

	return decisions, nil
}

// classifyChunk sends one batch to the service and folds the validated
// results into decisions. Any item the service could not answer acceptably
// gets the fallback.
func (c *Classifier) classifyChunk(ctx context.Context, keys []string, missDesc map[string]string, decisions map[string]Decision) {
	requests := make([]service.ClassificationRequest, len(keys))
	for i, key := range keys {
		requests[i] = service.ClassificationRequest{Key: key, Description: missDesc[key]}
	}

	var results []service.ClassificationResult
	err := common.WithRetry(ctx, func() error {
		res, err := c.svc.Classify(ctx, requests, c.activeCategories())
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: common.IsRetryable(err)}
		}
		if err := validateResults(keys, res); err != nil {
			return &common.RetryableError{Err: err, Retryable: true}
		}
		if err := validateCategories(res, c.activeCategories()); err != nil {
			return &common.RetryableError{Err: err, Retryable: true}
		}
		results = res
		return nil
	}, c.retryOpts)

	if err != nil {
		c.logger.Warn("classification batch failed, using keyword fallback",
			"batch_size", len(keys),
			"error", err)
		for _, key := range keys {
			decisions[key] = c.fallbackDecision(key, missDesc[key])
		}
		return
	}

	c.absorbResults(results, decisions)
}

// absorbResults converts validated service results to decisions and feeds
// accepted ones back into the cache.
func (c *Classifier) absorbResults(results []service.ClassificationResult, decisions map[string]Decision) {
	for _, res := range results {
		cat := ResolveCategory(res.Category, c.activeCategories())
		d := Decision{
			Key:          res.Key,
			CategoryID:   cat.ID,
			CategoryName: cat.Name,
			Confidence:   res.Confidence,
			Reasoning:    res.Reasoning,
		}
		c.applyPolicy(&d)
		decisions[res.Key] = d

		if !d.NeedsReview {
			c.cache[res.Key] = model.CacheEntry{
				Key:          res.Key,
				CategoryID:   d.CategoryID,
				CategoryName: d.CategoryName,
				Confidence:   d.Confidence,
				TimesUsed:    1,
				LastUsedAt:   c.now(),
			}
		}
	}
}

func (c *Classifier) activeCategories() []model.Category {
	active := make([]model.Category, 0, len(c.categories))
	for _, cat := range c.categories {
		if cat.IsActive {
			active = append(active, cat)
		}
	}
	return active
}

// validateResults enforces the response contract: every requested key
// answered exactly once, each category resolvable to an enabled one, every
// confidence in [0, 1].
func validateResults(keys []string, results []service.ClassificationResult) error {
	if len(results) != len(keys) {
		return fmt.Errorf("%w: got %d results for %d items",
			common.ErrClassificationIncomplete, len(results), len(keys))
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	seen := make(map[string]bool, len(results))
	for _, res := range results {
		if !want[res.Key] {
			return fmt.Errorf("%w: unrequested key %q", common.ErrClassificationIncomplete, res.Key)
		}
		if seen[res.Key] {
			return fmt.Errorf("%w: duplicate key %q", common.ErrClassificationIncomplete, res.Key)
		}
		seen[res.Key] = true
		if res.Confidence < 0 || res.Confidence > 1 {
			return fmt.Errorf("%w: confidence %v out of range for %q",
				common.ErrClassificationIncomplete, res.Confidence, res.Key)
		}
	}
	return nil
}

// validateCategories rejects results naming categories that cannot be
// reconciled with the enabled set.
func validateCategories(results []service.ClassificationResult, categories []model.Category) error {
	for _, res := range results {
		if ResolveCategory(res.Category, categories) == nil {
			return fmt.Errorf("%w: unknown category %q for %q",
				common.ErrClassificationIncomplete, res.Category, res.Key)
		}
	}
	return nil
}
