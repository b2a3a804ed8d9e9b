// Package engine orchestrates a reconciliation run: match, allocate,
// classify, synthesize, plan, execute.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fernwick/ledgerloom/internal/allocate"
	"github.com/fernwick/ledgerloom/internal/classify"
	"github.com/fernwick/ledgerloom/internal/common"
	"github.com/fernwick/ledgerloom/internal/match"
	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/orders"
	"github.com/fernwick/ledgerloom/internal/service"
	"github.com/fernwick/ledgerloom/internal/split"
)

// Fixed category names with special handling.
const (
	groceriesCategoryName   = "Groceries"
	deliveryFeeCategoryName = "Delivery Fee"
)

// tipMerchantMarker identifies delivery gratuity charges, which are never
// itemized.
const tipMerchantMarker = "amazon tips"

// Config holds configuration options for the reconciliation engine.
type Config struct {
	Payee        string
	Match        match.Config
	Classify     classify.Config
	RetryOpts    service.RetryOptions
	AsyncBatches bool
}

// Engine wires the pipeline stages together over the service contracts.
type Engine struct {
	storage service.Storage
	svc     service.ClassificationService
	sink    service.LedgerSink
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a reconciliation engine.
func New(storage service.Storage, svc service.ClassificationService, sink service.LedgerSink, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		storage: storage,
		svc:     svc,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// PreparedEntry is a synthesized entry plus the cache keys behind each
// category line, kept so the sync snapshot can feed the correction learner.
type PreparedEntry struct {
	Entry        *model.SplitEntry
	LineItemKeys map[string][]string
}

// RunResult summarizes a processing run.
type RunResult struct {
	Entries     []PreparedEntry
	ReviewItems []model.ReviewItem
	Deferred    int
	Flagged     int
	Payments    int
}

// Process runs matching, allocation, and classification over the given
// charges and returns the entries ready for sync planning. The category
// cache is loaded wholesale up front and written back in one transaction at
// the end; a cache write failure is fatal.
func (e *Engine) Process(ctx context.Context, charges []model.ChargeRecord, store *orders.Store) (*RunResult, error) {
	categories, err := e.storage.GetCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("no categories configured: %w", common.ErrMissingConfig)
	}

	cache, err := e.storage.LoadCache(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load category cache: %w", err)
	}

	classifier := classify.New(e.svc, cache, categories, e.cfg.Classify, e.logger)
	if err := e.harvestPendingBatches(ctx, classifier); err != nil {
		return nil, err
	}

	matcher := match.New(store, e.cfg.Match)
	result := &RunResult{}

	// First pass: match and allocate, collecting every description that
	// needs a category so the classifier can batch them.
	type pendingCharge struct {
		charge    model.ChargeRecord
		match     model.MatchResult
		allocated []model.AllocatedItem
		grocery   bool
		tip       bool
	}
	var pending []pendingCharge
	var descriptions []string

	for _, charge := range charges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if charge.Direction == model.DirectionPayment {
			result.Payments++
			continue
		}

		if strings.Contains(strings.ToLower(charge.Merchant), tipMerchantMarker) {
			pending = append(pending, pendingCharge{charge: charge, tip: true})
			continue
		}

		m := matcher.Match(charge)
		switch m.Confidence {
		case model.ConfidenceNone:
			result.ReviewItems = append(result.ReviewItems, e.reviewItem(charge,
				model.ReviewUnmatchedCharge, "no order matched this charge", nil))
			continue
		case model.ConfidenceLow:
			result.ReviewItems = append(result.ReviewItems, e.reviewItem(charge,
				model.ReviewAmbiguousMatch,
				fmt.Sprintf("%d orders match this amount", len(m.Candidates)), m.Candidates))
			continue
		}

		order := store.Get(m.OrderID)
		if order.IsGrocery() || model.IsGroceryMerchant(charge.Merchant) {
			pending = append(pending, pendingCharge{charge: charge, match: m, grocery: true})
			continue
		}

		shipment := &order.Shipments[m.ShipmentIndex]
		allocated, err := allocate.Allocate(shipment, charge.AbsAmountMinor())
		if err != nil {
			if errors.Is(err, common.ErrMatchAmbiguous) {
				result.ReviewItems = append(result.ReviewItems, e.reviewItem(charge,
					model.ReviewZeroTotalShipment, err.Error(), []string{m.OrderID}))
				continue
			}
			return nil, err
		}
		for _, item := range allocated {
			descriptions = append(descriptions, item.Item.Name)
		}
		pending = append(pending, pendingCharge{charge: charge, match: m, allocated: allocated})
	}

	decisions, deferred, err := e.classifyAll(ctx, classifier, descriptions)
	if err != nil {
		return nil, err
	}
	result.Deferred = deferred

	synthesizer := split.New(e.cfg.Payee)
	for _, p := range pending {
		entry, reviews, skip, err := e.buildEntry(synthesizer, p.charge, p.match, p.allocated,
			p.grocery, p.tip, decisions, categories, deferred > 0)
		if err != nil {
			return nil, err
		}
		result.ReviewItems = append(result.ReviewItems, reviews...)
		for _, r := range reviews {
			if r.Reason == model.ReviewFlaggedConfidence {
				result.Flagged++
			}
		}
		if skip {
			continue
		}
		result.Entries = append(result.Entries, *entry)
	}

	for i := range result.ReviewItems {
		if err := e.storage.SaveReviewItem(ctx, &result.ReviewItems[i]); err != nil {
			return nil, fmt.Errorf("failed to persist review item: %w", err)
		}
	}

	// Cache persistence is the one fatal failure of a run.
	if err := e.storage.SaveCache(ctx, cache); err != nil {
		return nil, fmt.Errorf("failed to persist category cache: %w", err)
	}

	e.logger.Info("Processing run complete",
		"charges", len(charges),
		"entries", len(result.Entries),
		"review_items", len(result.ReviewItems),
		"deferred", result.Deferred,
		"payments_skipped", result.Payments)
	return result, nil
}

// classifyAll runs the synchronous path, or in async mode submits cache
// misses as a provider batch and reports how many items were deferred.
func (e *Engine) classifyAll(ctx context.Context, classifier *classify.Classifier, descriptions []string) (map[string]classify.Decision, int, error) {
	if !e.cfg.AsyncBatches {
		decisions, err := classifier.ClassifyItems(ctx, descriptions)
		if err != nil {
			return nil, 0, err
		}
		return decisions, 0, nil
	}

	batch, err := classifier.SubmitMisses(ctx, descriptions)
	if err != nil {
		return nil, 0, err
	}
	deferred := 0
	if batch != nil {
		if err := e.storage.SavePendingBatch(ctx, batch); err != nil {
			return nil, 0, fmt.Errorf("failed to persist pending batch: %w", err)
		}
		deferred = len(batch.ItemKeys)
		e.logger.Info("Deferred cache misses to classification batch",
			"batch_id", batch.ID,
			"items", deferred)
	}

	// Cached items still classify immediately; the service sees nothing.
	decisions := classifier.ClassifyCached(descriptions)
	return decisions, deferred, nil
}

// harvestPendingBatches polls earlier async submissions and folds finished
// results into the cache. Not-ready batches stay pending.
func (e *Engine) harvestPendingBatches(ctx context.Context, classifier *classify.Classifier) error {
	batches, err := e.storage.GetPendingBatches(ctx)
	if err != nil {
		return fmt.Errorf("failed to load pending batches: %w", err)
	}
	for i := range batches {
		batch := &batches[i]
		_, err := classifier.Harvest(ctx, batch)
		if err != nil {
			if errors.Is(err, common.ErrBatchNotReady) {
				e.logger.Info("Classification batch still pending",
					"batch_id", batch.ID)
				continue
			}
			if updateErr := e.storage.UpdateBatchStatus(ctx, batch.ID, model.BatchFailed); updateErr != nil {
				return updateErr
			}
			e.logger.Warn("Classification batch failed",
				"batch_id", batch.ID,
				"error", err)
			continue
		}
		if err := e.storage.UpdateBatchStatus(ctx, batch.ID, model.BatchCompleted); err != nil {
			return err
		}
	}
	return nil
}

func newReviewID() string {
	return uuid.New().String()
}

func (e *Engine) reviewItem(charge model.ChargeRecord, reason model.ReviewReason, detail string, orderIDs []string) model.ReviewItem {
	return model.ReviewItem{
		ID:          newReviewID(),
		ChargeHash:  charge.Hash,
		Reason:      reason,
		Detail:      detail,
		OrderIDs:    orderIDs,
		AmountMinor: charge.AmountMinor,
		CreatedAt:   e.now(),
	}
}

func categoryIDByName(categories []model.Category, name string) string {
	for _, cat := range categories {
		if cat.Name == name {
			return cat.ID
		}
	}
	return ""
}
