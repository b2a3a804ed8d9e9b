package engine

import (
	"fmt"

	"github.com/fernwick/ledgerloom/internal/classify"
	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/split"
)

// buildEntry turns one matched charge into a prepared split entry. skip is
// true when the charge must wait for a pending classification batch.
func (e *Engine) buildEntry(
	synthesizer *split.Synthesizer,
	charge model.ChargeRecord,
	m model.MatchResult,
	allocated []model.AllocatedItem,
	grocery, tip bool,
	decisions map[string]classify.Decision,
	categories []model.Category,
	asyncMode bool,
) (*PreparedEntry, []model.ReviewItem, bool, error) {
	if tip {
		categoryID := categoryIDByName(categories, deliveryFeeCategoryName)
		if categoryID == "" {
			categoryID = categoryIDByName(categories, model.UncategorizedName)
		}
		entry, err := synthesizer.SynthesizeSingle(charge, nil, categoryID, "Delivery gratuity", 1)
		if err != nil {
			return nil, nil, false, err
		}
		return &PreparedEntry{
			Entry:        entry,
			LineItemKeys: map[string][]string{categoryID: {model.NormalizeItemKey(charge.Merchant)}},
		}, nil, false, nil
	}

	if grocery {
		// Grocery deliveries get one category line; the itemization is
		// analysis data, not ledger lines.
		categoryID := categoryIDByName(categories, groceriesCategoryName)
		if categoryID == "" {
			categoryID = categoryIDByName(categories, model.UncategorizedName)
		}
		entry, err := synthesizer.SynthesizeSingle(charge, &m, categoryID, "Grocery delivery", 1)
		if err != nil {
			return nil, nil, false, err
		}
		return &PreparedEntry{
			Entry:        entry,
			LineItemKeys: map[string][]string{categoryID: {model.NormalizeItemKey(charge.Merchant)}},
		}, nil, false, nil
	}

	var reviews []model.ReviewItem
	classified := make([]model.ClassifiedItem, 0, len(allocated))
	lineItemKeys := make(map[string][]string)
	for _, item := range allocated {
		key := model.NormalizeItemKey(item.Item.Name)
		decision, ok := decisions[key]
		if !ok {
			if asyncMode {
				// Waiting on a submitted batch; pick the charge up next run.
				return nil, nil, true, nil
			}
			return nil, nil, false, fmt.Errorf("no classification decision for item %q", item.Item.Name)
		}

		if decision.NeedsReview {
			reviews = append(reviews, e.reviewItem(charge, model.ReviewLowConfidence,
				fmt.Sprintf("item %q classified below threshold (%.2f)", item.Item.Name, decision.Confidence),
				[]string{m.OrderID}))
		} else if decision.Flagged {
			reviews = append(reviews, e.reviewItem(charge, model.ReviewFlaggedConfidence,
				fmt.Sprintf("item %q accepted at %.2f confidence as %q", item.Item.Name, decision.Confidence, decision.CategoryName),
				[]string{m.OrderID}))
		}

		classified = append(classified, model.ClassifiedItem{
			Item:           item.Item,
			CategoryID:     decision.CategoryID,
			CategoryName:   decision.CategoryName,
			Reasoning:      decision.Reasoning,
			AllocatedMinor: item.AllocatedMinor,
			Confidence:     decision.Confidence,
			FromCache:      decision.FromCache,
			NeedsReview:    decision.NeedsReview,
		})
		lineItemKeys[decision.CategoryID] = append(lineItemKeys[decision.CategoryID], key)
	}

	entry, err := synthesizer.Synthesize(&m, classified, 1)
	if err != nil {
		return nil, nil, false, err
	}
	return &PreparedEntry{Entry: entry, LineItemKeys: lineItemKeys}, reviews, false, nil
}
