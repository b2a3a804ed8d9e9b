// Package split builds idempotent ledger entries from classified items.
package split

import (
	"fmt"
	"strings"

	"github.com/fernwick/ledgerloom/internal/ingest"
	"github.com/fernwick/ledgerloom/internal/model"
)

// Synthesizer turns a matched, allocated, classified charge into a split
// ledger entry.
type Synthesizer struct {
	payee string
}

// New creates a synthesizer. payee is the display payee for synthesized
// entries.
func New(payee string) *Synthesizer {
	if payee == "" {
		payee = "Card charge"
	}
	return &Synthesizer{payee: payee}
}

// parentMemo composes the entry-level memo: order reference, match method,
// and the amount discrepancy when one was tolerated.
func parentMemo(match *model.MatchResult) string {
	memo := fmt.Sprintf("Order %s (%s match)", match.OrderID, match.Method)
	if match.AmountDiffMinor != 0 {
		memo += fmt.Sprintf(", order total off by %s", ingest.FormatAmountMinor(match.AmountDiffMinor))
	}
	return memo
}

// itemMemo renders one item for a line memo, with the quantity prefix kept
// separate from the name so "2 x Widget" never multiplies the amount.
func itemMemo(item model.Item) string {
	if item.Quantity > 1 {
		return fmt.Sprintf("%d x %s", item.Quantity, item.Name)
	}
	return item.Name
}

// Synthesize groups classified items by category into one split entry. The
// entry total is the signed charge amount; refund entries carry positive
// lines. The sum invariant is re-verified and violations surface as errors
// instead of being corrected.
func (s *Synthesizer) Synthesize(match *model.MatchResult, items []model.ClassifiedItem, keyVersion int) (*model.SplitEntry, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no classified items for charge %s", match.Charge.Hash)
	}

	sign := int64(-1)
	if match.Charge.Direction == model.DirectionRefund {
		sign = 1
	}

	type group struct {
		categoryID string
		memos      []string
		total      int64
	}
	var groups []*group
	byCategory := make(map[string]*group)
	for _, item := range items {
		g, ok := byCategory[item.CategoryID]
		if !ok {
			g = &group{categoryID: item.CategoryID}
			byCategory[item.CategoryID] = g
			groups = append(groups, g)
		}
		g.total += item.AllocatedMinor
		g.memos = append(g.memos, itemMemo(item.Item))
	}

	entry := &model.SplitEntry{
		Date:       match.Charge.Date,
		ImportKey:  model.ImportKey(keyVersion, match.OrderID, match.Charge.AbsAmountMinor(), match.Charge.Direction),
		Payee:      s.payee,
		Memo:       parentMemo(match),
		OrderID:    match.OrderID,
		TotalMinor: sign * match.Charge.AbsAmountMinor(),
		IsItemized: true,
	}
	for _, g := range groups {
		entry.Lines = append(entry.Lines, model.SplitLine{
			CategoryID:  g.categoryID,
			Memo:        strings.Join(g.memos, "; "),
			AmountMinor: sign * g.total,
		})
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}

// SynthesizeSingle builds a one-line entry for charges that bypass
// itemization: grocery deliveries and delivery gratuities. Gratuities have
// no order, so the import key falls back to the charge hash as its
// reference.
func (s *Synthesizer) SynthesizeSingle(charge model.ChargeRecord, match *model.MatchResult, categoryID, memo string, keyVersion int) (*model.SplitEntry, error) {
	sign := int64(-1)
	if charge.Direction == model.DirectionRefund {
		sign = 1
	}
	total := sign * charge.AbsAmountMinor()

	ref := charge.Hash
	if len(ref) > 16 {
		ref = ref[:16]
	}
	entryMemo := memo
	orderID := ""
	if match != nil && match.Matched() {
		ref = match.OrderID
		orderID = match.OrderID
		entryMemo = parentMemo(match)
	}

	entry := &model.SplitEntry{
		Date:       charge.Date,
		ImportKey:  model.ImportKey(keyVersion, ref, charge.AbsAmountMinor(), charge.Direction),
		Payee:      s.payee,
		Memo:       entryMemo,
		OrderID:    orderID,
		TotalMinor: total,
		Lines: []model.SplitLine{{
			CategoryID:  categoryID,
			Memo:        memo,
			AmountMinor: total,
		}},
	}

	if err := entry.Validate(); err != nil {
		return nil, err
	}
	return entry, nil
}
