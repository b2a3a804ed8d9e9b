package ingest

import (
	"strings"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
)

// dateLayouts are tried in order when parsing charge export dates.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// detectDirection classifies a charge by its sign and description. Card
// payments are carried through so callers can exclude them from matching.
func detectDirection(amountMinor int64, merchant, memo string) model.Direction {
	text := strings.ToLower(merchant + " " + memo)
	if strings.Contains(text, "payment thank you") || strings.Contains(text, "autopay") {
		return model.DirectionPayment
	}
	if amountMinor > 0 {
		return model.DirectionRefund
	}
	return model.DirectionPurchase
}

// Dedupe drops records whose hash has already been seen, preserving order.
// Exports frequently overlap at statement boundaries.
func Dedupe(records []model.ChargeRecord) []model.ChargeRecord {
	seen := make(map[string]bool, len(records))
	out := records[:0]
	for _, r := range records {
		if r.Hash == "" {
			r.Hash = r.GenerateHash()
		}
		if seen[r.Hash] {
			continue
		}
		seen[r.Hash] = true
		out = append(out, r)
	}
	return out
}
