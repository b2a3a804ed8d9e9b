package model

import "time"

// ReviewReason explains why an item landed in the manual review queue.
type ReviewReason string

// Review reason constants.
const (
	ReviewUnmatchedCharge    ReviewReason = "unmatched_charge"
	ReviewAmbiguousMatch     ReviewReason = "ambiguous_match"
	ReviewZeroTotalShipment  ReviewReason = "zero_total_shipment"
	ReviewLowConfidence      ReviewReason = "low_confidence"
	ReviewFlaggedConfidence  ReviewReason = "flagged_confidence"
	ReviewClassifierRejected ReviewReason = "classifier_rejected"
	ReviewSyncDeferred       ReviewReason = "sync_deferred"
)

// ReviewItem is a persisted entry in the manual review queue. Nothing that
// fails matching or classification is ever silently dropped; it lands here
// instead.
type ReviewItem struct {
	CreatedAt   time.Time
	ID          string
	ChargeHash  string
	Reason      ReviewReason
	Detail      string
	OrderIDs    []string
	AmountMinor int64
	Resolved    bool
}
