package model

import "fmt"

// MatchConfidence expresses how certain the matcher is about an
// order-to-charge pairing.
type MatchConfidence string

// Match confidence levels.
const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
	ConfidenceNone   MatchConfidence = "none"
)

// MatchMethod records which strategy produced a match.
type MatchMethod string

// Match method constants.
const (
	MethodOrderIDMemo MatchMethod = "order_id_memo"
	MethodExactAmount MatchMethod = "exact_amount"
	MethodCloseAmount MatchMethod = "close_amount"
	MethodNone        MatchMethod = "none"
)

// MatchResult pairs a charge with at most one order shipment. ShipmentIndex
// is -1 when no shipment is matched. Candidates carries all tied order IDs
// when a collision could not be resolved; those results are never
// auto-applied.
type MatchResult struct {
	Charge          ChargeRecord
	OrderID         string
	Confidence      MatchConfidence
	Method          MatchMethod
	Candidates      []string
	ShipmentIndex   int
	AmountDiffMinor int64
}

// Matched reports whether the result references an order.
func (m *MatchResult) Matched() bool {
	return m.OrderID != "" && m.Confidence != ConfidenceNone
}

// Validate enforces the confidence/reference invariant: confidence is "none"
// exactly when no order is referenced.
func (m *MatchResult) Validate() error {
	hasRef := m.OrderID != ""
	if m.Confidence == ConfidenceNone && hasRef {
		return fmt.Errorf("match with confidence none must not reference order %s", m.OrderID)
	}
	if m.Confidence != ConfidenceNone && !hasRef {
		return fmt.Errorf("match with confidence %s requires an order reference", m.Confidence)
	}
	return nil
}
