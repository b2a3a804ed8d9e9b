// Package match pairs bank charges with order shipments.
package match

import (
	"log/slog"
	"regexp"
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/orders"
)

// orderIDPattern recognizes merchant order ids embedded in charge memos.
var orderIDPattern = regexp.MustCompile(`(11[1-4]-\d{7}-\d{7}|D01-\d{7}-\d{7})`)

// Config tunes the matcher windows.
type Config struct {
	// ShipWindowDays is how many days before the charge date a shipment may
	// have shipped.
	ShipWindowDays int
	// ShipLagDays is how many days after the charge date a shipment may be
	// recorded; charges can post before the carrier scan.
	ShipLagDays int
	// RefundWindowDays is the wider lookback used for refund charges, which
	// can post long after the original shipment.
	RefundWindowDays int
	// ToleranceMinor is the grocery substitution allowance. Grocery orders
	// charge the delivered total, which drifts from the ordered total when
	// items are substituted or out of stock.
	ToleranceMinor int64
}

// Matcher finds the order shipment behind each charge.
type Matcher struct {
	store *orders.Store
	cfg   Config
}

// New creates a matcher over the given order store.
func New(store *orders.Store, cfg Config) *Matcher {
	if cfg.ShipWindowDays <= 0 {
		cfg.ShipWindowDays = 7
	}
	if cfg.ShipLagDays <= 0 {
		cfg.ShipLagDays = 3
	}
	if cfg.RefundWindowDays <= 0 {
		cfg.RefundWindowDays = 60
	}
	if cfg.ToleranceMinor <= 0 {
		cfg.ToleranceMinor = 100
	}
	return &Matcher{store: store, cfg: cfg}
}

// Match resolves one charge. Results with confidence none carry no order
// reference; ambiguous results carry every candidate order id and are never
// auto-applied.
func (m *Matcher) Match(charge model.ChargeRecord) model.MatchResult {
	result := model.MatchResult{
		Charge:        charge,
		Confidence:    model.ConfidenceNone,
		Method:        model.MethodNone,
		ShipmentIndex: -1,
	}

	if charge.Direction == model.DirectionPayment {
		return result
	}

	amount := charge.AbsAmountMinor()

	// Priority 1: an order id in the memo is authoritative when a shipment
	// total confirms it.
	if orderID := orderIDPattern.FindString(charge.Memo + " " + charge.Merchant); orderID != "" {
		if order := m.store.Get(orderID); order != nil {
			if res, ok := m.matchWithinOrder(result, order, amount); ok {
				return res
			}
			slog.Debug("Memo order id found but no shipment total confirms it",
				"order_id", orderID,
				"amount", amount)
		}
	}

	window := m.cfg.ShipWindowDays
	if charge.Direction == model.DirectionRefund {
		window = m.cfg.RefundWindowDays
	}
	refs := m.store.ShipmentsInWindow(charge.Date, window, m.cfg.ShipLagDays)

	// Priority 2: exact amount inside the ship-date window.
	var exact []orders.ShipmentRef
	for _, ref := range refs {
		if ref.Shipment().TotalMinor == amount {
			exact = append(exact, ref)
		}
	}
	switch len(exact) {
	case 1:
		result.OrderID = exact[0].Order.OrderID
		result.ShipmentIndex = exact[0].ShipmentIndex
		result.Confidence = model.ConfidenceHigh
		result.Method = model.MethodExactAmount
		return result
	case 0:
	default:
		return m.resolveTie(result, exact, charge.Date, model.MethodExactAmount)
	}

	// Priority 3: grocery orders charge the delivered total, so allow a
	// bounded discrepancy for them.
	var close []orders.ShipmentRef
	for _, ref := range refs {
		if !ref.Order.IsGrocery() {
			continue
		}
		diff := ref.Shipment().TotalMinor - amount
		if diff < 0 {
			diff = -diff
		}
		if diff <= m.cfg.ToleranceMinor {
			close = append(close, ref)
		}
	}
	switch len(close) {
	case 1:
		result.OrderID = close[0].Order.OrderID
		result.ShipmentIndex = close[0].ShipmentIndex
		result.Confidence = model.ConfidenceHigh
		result.Method = model.MethodCloseAmount
		result.AmountDiffMinor = close[0].Shipment().TotalMinor - amount
		return result
	case 0:
		return result
	default:
		return m.resolveTie(result, close, charge.Date, model.MethodCloseAmount)
	}
}

// matchWithinOrder confirms a memo-referenced order against its shipment
// totals.
func (m *Matcher) matchWithinOrder(result model.MatchResult, order *model.Order, amount int64) (model.MatchResult, bool) {
	tolerance := int64(0)
	if order.IsGrocery() {
		tolerance = m.cfg.ToleranceMinor
	}
	for i := range order.Shipments {
		diff := order.Shipments[i].TotalMinor - amount
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolerance {
			result.OrderID = order.OrderID
			result.ShipmentIndex = i
			result.Confidence = model.ConfidenceHigh
			result.Method = model.MethodOrderIDMemo
			result.AmountDiffMinor = order.Shipments[i].TotalMinor - amount
			return result, true
		}
	}
	return result, false
}

// resolveTie breaks an amount collision by ship-date proximity. A unique
// closest shipment is accepted at medium confidence; a residual tie is
// returned at low confidence with every candidate attached so it lands in
// review instead of being guessed.
func (m *Matcher) resolveTie(result model.MatchResult, refs []orders.ShipmentRef, chargeDate time.Time, method model.MatchMethod) model.MatchResult {
	best := 0
	bestDist := shipDistance(refs[0], chargeDate)
	unique := true
	for i := 1; i < len(refs); i++ {
		dist := shipDistance(refs[i], chargeDate)
		switch {
		case dist < bestDist:
			best, bestDist, unique = i, dist, true
		case dist == bestDist:
			unique = false
		}
	}

	result.OrderID = refs[best].Order.OrderID
	result.ShipmentIndex = refs[best].ShipmentIndex
	result.Method = method
	result.AmountDiffMinor = refs[best].Shipment().TotalMinor - result.Charge.AbsAmountMinor()
	if unique {
		result.Confidence = model.ConfidenceMedium
		return result
	}

	result.Confidence = model.ConfidenceLow
	for _, ref := range refs {
		result.Candidates = append(result.Candidates, ref.Order.OrderID)
	}
	return result
}

func shipDistance(ref orders.ShipmentRef, chargeDate time.Time) time.Duration {
	shipDate := ref.Shipment().ShipDate
	if shipDate.IsZero() {
		shipDate = ref.Order.OrderDate
	}
	d := chargeDate.Sub(shipDate)
	if d < 0 {
		d = -d
	}
	return d
}
