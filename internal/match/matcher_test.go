package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwick/ledgerloom/internal/model"
	"github.com/fernwick/ledgerloom/internal/orders"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func charge(date time.Time, amountMinor int64, memo string) model.ChargeRecord {
	c := model.ChargeRecord{
		Date:        date,
		Merchant:    "AMZN Mktp US",
		Memo:        memo,
		AmountMinor: amountMinor,
		Direction:   model.DirectionPurchase,
	}
	if amountMinor > 0 {
		c.Direction = model.DirectionRefund
	}
	c.Hash = c.GenerateHash()
	return c
}

func order(id string, orderDate time.Time, shipments ...model.Shipment) model.Order {
	return model.Order{OrderID: id, OrderDate: orderDate, Shipments: shipments}
}

func shipment(shipDate time.Time, totalMinor int64) model.Shipment {
	return model.Shipment{
		ShipDate:   shipDate,
		TotalMinor: totalMinor,
		Items:      []model.Item{{Name: "item", TotalMinor: totalMinor, Quantity: 1}},
	}
}

func newMatcher(t *testing.T, list ...model.Order) *Matcher {
	t.Helper()
	return New(orders.NewStore(list), Config{})
}

func TestMatchByMemoOrderID(t *testing.T) {
	m := newMatcher(t,
		order("111-1234567-7654321", day(10), shipment(day(12), 8730)),
		order("111-9999999-9999999", day(10), shipment(day(12), 8730)),
	)

	// The memo id is authoritative even with an amount collision elsewhere.
	result := m.Match(charge(day(14), -8730, "Order 111-1234567-7654321"))
	require.NoError(t, result.Validate())
	assert.Equal(t, "111-1234567-7654321", result.OrderID)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.MethodOrderIDMemo, result.Method)
	assert.Equal(t, 0, result.ShipmentIndex)
}

func TestMatchMemoOrderIDWrongAmountFallsThrough(t *testing.T) {
	m := newMatcher(t,
		order("111-1234567-7654321", day(10), shipment(day(12), 100)),
		order("111-9999999-9999999", day(10), shipment(day(12), 8730)),
	)

	// The referenced order has no shipment at this amount, so the exact
	// amount scan takes over.
	result := m.Match(charge(day(14), -8730, "Order 111-1234567-7654321"))
	assert.Equal(t, "111-9999999-9999999", result.OrderID)
	assert.Equal(t, model.MethodExactAmount, result.Method)
}

func TestMatchExactAmountInWindow(t *testing.T) {
	m := newMatcher(t,
		order("111-1234567-7654321", day(10), shipment(day(12), 8730)),
	)

	result := m.Match(charge(day(14), -8730, ""))
	require.NoError(t, result.Validate())
	assert.Equal(t, "111-1234567-7654321", result.OrderID)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.MethodExactAmount, result.Method)
}

func TestMatchShipWindowBounds(t *testing.T) {
	tests := []struct {
		name      string
		shipDay   int
		chargeDay int
		matched   bool
	}{
		{name: "same day", shipDay: 14, chargeDay: 14, matched: true},
		{name: "seven days before", shipDay: 7, chargeDay: 14, matched: true},
		{name: "eight days before", shipDay: 6, chargeDay: 14, matched: false},
		{name: "ships one day after charge", shipDay: 15, chargeDay: 14, matched: true},
		{name: "ships two days after charge", shipDay: 16, chargeDay: 14, matched: true},
		{name: "ships three days after charge", shipDay: 17, chargeDay: 14, matched: true},
		{name: "ships four days after charge", shipDay: 18, chargeDay: 14, matched: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMatcher(t,
				order("111-1234567-7654321", day(1), shipment(day(tt.shipDay), 8730)),
			)
			result := m.Match(charge(day(tt.chargeDay), -8730, ""))
			assert.Equal(t, tt.matched, result.Matched())
		})
	}
}

func TestMatchExactAmountWhenShipDateLagsCharge(t *testing.T) {
	m := newMatcher(t,
		order("111-1234567-7654321", day(12), shipment(day(16), 8730)),
	)

	// The charge posted two days before the carrier scan.
	result := m.Match(charge(day(14), -8730, ""))
	require.NoError(t, result.Validate())
	assert.Equal(t, "111-1234567-7654321", result.OrderID)
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.MethodExactAmount, result.Method)
}

func TestMatchRefundUsesWiderWindow(t *testing.T) {
	m := newMatcher(t,
		order("111-1234567-7654321", day(1), shipment(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), 8730)),
	)

	// A month out of the purchase window, but refunds look back 60 days.
	purchase := m.Match(charge(day(14), -8730, ""))
	assert.False(t, purchase.Matched())

	refund := m.Match(charge(day(14), 8730, ""))
	require.True(t, refund.Matched())
	assert.Equal(t, model.ConfidenceHigh, refund.Confidence)
}

func TestMatchPaymentsNeverMatch(t *testing.T) {
	m := newMatcher(t,
		order("111-1234567-7654321", day(10), shipment(day(12), 50000)),
	)

	c := charge(day(14), -50000, "")
	c.Direction = model.DirectionPayment
	result := m.Match(c)
	require.NoError(t, result.Validate())
	assert.Equal(t, model.ConfidenceNone, result.Confidence)
	assert.Equal(t, model.MethodNone, result.Method)
	assert.Empty(t, result.OrderID)
}

func TestMatchTieResolvedByShipDate(t *testing.T) {
	m := newMatcher(t,
		order("111-1111111-1111111", day(1), shipment(day(8), 8730)),
		order("111-2222222-2222222", day(1), shipment(day(13), 8730)),
	)

	// Two exact-amount candidates; the closer ship date wins at medium.
	result := m.Match(charge(day(14), -8730, ""))
	require.NoError(t, result.Validate())
	assert.Equal(t, "111-2222222-2222222", result.OrderID)
	assert.Equal(t, model.ConfidenceMedium, result.Confidence)
	assert.Empty(t, result.Candidates)
}

func TestMatchUnresolvableTieIsLow(t *testing.T) {
	m := newMatcher(t,
		order("111-1111111-1111111", day(1), shipment(day(12), 8730)),
		order("111-2222222-2222222", day(1), shipment(day(12), 8730)),
	)

	result := m.Match(charge(day(14), -8730, ""))
	assert.Equal(t, model.ConfidenceLow, result.Confidence)
	assert.ElementsMatch(t, []string{"111-1111111-1111111", "111-2222222-2222222"}, result.Candidates)
}

func TestMatchGroceryTolerance(t *testing.T) {
	grocery := order("111-1234567-7654321", day(10), shipment(day(13), 9000))
	grocery.ShippingOption = "scheduled-houdini"

	m := newMatcher(t, grocery)

	// Delivered total drifted 87 cents below the ordered total.
	result := m.Match(charge(day(14), -8913, ""))
	require.True(t, result.Matched())
	assert.Equal(t, model.ConfidenceHigh, result.Confidence)
	assert.Equal(t, model.MethodCloseAmount, result.Method)
	assert.Equal(t, int64(87), result.AmountDiffMinor)

	// Past the tolerance the match is refused.
	over := m.Match(charge(day(14), -8899, ""))
	assert.False(t, over.Matched())
}

func TestMatchToleranceNotAppliedToNonGrocery(t *testing.T) {
	m := newMatcher(t,
		order("111-1234567-7654321", day(10), shipment(day(13), 9000)),
	)

	result := m.Match(charge(day(14), -8950, ""))
	assert.False(t, result.Matched())
}

func TestMatchDeterministic(t *testing.T) {
	m := newMatcher(t,
		order("111-1111111-1111111", day(1), shipment(day(12), 8730)),
		order("111-2222222-2222222", day(1), shipment(day(12), 8730)),
	)

	c := charge(day(14), -8730, "")
	first := m.Match(c)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Match(c))
	}
}
