package orders

import (
	"time"

	"github.com/fernwick/ledgerloom/internal/model"
)

// ShipmentRef points at one shipment of one order.
type ShipmentRef struct {
	Order         *model.Order
	ShipmentIndex int
}

// Shipment returns the referenced shipment.
func (r ShipmentRef) Shipment() *model.Shipment {
	return &r.Order.Shipments[r.ShipmentIndex]
}

// Store is an immutable in-memory index over loaded orders. Lookups are by
// order id or by ship-date window, the two access patterns matching needs.
type Store struct {
	byID   map[string]*model.Order
	orders []model.Order
}

// NewStore indexes the given orders.
func NewStore(orders []model.Order) *Store {
	s := &Store{
		byID:   make(map[string]*model.Order, len(orders)),
		orders: orders,
	}
	for i := range s.orders {
		s.byID[s.orders[i].OrderID] = &s.orders[i]
	}
	return s
}

// Get returns the order with the given id, or nil.
func (s *Store) Get(orderID string) *model.Order {
	return s.byID[orderID]
}

// All returns every loaded order.
func (s *Store) All() []model.Order {
	return s.orders
}

// Len returns the number of loaded orders.
func (s *Store) Len() int {
	return len(s.orders)
}

// dayOf truncates a timestamp to its calendar day. Exports mix date-only
// and full timestamp formats, so window comparisons work on days.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ShipmentsInWindow returns refs to every shipment whose ship date falls in
// [chargeDate-windowDays, chargeDate+lagDays]. The lag side covers shipments
// recorded after the charge posted. Shipments with no ship date fall back to
// their order date.
func (s *Store) ShipmentsInWindow(chargeDate time.Time, windowDays, lagDays int) []ShipmentRef {
	chargeDay := dayOf(chargeDate)
	earliest := chargeDay.AddDate(0, 0, -windowDays)
	latest := chargeDay.AddDate(0, 0, lagDays)
	var refs []ShipmentRef
	for i := range s.orders {
		order := &s.orders[i]
		for j := range order.Shipments {
			shipDate := order.Shipments[j].ShipDate
			if shipDate.IsZero() {
				shipDate = order.OrderDate
			}
			shipDay := dayOf(shipDate)
			if !shipDay.Before(earliest) && !shipDay.After(latest) {
				refs = append(refs, ShipmentRef{Order: order, ShipmentIndex: j})
			}
		}
	}
	return refs
}
