package model

import (
	"strings"
	"time"
)

// groceryShippingOptions are the delivery options that mark an order as a
// scheduled grocery delivery. Grocery orders are never itemized; they get a
// single category line instead.
var groceryShippingOptions = map[string]bool{
	"scheduled-houdini":     true,
	"scheduled-one-houdini": true,
}

// Item is a single line from a merchant order.
type Item struct {
	Name           string
	UnitPriceMinor int64
	TotalMinor     int64
	Quantity       int
}

// Shipment groups the items of an order that shipped together. One order may
// produce multiple shipments, each charged separately.
type Shipment struct {
	ShipDate   time.Time
	Items      []Item
	TotalMinor int64
}

// Order is a merchant purchase with its shipments. Orders are sourced from
// the order-history export and never mutated.
type Order struct {
	OrderDate      time.Time
	OrderID        string
	ShippingOption string
	Shipments      []Shipment
}

// IsGrocery reports whether the order used a scheduled grocery delivery
// option (Whole Foods / Fresh style orders).
func (o *Order) IsGrocery() bool {
	return groceryShippingOptions[strings.ToLower(strings.TrimSpace(o.ShippingOption))]
}

// groceryMerchantMarkers identify grocery charges by payee, the fallback
// for order exports that omit the shipping option.
var groceryMerchantMarkers = []string{
	"amazon fresh",
	"whole foods",
	"amazon groce",
}

// IsGroceryMerchant reports whether a charge payee looks like a grocery
// delivery.
func IsGroceryMerchant(merchant string) bool {
	m := strings.ToLower(merchant)
	for _, marker := range groceryMerchantMarkers {
		if strings.Contains(m, marker) {
			return true
		}
	}
	return false
}

// TotalMinor sums the shipment totals for the whole order.
func (o *Order) TotalMinor() int64 {
	var total int64
	for i := range o.Shipments {
		total += o.Shipments[i].TotalMinor
	}
	return total
}
