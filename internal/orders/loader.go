// Package orders loads merchant order-history exports and indexes them for
// charge matching.
package orders

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fernwick/ledgerloom/internal/ingest"
	"github.com/fernwick/ledgerloom/internal/model"
)

// Loader parses order-history CSV exports. Each row is one item of one
// shipment; rows are grouped into shipments by order id and ship date.
type Loader struct{}

// NewLoader creates a new order-history loader.
func NewLoader() *Loader {
	return &Loader{}
}

var (
	orderIDHeaders   = []string{"order id", "order number"}
	orderDateHeaders = []string{"order date"}
	shipDateHeaders  = []string{"ship date", "shipment date"}
	productHeaders   = []string{"product name", "title", "item name"}
	unitPriceHeaders = []string{"unit price", "purchase price per unit"}
	quantityHeaders  = []string{"quantity"}
	totalHeaders     = []string{"total owed", "item total", "total"}
	shippingHeaders  = []string{"shipping option", "shipment option"}
)

var orderDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
}

func parseOrderDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

type shipmentKey struct {
	orderID  string
	shipDate string
}

// ParseFile reads an order-history export and returns complete orders with
// their shipments assembled and sorted by ship date.
func (l *Loader) ParseFile(ctx context.Context, reader io.Reader) ([]model.Order, error) {
	cr := csv.NewReader(reader)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read order history header: %w", err)
	}

	orderIDCol := findColumn(header, orderIDHeaders)
	orderDateCol := findColumn(header, orderDateHeaders)
	shipDateCol := findColumn(header, shipDateHeaders)
	productCol := findColumn(header, productHeaders)
	unitPriceCol := findColumn(header, unitPriceHeaders)
	quantityCol := findColumn(header, quantityHeaders)
	totalCol := findColumn(header, totalHeaders)
	shippingCol := findColumn(header, shippingHeaders)
	if orderIDCol < 0 || orderDateCol < 0 || productCol < 0 || totalCol < 0 {
		return nil, fmt.Errorf("order history header missing required columns (have %v)", header)
	}

	orderByID := make(map[string]*model.Order)
	shipmentIdx := make(map[shipmentKey]int)
	var orderIDs []string
	var skipped int

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read order history row: %w", err)
		}

		field := func(col int) string {
			if col < 0 || col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		orderID := field(orderIDCol)
		if orderID == "" {
			skipped++
			continue
		}
		orderDate, ok := parseOrderDate(field(orderDateCol))
		if !ok {
			slog.Warn("Skipping order row with unparseable order date",
				"order_id", orderID,
				"date", field(orderDateCol))
			skipped++
			continue
		}
		totalMinor, err := ingest.ParseAmountMinor(field(totalCol))
		if err != nil {
			slog.Warn("Skipping order row with unparseable total",
				"order_id", orderID,
				"total", field(totalCol))
			skipped++
			continue
		}

		order, exists := orderByID[orderID]
		if !exists {
			order = &model.Order{
				OrderID:        orderID,
				OrderDate:      orderDate,
				ShippingOption: field(shippingCol),
			}
			orderByID[orderID] = order
			orderIDs = append(orderIDs, orderID)
		}

		shipDateRaw := field(shipDateCol)
		shipDate, _ := parseOrderDate(shipDateRaw)
		key := shipmentKey{orderID: orderID, shipDate: shipDateRaw}
		idx, exists := shipmentIdx[key]
		if !exists {
			idx = len(order.Shipments)
			shipmentIdx[key] = idx
			order.Shipments = append(order.Shipments, model.Shipment{ShipDate: shipDate})
		}

		quantity := 1
		if q := field(quantityCol); q != "" {
			if n, err := strconv.Atoi(q); err == nil && n > 0 {
				quantity = n
			}
		}
		unitPrice := int64(0)
		if u := field(unitPriceCol); u != "" {
			if p, err := ingest.ParseAmountMinor(u); err == nil {
				unitPrice = p
			}
		}

		shipment := &order.Shipments[idx]
		shipment.Items = append(shipment.Items, model.Item{
			Name:           field(productCol),
			UnitPriceMinor: unitPrice,
			TotalMinor:     totalMinor,
			Quantity:       quantity,
		})
		shipment.TotalMinor += totalMinor
	}

	orders := make([]model.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		order := orderByID[id]
		sort.Slice(order.Shipments, func(i, j int) bool {
			return order.Shipments[i].ShipDate.Before(order.Shipments[j].ShipDate)
		})
		orders = append(orders, *order)
	}

	slog.Info("Parsed order history",
		"orders", len(orders),
		"skipped_rows", skipped)
	return orders, nil
}
