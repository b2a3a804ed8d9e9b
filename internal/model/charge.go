// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Direction indicates which way money moved on a charge record.
type Direction string

// Charge direction constants.
const (
	DirectionPurchase Direction = "purchase"
	DirectionRefund   Direction = "refund"
	DirectionPayment  Direction = "payment"
)

// Letter returns the single-character direction code used in import keys.
func (d Direction) Letter() string {
	if d == DirectionRefund {
		return "R"
	}
	return "P"
}

// ChargeRecord is a single normalized bank-card charge. Amounts are signed
// minor units: negative for purchases, positive for refunds. Records are
// immutable once normalized.
type ChargeRecord struct {
	Date        time.Time
	ID          string
	Merchant    string
	Memo        string
	Hash        string
	Direction   Direction
	AmountMinor int64
}

// AbsAmountMinor returns the unsigned charge amount in minor units.
func (c *ChargeRecord) AbsAmountMinor() int64 {
	if c.AmountMinor < 0 {
		return -c.AmountMinor
	}
	return c.AmountMinor
}

// GenerateHash creates a unique hash for duplicate detection.
func (c *ChargeRecord) GenerateHash() string {
	data := fmt.Sprintf("%s:%d:%s:%s",
		c.Date.Format("2006-01-02"),
		c.AmountMinor,
		c.Merchant,
		c.Memo)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
