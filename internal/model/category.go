package model

import "time"

// Category represents a budget category from the ledger. IDs are the
// ledger's own identifiers, so they are opaque strings. Descriptions are
// user-authored and feed both the classification prompt and the keyword
// fallback scorer.
type Category struct {
	CreatedAt   time.Time
	ID          string
	Name        string
	Description string
	IsActive    bool
}

// UncategorizedName is the catch-all category for items the classifier
// could not place with enough confidence.
const UncategorizedName = "Uncategorized"
