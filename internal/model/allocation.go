package model

// AllocatedItem is an order item with its share of the actual charge. The
// allocator guarantees that per shipment the AllocatedMinor values sum to the
// charge amount exactly.
type AllocatedItem struct {
	Item           Item
	AllocatedMinor int64
}

// ClassifiedItem is an allocated item with its category assignment.
type ClassifiedItem struct {
	Item           Item
	CategoryID     string
	CategoryName   string
	Reasoning      string
	AllocatedMinor int64
	Confidence     float64
	FromCache      bool
	NeedsReview    bool
}
