package model

import "time"

// BatchStatus tracks a two-phase classification submission.
type BatchStatus string

// Batch status constants.
const (
	BatchPending   BatchStatus = "pending"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// PendingBatch is a classification batch submitted for asynchronous
// processing. The affected charges are deferred until a later run harvests
// the results.
type PendingBatch struct {
	SubmittedAt time.Time
	ID          string
	ProviderID  string
	ItemKeys    []string
	Status      BatchStatus
}
