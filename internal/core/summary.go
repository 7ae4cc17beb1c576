package core

import "time"

// BatchRecord is the journal entry kept for one save.
type BatchRecord struct {
	ID         string     `json:"id"`
	ProductID  int64      `json:"productId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
	EditCount  int        `json:"editCount"`
	Result     SaveResult `json:"result"`
}

// Outcome returns a one-word status for reports.
func (b BatchRecord) Outcome() string {
	switch {
	case b.Result.Success:
		return "saved"
	case b.Result.PartialFailure:
		return "partial"
	default:
		return "failed"
	}
}

// Duration returns how long the save took.
func (b BatchRecord) Duration() time.Duration {
	if b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}
