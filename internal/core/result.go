package core

// SaveResult summarises one coordinated save.
//
// Success is true only when no edit failed and nothing aborted the batch.
// PartialFailure is true when the batch ran to completion but at least one
// edit failed; callers decide what to tell the user from the counts.
type SaveResult struct {
	BatchID              string        `json:"batchId"`
	Success              bool          `json:"success"`
	PartialFailure       bool          `json:"partialFailure"`
	Errors               []string      `json:"errors"`
	ProcessedActivities  int           `json:"processedActivities"`
	ProcessedValuations  int           `json:"processedValuations"`
	RecalculatedFunds    int           `json:"recalculatedFunds"`
	RecalculationsQueued int           `json:"recalculationsQueued"`
	FailedEdits          []PendingEdit `json:"failedEdits,omitempty"`
}

// Processed returns the number of edits the backend accepted.
func (r SaveResult) Processed() int {
	return r.ProcessedActivities + r.ProcessedValuations
}

// ResultBuilder accumulates the outcome of a save as it runs. It is not
// safe for concurrent use.
type ResultBuilder struct {
	batchID     string
	activities  int
	valuations  int
	recalc      int
	queued      int
	errors      []string
	failedEdits []PendingEdit
	fatal       error
}

// NewResultBuilder starts a result for the given batch.
func NewResultBuilder(batchID string) *ResultBuilder {
	return &ResultBuilder{batchID: batchID}
}

// ActivitySaved counts one committed activity mutation.
func (b *ResultBuilder) ActivitySaved() { b.activities++ }

// ValuationSaved counts one committed valuation mutation.
func (b *ResultBuilder) ValuationSaved() { b.valuations++ }

// EditFailed records a failed mutation and keeps the edit for retry.
func (b *ResultBuilder) EditFailed(e PendingEdit, msg string) {
	b.errors = append(b.errors, msg)
	b.failedEdits = append(b.failedEdits, e)
}

// Recalculated adds the number of IRR values the backend recomputed.
func (b *ResultBuilder) Recalculated(n int) { b.recalc += n }

// Queued counts one recalculation handed to the queue.
func (b *ResultBuilder) Queued() { b.queued++ }

// Fatal marks the batch as aborted. Only the first fatal error is kept.
func (b *ResultBuilder) Fatal(err error) {
	if b.fatal == nil && err != nil {
		b.fatal = err
	}
}

// IsFatal reports whether the batch was aborted.
func (b *ResultBuilder) IsFatal() bool { return b.fatal != nil }

// Build produces the final result. A fatal error replaces the per-edit
// errors; counts keep what committed before the abort.
func (b *ResultBuilder) Build() SaveResult {
	r := SaveResult{
		BatchID:              b.batchID,
		ProcessedActivities:  b.activities,
		ProcessedValuations:  b.valuations,
		RecalculatedFunds:    b.recalc,
		RecalculationsQueued: b.queued,
		Errors:               []string{},
	}

	if b.fatal != nil {
		r.Errors = []string{b.fatal.Error()}
		r.FailedEdits = append([]PendingEdit(nil), b.failedEdits...)
		return r
	}

	r.Errors = append(r.Errors, b.errors...)
	r.FailedEdits = append([]PendingEdit(nil), b.failedEdits...)
	r.Success = len(r.Errors) == 0
	r.PartialFailure = !r.Success
	return r
}
