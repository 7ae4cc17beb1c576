package services

import (
	"context"
	"sort"

	"backoffice/internal/core"
	"backoffice/internal/log"
	"backoffice/internal/remote"
)

// PlanRecalculations returns one recalculation per fund touched by a
// non-deletion edit, starting from the fund's earliest affected month.
// Plans are sorted by fund id.
func PlanRecalculations(edits []core.PendingEdit) []core.RecalcPlan {
	earliest := make(map[int64]string)
	for _, e := range edits {
		if e.ToDelete {
			continue
		}
		date := e.ActivityDate()
		// YYYY-MM-DD strings order chronologically.
		if cur, ok := earliest[e.FundID]; !ok || date < cur {
			earliest[e.FundID] = date
		}
	}

	plans := make([]core.RecalcPlan, 0, len(earliest))
	for fund, date := range earliest {
		plans = append(plans, core.RecalcPlan{FundID: fund, ActivityDate: date})
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].FundID < plans[j].FundID })
	return plans
}

// RecalcOutcome is what a dispatcher achieved for a batch.
type RecalcOutcome struct {
	// Recalculated is the number of IRR values the backend recomputed.
	Recalculated int
	// Queued is the number of recalculations handed to the queue.
	Queued int
}

// RecalcDispatcher triggers the recalculations planned for a batch. It
// never fails the batch: problems are logged.
type RecalcDispatcher interface {
	Dispatch(ctx context.Context, batchID string, plans []core.RecalcPlan) RecalcOutcome
}

// InlineRecalc calls the backend once per fund before the save returns.
type InlineRecalc struct {
	client remote.IRRRecalculator
	logger *log.Logger
}

func NewInlineRecalc(client remote.IRRRecalculator, logger *log.Logger) *InlineRecalc {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &InlineRecalc{client: client, logger: logger.WithComponent(log.ComponentRecalc)}
}

// Dispatch implements RecalcDispatcher
func (r *InlineRecalc) Dispatch(ctx context.Context, batchID string, plans []core.RecalcPlan) RecalcOutcome {
	var out RecalcOutcome
	for _, p := range plans {
		n, err := r.client.RecalculateIRR(ctx, p.FundID, p.ActivityDate)
		if err != nil {
			r.logger.WarnContext(ctx, "IRR recalculation failed",
				log.FieldBatchID, batchID,
				log.FieldFundID, p.FundID,
				log.FieldActivityDate, p.ActivityDate,
				log.FieldError, err)
			continue
		}
		r.logger.DebugContext(ctx, "IRR recalculated",
			log.FieldBatchID, batchID,
			log.FieldFundID, p.FundID,
			"recalculated", n)
		out.Recalculated += n
	}
	return out
}

// RecalcPublisher hands a recalculation request to the queue.
type RecalcPublisher interface {
	PublishRecalcRequest(ctx context.Context, fundID int64, activityDate, batchID string) error
}

// QueuedRecalc publishes one message per fund for the recalc worker.
type QueuedRecalc struct {
	publisher RecalcPublisher
	logger    *log.Logger
}

func NewQueuedRecalc(publisher RecalcPublisher, logger *log.Logger) *QueuedRecalc {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &QueuedRecalc{publisher: publisher, logger: logger.WithComponent(log.ComponentRecalc)}
}

// Dispatch implements RecalcDispatcher
func (q *QueuedRecalc) Dispatch(ctx context.Context, batchID string, plans []core.RecalcPlan) RecalcOutcome {
	var out RecalcOutcome
	if q.publisher == nil {
		q.logger.WarnContext(ctx, "AMQP client not available, skipping recalculation requests",
			log.FieldBatchID, batchID,
			"funds", len(plans))
		return out
	}
	for _, p := range plans {
		if err := q.publisher.PublishRecalcRequest(ctx, p.FundID, p.ActivityDate, batchID); err != nil {
			q.logger.ErrorContext(ctx, "Failed to publish recalculation request",
				log.FieldBatchID, batchID,
				log.FieldFundID, p.FundID,
				log.FieldError, err)
			continue
		}
		out.Queued++
	}
	return out
}
