package worker

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/amqp"
	"backoffice/internal/cache"
	"backoffice/internal/log"
	"backoffice/internal/remote"
)

const (
	dedupeSize = 1024
	dedupeTTL  = 10 * time.Minute
)

// RecalcWorker performs IRR recalculations requested over AMQP.
type RecalcWorker struct {
	recalc remote.IRRRecalculator
	logger *log.Logger

	// Requests already completed, keyed by batch, fund and date, so that a
	// redelivered message does not trigger a second full recalculation.
	done *cache.LRUCache[int]
}

func NewRecalcWorker(recalc remote.IRRRecalculator, logger *log.Logger) *RecalcWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RecalcWorker{
		recalc: recalc,
		logger: logger.WithComponent(log.ComponentWorker),
		done:   cache.NewLRUCache[int](dedupeSize, dedupeTTL),
	}
}

// Cache exposes the de-duplication cache for periodic cleanup.
func (w *RecalcWorker) Cache() cache.Cleaner {
	return w.done
}

// HandleRecalcMessage processes a single recalculation request from AMQP.
// A returned error makes the consumer requeue the message.
func (w *RecalcWorker) HandleRecalcMessage(ctx context.Context, msg *amqp.RecalcRequestMessage) error {
	key := dedupeKey(msg)
	if n, ok := w.done.Get(key); ok && msg.BatchID != "" {
		w.logger.InfoContext(ctx, "Skipping duplicate recalculation request",
			log.FieldFundID, msg.FundID,
			log.FieldActivityDate, msg.ActivityDate,
			log.FieldBatchID, msg.BatchID,
			"recalculated", n)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing recalculation request",
		log.FieldFundID, msg.FundID,
		log.FieldActivityDate, msg.ActivityDate,
		log.FieldBatchID, msg.BatchID,
		"queued_at", msg.Timestamp)

	start := time.Now()
	n, err := w.recalc.RecalculateIRR(ctx, msg.FundID, msg.ActivityDate)
	if err != nil {
		return fmt.Errorf("recalculate IRR for fund %d from %s: %w", msg.FundID, msg.ActivityDate, err)
	}

	if msg.BatchID != "" {
		w.done.Set(key, n)
	}

	w.logger.InfoContext(ctx, "IRR recalculated",
		log.FieldFundID, msg.FundID,
		log.FieldActivityDate, msg.ActivityDate,
		log.FieldBatchID, msg.BatchID,
		"recalculated", n,
		log.FieldDuration, time.Since(start).Milliseconds())

	return nil
}

func dedupeKey(msg *amqp.RecalcRequestMessage) string {
	return fmt.Sprintf("%s/%d/%s", msg.BatchID, msg.FundID, msg.ActivityDate)
}
