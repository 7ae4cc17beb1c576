package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"backoffice/internal/core"
	"backoffice/internal/log"
	"backoffice/internal/remote"
)

const (
	phaseActivities = "activities"
	phaseValuations = "valuations"
)

// CoordinatorConfig holds configuration for the save coordinator
type CoordinatorConfig struct {
	// PhaseConcurrency is how many funds are saved in parallel within a
	// phase (default: 1, fully sequential). Edits of one fund always run
	// in input order.
	PhaseConcurrency int
}

// DefaultCoordinatorConfig returns sensible defaults
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{PhaseConcurrency: 1}
}

// BatchJournal records finished saves.
type BatchJournal interface {
	RecordBatch(ctx context.Context, rec core.BatchRecord) error
}

// SaveCoordinator persists a batch of grid edits: every activity first,
// then every valuation, then one IRR recalculation per touched fund.
type SaveCoordinator struct {
	client  remote.MutationClient
	recalc  RecalcDispatcher
	journal BatchJournal
	config  CoordinatorConfig
	logger  *log.Logger
	now     func() time.Time
}

// NewSaveCoordinator creates a coordinator. journal may be nil.
func NewSaveCoordinator(
	client remote.MutationClient,
	recalc RecalcDispatcher,
	journal BatchJournal,
	config CoordinatorConfig,
	logger *log.Logger,
) *SaveCoordinator {
	if config.PhaseConcurrency < 1 {
		config.PhaseConcurrency = 1
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SaveCoordinator{
		client:  client,
		recalc:  recalc,
		journal: journal,
		config:  config,
		logger:  logger.WithComponent(log.ComponentCoordinator),
		now:     time.Now,
	}
}

// Save runs the whole batch and always returns a result. Per-edit failures
// are collected; validation errors, panics and cancellation between edits
// abort the batch.
func (c *SaveCoordinator) Save(ctx context.Context, req core.SaveRequest) core.SaveResult {
	started := c.now()
	batchID := uuid.NewString()
	b := core.NewResultBuilder(batchID)

	c.run(ctx, batchID, req, b)

	res := b.Build()
	log.NewStructuredLogger(c.logger).LogBatchSaved(ctx, batchID, req.ProductID, len(req.Edits), res.Success, res.PartialFailure)
	c.record(ctx, core.BatchRecord{
		ID:         batchID,
		ProductID:  req.ProductID,
		StartedAt:  started,
		FinishedAt: c.now(),
		EditCount:  len(req.Edits),
		Result:     res,
	})
	return res
}

func (c *SaveCoordinator) run(ctx context.Context, batchID string, req core.SaveRequest, b *core.ResultBuilder) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "Save aborted by panic", log.FieldBatchID, batchID, "panic", r)
			b.Fatal(fmt.Errorf("save aborted: %v", r))
		}
	}()

	if len(req.Edits) == 0 {
		c.logger.DebugContext(ctx, "Empty save batch", log.FieldBatchID, batchID)
		return
	}

	if err := core.ValidateBatch(req.Edits); err != nil {
		c.logger.WarnContext(ctx, "Save batch rejected",
			log.FieldBatchID, batchID,
			log.FieldError, err)
		b.Fatal(fmt.Errorf("validate batch: %w", err))
		return
	}

	classified := core.Classify(req.Edits)
	c.logger.InfoContext(ctx, "Saving batch",
		log.FieldBatchID, batchID,
		log.FieldProductID, req.ProductID,
		"activities", len(classified.Activities),
		"valuations", len(classified.Valuations))

	c.runPhase(ctx, batchID, phaseActivities, classified.Activities, b, b.ActivitySaved,
		func(ctx context.Context, e core.PendingEdit) error {
			return c.saveActivity(ctx, req.ProductID, e)
		})
	if b.IsFatal() {
		return
	}

	c.runPhase(ctx, batchID, phaseValuations, classified.Valuations, b, b.ValuationSaved, c.saveValuation)
	if b.IsFatal() {
		return
	}

	plans := PlanRecalculations(req.Edits)
	if len(plans) == 0 || c.recalc == nil {
		return
	}
	out := c.recalc.Dispatch(ctx, batchID, plans)
	b.Recalculated(out.Recalculated)
	for i := 0; i < out.Queued; i++ {
		b.Queued()
	}
}

type editOutcome struct {
	attempted bool
	err       error
}

// panicError marks a recovered panic inside a phase goroutine.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("save aborted: %v", e.value) }

// runPhase applies edits and folds the outcomes into b in input order.
// With PhaseConcurrency 1 the whole phase is one sequential group;
// otherwise each fund is a group and groups run in parallel.
func (c *SaveCoordinator) runPhase(
	ctx context.Context,
	batchID, phase string,
	edits []core.PendingEdit,
	b *core.ResultBuilder,
	saved func(),
	apply func(context.Context, core.PendingEdit) error,
) {
	if len(edits) == 0 {
		return
	}

	outcomes := make([]editOutcome, len(edits))
	var (
		fatalMu sync.Mutex
		fatal   error
	)
	setFatal := func(err error) {
		fatalMu.Lock()
		defer fatalMu.Unlock()
		if fatal == nil {
			fatal = err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.PhaseConcurrency)
	for _, group := range c.groups(edits) {
		g.Go(func() error {
			for _, i := range group {
				if err := gctx.Err(); err != nil {
					// A sibling group already failed the batch, or the
					// caller cancelled.
					if ctxErr := ctx.Err(); ctxErr != nil {
						setFatal(fmt.Errorf("save cancelled during %s phase: %w", phase, ctxErr))
					}
					return err
				}
				err := guard(gctx, edits[i], apply)
				var perr *panicError
				if errors.As(err, &perr) {
					setFatal(perr)
					return perr
				}
				outcomes[i] = editOutcome{attempted: true, err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		if !o.attempted {
			continue
		}
		e := edits[i]
		if o.err != nil {
			log.NewStructuredLogger(c.logger).LogEditFailed(ctx, batchID, phase, e.FundID, e.Month, e.FieldType, o.err)
			b.EditFailed(e, failureMessage(e, o.err))
			continue
		}
		saved()
	}

	if fatal != nil {
		b.Fatal(fatal)
	}
}

// groups returns edit indexes to run sequentially, one slice per group.
func (c *SaveCoordinator) groups(edits []core.PendingEdit) [][]int {
	if c.config.PhaseConcurrency <= 1 {
		all := make([]int, len(edits))
		for i := range edits {
			all[i] = i
		}
		return [][]int{all}
	}

	var order []int64
	byFund := make(map[int64][]int)
	for i, e := range edits {
		if _, ok := byFund[e.FundID]; !ok {
			order = append(order, e.FundID)
		}
		byFund[e.FundID] = append(byFund[e.FundID], i)
	}
	out := make([][]int, 0, len(order))
	for _, fund := range order {
		out = append(out, byFund[fund])
	}
	return out
}

func guard(ctx context.Context, e core.PendingEdit, apply func(context.Context, core.PendingEdit) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()
	return apply(ctx, e)
}

func failureMessage(e core.PendingEdit, err error) string {
	return fmt.Sprintf("Failed to %s %s: %v", e.Action(), e, err)
}

func (c *SaveCoordinator) saveActivity(ctx context.Context, productID int64, e core.PendingEdit) error {
	if e.Action() == core.ActionDelete {
		return c.client.DeleteActivity(ctx, e.OriginalRecordID)
	}

	amount, err := core.EvaluateAmount(e.Value)
	if err != nil {
		return err
	}
	tag, known := core.ActivityTypeForLabel(e.FieldType)
	if !known {
		c.logger.WarnContext(ctx, "Unknown activity type, sending label unchanged",
			log.FieldFundID, e.FundID,
			log.FieldFieldType, e.FieldType,
			"did_you_mean", core.ClosestLabel(e.FieldType))
	}
	a := core.Activity{
		PortfolioFundID:   e.FundID,
		ProductID:         productID,
		ActivityType:      tag,
		ActivityTimestamp: e.ActivityDate(),
		Amount:            amount.Float(),
	}

	switch e.Action() {
	case core.ActionCreate:
		_, err = c.client.CreateActivity(ctx, a)
	case core.ActionUpdate:
		_, err = c.client.UpdateActivity(ctx, e.OriginalRecordID, a)
	default:
		err = fmt.Errorf("unsupported action %q", e.Action())
	}
	return err
}

func (c *SaveCoordinator) saveValuation(ctx context.Context, e core.PendingEdit) error {
	if e.Action() == core.ActionDelete {
		return c.client.DeleteValuation(ctx, e.OriginalRecordID)
	}

	amount, err := core.EvaluateAmount(e.Value)
	if err != nil {
		return err
	}
	v := core.Valuation{
		PortfolioFundID: e.FundID,
		ValuationDate:   e.ActivityDate(),
		Valuation:       amount.Float(),
	}

	switch e.Action() {
	case core.ActionCreate:
		_, err = c.client.CreateValuation(ctx, v)
	case core.ActionUpdate:
		_, err = c.client.UpdateValuation(ctx, e.OriginalRecordID, v)
	default:
		err = fmt.Errorf("unsupported action %q", e.Action())
	}
	return err
}

// record writes the journal entry. Failures are logged only; the save
// result is already final.
func (c *SaveCoordinator) record(ctx context.Context, rec core.BatchRecord) {
	if c.journal == nil {
		return
	}
	if err := c.journal.RecordBatch(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.ErrorContext(ctx, "Failed to record save batch",
			log.FieldBatchID, rec.ID,
			log.FieldError, err)
	}
}
