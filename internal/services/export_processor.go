package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backoffice/internal/log"
	"backoffice/internal/sheets"
	"backoffice/internal/storage"
)

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to check for unexported batches (default: 30s)
	PollInterval time.Duration

	// BatchSize is the max number of batches exported per poll cycle (default: 20)
	BatchSize int

	// MaxRetries is the maximum export attempts before giving up on a batch (default: 5)
	MaxRetries int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
		MaxRetries:   5,
	}
}

// ExportStore is the part of the journal the export processor needs.
type ExportStore interface {
	ListUnexportedBatches(ctx context.Context, limit int) ([]storage.PendingExport, error)
	MarkExported(ctx context.Context, id string, at time.Time) error
	IncrementExportAttempt(ctx context.Context, id, errMsg string) error
	MarkExportFailed(ctx context.Context, id, errMsg string) error
}

// ExportProcessor copies journal entries to the audit sheet in the
// background.
type ExportProcessor struct {
	store  ExportStore
	writer sheets.BatchReportWriter
	config ExportProcessorConfig
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportProcessor creates a new export processor
func NewExportProcessor(store ExportStore, writer sheets.BatchReportWriter, config ExportProcessorConfig, logger *log.Logger) *ExportProcessor {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExportProcessor{
		store:  store,
		writer: writer,
		config: config,
		logger: logger.WithComponent(log.ComponentExport),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.ExportPending(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ExportPending(ctx)
		}
	}
}

// ExportPending exports one batch of unexported journal entries and returns
// how many were exported.
func (p *ExportProcessor) ExportPending(ctx context.Context) int {
	items, err := p.store.ListUnexportedBatches(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list unexported batches", log.FieldError, err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	p.logger.DebugContext(ctx, "Exporting save batches", "count", len(items))

	exported := 0
	for _, item := range items {
		if ctx.Err() != nil || p.stopping() {
			return exported
		}

		ref, err := p.writer.AppendBatchReport(ctx, item.Batch)
		if err != nil {
			p.handleFailure(ctx, item, err)
			continue
		}

		if err := p.store.MarkExported(ctx, item.Batch.ID, time.Now()); err != nil {
			// The row exists in the sheet; a retry would duplicate it.
			p.logger.ErrorContext(ctx, "Failed to mark batch exported",
				log.FieldBatchID, item.Batch.ID,
				log.FieldError, err)
			continue
		}
		exported++
		p.logger.InfoContext(ctx, "Exported save batch",
			log.FieldBatchID, item.Batch.ID,
			"sheets_ref", ref)
	}
	return exported
}

func (p *ExportProcessor) stopping() bool {
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()
	if stopCh == nil {
		return false
	}
	select {
	case <-stopCh:
		return true
	default:
		return false
	}
}

// handleFailure counts a failed attempt and gives up after MaxRetries.
func (p *ExportProcessor) handleFailure(ctx context.Context, item storage.PendingExport, exportErr error) {
	attempt := item.Attempts + 1
	p.logger.WarnContext(ctx, "Batch export failed",
		log.FieldBatchID, item.Batch.ID,
		"attempt", attempt,
		log.FieldError, exportErr)

	if attempt >= p.config.MaxRetries {
		if err := p.store.MarkExportFailed(ctx, item.Batch.ID, exportErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark export as failed",
				log.FieldBatchID, item.Batch.ID,
				log.FieldError, err)
		}
		p.logger.ErrorContext(ctx, "Batch export failed permanently after max retries",
			log.FieldBatchID, item.Batch.ID,
			"attempts", attempt)
		return
	}

	if err := p.store.IncrementExportAttempt(ctx, item.Batch.ID, exportErr.Error()); err != nil {
		p.logger.ErrorContext(ctx, "Failed to increment export attempt",
			log.FieldBatchID, item.Batch.ID,
			log.FieldError, err)
	}
}
