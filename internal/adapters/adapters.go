// Package adapters picks the concrete implementation behind each port from
// configuration.
package adapters

import (
	"context"
	"fmt"

	"backoffice/internal/config"
	"backoffice/internal/log"
	"backoffice/internal/remote"
	"backoffice/internal/remote/memory"
	"backoffice/internal/remote/rest"
	"backoffice/internal/services"
	"backoffice/internal/sheets"
	gsheet "backoffice/internal/sheets/google"
	sheetsmem "backoffice/internal/sheets/memory"
)

// NewMutationClient returns the REST client, or an in-memory store when
// REMOTE_BACKEND=memory.
func NewMutationClient(cfg *config.Config) (remote.MutationClient, error) {
	switch cfg.RemoteBackend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendREST:
		client, err := rest.New(rest.Options{
			BaseURL:  cfg.APIBaseURL,
			Token:    cfg.APIToken,
			Timeout:  cfg.APITimeout,
			DeferIRR: cfg.DeferIRR,
		})
		if err != nil {
			return nil, fmt.Errorf("create REST client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.RemoteBackend)
	}
}

// NewRecalcDispatcher returns the inline dispatcher, or the queued one when
// RECALC_MODE=queue. publisher may be nil in queue mode; requests are then
// dropped with a warning.
func NewRecalcDispatcher(cfg *config.Config, client remote.IRRRecalculator, publisher services.RecalcPublisher, logger *log.Logger) services.RecalcDispatcher {
	if cfg.RecalcMode == config.RecalcQueue {
		return services.NewQueuedRecalc(publisher, logger)
	}
	return services.NewInlineRecalc(client, logger)
}

// NewReportWriter returns the Google Sheets writer when a spreadsheet is
// configured and an in-memory writer otherwise.
func NewReportWriter(ctx context.Context, cfg *config.Config) (sheets.BatchReportWriter, error) {
	if !cfg.SheetsEnabled() {
		return sheetsmem.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("create Google Sheets client: %w", err)
	}
	return client, nil
}

// CoordinatorConfig maps configuration onto the save coordinator.
func CoordinatorConfig(cfg *config.Config) services.CoordinatorConfig {
	c := services.DefaultCoordinatorConfig()
	if cfg.PhaseConcurrency > 0 {
		c.PhaseConcurrency = cfg.PhaseConcurrency
	}
	return c
}

// ExportConfig maps configuration onto the export processor.
func ExportConfig(cfg *config.Config) services.ExportProcessorConfig {
	c := services.DefaultExportProcessorConfig()
	if cfg.ExportInterval > 0 {
		c.PollInterval = cfg.ExportInterval
	}
	if cfg.ExportBatchSize > 0 {
		c.BatchSize = cfg.ExportBatchSize
	}
	if cfg.ExportMaxRetries > 0 {
		c.MaxRetries = cfg.ExportMaxRetries
	}
	return c
}
