// Command coordinator serves the bulk-edit save API and exports the save
// journal to the audit sheet in the background.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"backoffice/internal/adapters"
	"backoffice/internal/cli"
	apphttp "backoffice/internal/http"
	"backoffice/internal/log"
	"backoffice/internal/services"
)

func main() {
	_ = cli.LoadEnvFile("")
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, os.Stdout)

	app, err := cli.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize save stack", log.FieldError, err)
		os.Exit(1)
	}

	writer, err := adapters.NewReportWriter(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize audit export", log.FieldError, err)
		os.Exit(1)
	}
	exporter := services.NewExportProcessor(app.Journal, writer, adapters.ExportConfig(cfg), logger)

	srv := apphttp.NewServer(":"+cfg.Port, app.Coordinator, app.Journal, apphttp.Options{Logger: logger})
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 5 * time.Minute
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := exporter.Stop(ctx); err != nil {
			logger.Error("Export processor shutdown error", log.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	})

	if err := exporter.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting coordinator server",
		"port", cfg.Port,
		"remote_backend", cfg.RemoteBackend,
		"recalc_mode", cfg.RecalcMode,
		"sheets_export", cfg.SheetsEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
