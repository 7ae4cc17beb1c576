package cli

import (
	"context"
	"errors"
	"fmt"

	"backoffice/internal/adapters"
	"backoffice/internal/amqp"
	"backoffice/internal/config"
	"backoffice/internal/log"
	"backoffice/internal/remote"
	"backoffice/internal/services"
	"backoffice/internal/storage"
)

// App is the wired save stack: journal, backend client, optional AMQP
// publisher and the coordinator on top.
type App struct {
	Config      *config.Config
	Logger      *log.Logger
	Journal     *storage.SQLiteRepository
	Client      remote.MutationClient
	Publisher   *amqp.Client
	Coordinator *services.SaveCoordinator
}

// Build wires an App from configuration. In queue mode a broker that cannot
// be reached is logged and recalculation requests are dropped.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	journal, err := InitSQLite(logger, cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}

	client, err := adapters.NewMutationClient(cfg)
	if err != nil {
		journal.Close()
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger, Journal: journal, Client: client}

	var publisher services.RecalcPublisher
	if cfg.RecalcMode == config.RecalcQueue {
		app.Publisher, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "AMQP unavailable, recalculation requests will be dropped", log.FieldError, err)
		} else {
			publisher = app.Publisher
		}
	}

	recalc := adapters.NewRecalcDispatcher(cfg, client, publisher, logger)
	app.Coordinator = services.NewSaveCoordinator(client, recalc, journal, adapters.CoordinatorConfig(cfg), logger)

	logger.InfoContext(ctx, "Save stack initialized",
		"remote_backend", cfg.RemoteBackend,
		"recalc_mode", cfg.RecalcMode,
		"phase_concurrency", cfg.PhaseConcurrency,
		"journal", cfg.SQLiteDBPath)

	return app, nil
}

// Close releases the journal and broker connections.
func (a *App) Close() error {
	var errs []error
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close AMQP client: %w", err))
		}
	}
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	return errors.Join(errs...)
}
