// Package server initializes and runs the API server. It opens the database,
// applies migrations, bootstraps the initial admin account, schedules the
// refresh-token cleanup sweep, and serves the REST API until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/webstarter/api/internal/logging"
	"github.com/webstarter/api/internal/server/config"
	"github.com/webstarter/api/internal/server/email"
	"github.com/webstarter/api/internal/server/httpapi"
	"github.com/webstarter/api/internal/server/observability"
	"github.com/webstarter/api/internal/server/repositories/repomanager"
	"github.com/webstarter/api/internal/server/services"
	"github.com/webstarter/api/internal/server/storage"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	authService *services.AuthService
	metrics     *observability.Metrics
	email       email.Sender
	storage     storage.Storage
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	sender := email.NewSender(cfg, logger)
	if err := services.Bootstrap(ctx, db, rm, logger, sender, cfg); err != nil {
		return nil, fmt.Errorf("bootstrap error: %w", err)
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		authService: services.NewAuthService(db, rm, logger, metrics, cfg),
		metrics:     metrics,
		email:       sender,
		storage:     storage.NewStorage(cfg),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// startTokenSweep schedules the periodic cleanup of expired and revoked
// refresh tokens. Token validity never depends on the sweep having run.
func (app *App) startTokenSweep(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(app.config.TokenSweepSchedule, func() {
		if _, err := app.authService.CleanupExpiredTokens(ctx); err != nil {
			app.logger.Error(ctx, "token sweep failed", "error", err.Error())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", app.config.TokenSweepSchedule, err)
	}
	c.Start()
	return c, nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.authService, app.storage, app.metrics)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	sweep, err := app.startTokenSweep(ctx)
	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if sweep != nil {
		<-sweep.Stop().Done()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}

	app.logger.Info(ctx, "App stopped")
}
