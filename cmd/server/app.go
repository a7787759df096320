package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskboard-scheduler/internal/api"
	"github.com/phrazzld/taskboard-scheduler/internal/assignment"
	"github.com/phrazzld/taskboard-scheduler/internal/config"
	"github.com/phrazzld/taskboard-scheduler/internal/domain"
	"github.com/phrazzld/taskboard-scheduler/internal/events"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/metrics"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/postgres"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/rabbitmq"
	"github.com/phrazzld/taskboard-scheduler/internal/platform/redis"
	"github.com/phrazzld/taskboard-scheduler/internal/scheduler"
	"github.com/phrazzld/taskboard-scheduler/internal/service/auth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// application holds the shared dependencies and closes them on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     api.Pinger

	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	jwtService auth.JWTService
	emitter    *events.InMemoryEventEmitter

	service    *assignment.Service
	reconciler *assignment.Reconciler
	scheduler  *scheduler.Scheduler

	closers []func() error
}

// newApplication wires the PostgreSQL stores and the optional Redis lock and
// RabbitMQ notification backends.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	stores := assignment.Stores{
		Subscribers: postgres.NewPostgresSubscriberStore(db),
		Catalog:     postgres.NewPostgresCatalogStore(db),
		Boards:      postgres.NewPostgresBoardStore(db),
	}

	var (
		opts    []assignment.Option
		closers []func() error
	)
	fail := func(err error) (*application, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
		closers = append(closers, client.Close)
		opts = append(opts, assignment.WithLocker(redis.NewLocker(client, cfg.Redis.LockTTL(), logger)))
		logger.Info("redis assignment lock enabled", "addr", cfg.Redis.Addr)
	}

	var publisher *rabbitmq.Publisher
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries,
			time.Duration(cfg.RabbitMQ.RetryDelaySeconds)*time.Second)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to rabbitmq: %w", err))
		}
		closers = append(closers, conn.Close)
		ch, err := rabbitmq.SetupChannel(conn, cfg.RabbitMQ.Exchange)
		if err != nil {
			return fail(fmt.Errorf("failed to set up rabbitmq channel: %w", err))
		}
		// closers run in reverse, so the channel closes before its connection
		closers = append(closers, ch.Close)
		publisher = rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange, logger)
		logger.Info("rabbitmq notifications enabled", "exchange", cfg.RabbitMQ.Exchange)
	}

	app, err := buildApplication(cfg, logger, stores, db, opts...)
	if err != nil {
		return fail(err)
	}
	app.closers = closers
	if publisher != nil {
		app.emitter.RegisterHandler(publisher)
	}
	return app, nil
}

// buildApplication wires services over the given stores. db may be nil.
func buildApplication(
	cfg *config.Config,
	logger *slog.Logger,
	stores assignment.Stores,
	db api.Pinger,
	opts ...assignment.Option,
) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
		emitter:  events.NewInMemoryEventEmitter(logger),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	schedCfg, err := scheduler.ConfigFrom(cfg.Scheduler)
	if err != nil {
		return nil, err
	}
	cal := domain.CalendarIn(schedCfg.Location)

	opts = append([]assignment.Option{
		assignment.WithWorkers(cfg.Scheduler.AssignmentWorkers),
		assignment.WithEmitter(app.emitter),
		assignment.WithMetrics(app.metrics),
	}, opts...)

	app.service, err = assignment.NewService(stores, cal, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize assignment service: %w", err)
	}
	app.reconciler, err = assignment.NewReconciler(stores, app.service, cal, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize reconciler: %w", err)
	}
	app.scheduler, err = scheduler.New(schedCfg, app.service, app.reconciler, logger,
		scheduler.WithMetrics(app.metrics))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	logger.Info("application initialized",
		"workers", cfg.Scheduler.AssignmentWorkers,
		"daily_at", fmt.Sprintf("%02d:%02d", cfg.Scheduler.DailyHour, cfg.Scheduler.DailyMinute),
		"reconcile_interval", cfg.Scheduler.ReconcileInterval().String())
	return app, nil
}

// cleanup releases external connections in reverse order of acquisition.
func (app *application) cleanup() {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		app.logger.Error("cleanup failed", "error", err)
	}
	app.closers = nil
}
