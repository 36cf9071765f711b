package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/utafrali/crmsync/internal/config"
	"github.com/utafrali/crmsync/internal/crm"
	"github.com/utafrali/crmsync/internal/event"
	handler "github.com/utafrali/crmsync/internal/handler/http"
	"github.com/utafrali/crmsync/internal/repository/postgres"
	"github.com/utafrali/crmsync/internal/service"
	"github.com/utafrali/crmsync/internal/worker"
	"github.com/utafrali/crmsync/migrations"
	"github.com/utafrali/crmsync/pkg/database"
	"github.com/utafrali/crmsync/pkg/health"
	pkgkafka "github.com/utafrali/crmsync/pkg/kafka"
)

const serviceName = "crm-sync"

// Processed events are remembered for this long so redelivered messages do
// not re-run aggregation.
const idempotencyTTL = 24 * time.Hour

// App wires together all dependencies and runs the sync service.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	pool       *pgxpool.Pool
	producer   *pkgkafka.Producer
	consumer   *pkgkafka.Consumer
	workers    *worker.Pool
	scheduler  *worker.Scheduler
	httpServer *http.Server

	cancelWorkers context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	// PostgreSQL pool, migrations, and pool metrics.
	pgCfg := database.DefaultPostgresConfig()
	pgCfg.Host = cfg.PostgresHost
	pgCfg.Port = cfg.PostgresPort
	pgCfg.User = cfg.PostgresUser
	pgCfg.Password = cfg.PostgresPass
	pgCfg.DBName = cfg.PostgresDB
	pgCfg.SSLMode = cfg.PostgresSSL

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init postgres pool: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	database.RegisterPoolMetrics(pool, serviceName)

	// Repositories.
	credRepo := postgres.NewCredentialRepository(pool)
	contactRepo := postgres.NewContactRepository(pool)
	opportunityRepo := postgres.NewOpportunityRepository(pool)

	// Upstream CRM client.
	crmClient := crm.NewClient(crm.Config{
		BaseURL:      cfg.CRMBaseURL,
		ClientID:     cfg.CRMClientID,
		ClientSecret: cfg.CRMClientSecret,
		APIVersion:   cfg.CRMAPIVersion,
		PageSize:     cfg.SyncPageSize,
	}, logger)

	// Kafka producer and domain event publisher.
	kafkaProducer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	eventProducer := event.NewProducer(kafkaProducer, logger)

	// Service layer.
	tokenService := service.NewTokenService(credRepo, crmClient, logger)
	syncService := service.NewSyncService(
		credRepo,
		contactRepo,
		opportunityRepo,
		service.NewCRMGateway(crmClient),
		tokenService,
		eventProducer,
		cfg.SyncBatchSize,
		logger,
	)
	aggregatorService := service.NewAggregatorService(credRepo, contactRepo, eventProducer, logger)

	// Worker pool and hourly schedule. Aggregation also chains off the
	// opportunities-synced event below; the scheduled run keeps totals moving
	// when the broker is down, and the recompute is idempotent.
	workerPool := worker.NewPool(worker.Config{
		Workers:     cfg.SyncWorkers,
		MaxAttempts: cfg.SyncRetryAttempts,
		RetryDelay:  cfg.SyncRetryDelay,
	}, logger)

	scheduler := worker.NewScheduler(workerPool, cfg.SyncInterval, logger)
	scheduler.Add("contact-sync", func(ctx context.Context) error {
		_, err := syncService.SyncContacts(ctx, "")
		return err
	})
	scheduler.Add("opportunity-sync", func(ctx context.Context) error {
		_, err := syncService.SyncOpportunities(ctx, "")
		return err
	})
	scheduler.Add("aggregate-opportunity-totals", func(ctx context.Context) error {
		_, err := aggregatorService.Aggregate(ctx, "")
		return err
	})

	// Kafka consumer: every completed opportunity sync triggers aggregation.
	eventConsumer := event.NewConsumer(workerPool, aggregatorService, logger)
	idemStore := pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	consumer := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  serviceName,
		Topic:    event.TopicOpportunitiesSynced,
		MinBytes: 1,
		MaxBytes: 10e6, // 10 MB
	}, pkgkafka.IdempotentHandler(idemStore, eventConsumer.Handle, logger), logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("kafka", kafkaProducer.Ping)

	// HTTP router.
	syncHandler := handler.NewSyncHandler(workerPool, syncService, aggregatorService, logger)
	tenantHandler := handler.NewTenantHandler(tokenService, logger)
	router := handler.NewRouter(syncHandler, tenantHandler, healthHandler, logger, cfg.PprofAllowedCIDRs)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &App{
		cfg:        cfg,
		logger:     logger,
		pool:       pool,
		producer:   kafkaProducer,
		consumer:   consumer,
		workers:    workerPool,
		scheduler:  scheduler,
		httpServer: httpServer,
	}, nil
}

// Run starts the HTTP server, worker pool, scheduler, and Kafka consumer,
// blocking until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	// Workers get their own context so in-flight jobs survive until Shutdown.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	a.cancelWorkers = cancelWorkers
	a.workers.Start(workerCtx)

	go a.scheduler.Run(ctx)
	a.logger.Info("sync scheduler started",
		slog.Duration("interval", a.cfg.SyncInterval),
		slog.Int("workers", a.cfg.SyncWorkers),
	)

	go func() {
		if err := a.consumer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("kafka consumer: %w", err)
		}
	}()

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.consumer.Close(); err != nil {
		a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// Stop the workers and wait for in-flight jobs to finish.
	if a.cancelWorkers != nil {
		a.cancelWorkers()
	}
	a.workers.Stop()

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
