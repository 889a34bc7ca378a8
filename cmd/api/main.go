package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civildocs_backend/internal/agents"
	"civildocs_backend/internal/assignment"
	"civildocs_backend/internal/auth"
	"civildocs_backend/internal/communes"
	"civildocs_backend/internal/documents"
	"civildocs_backend/internal/email"
	"civildocs_backend/internal/events"
	apphttp "civildocs_backend/internal/http"
	"civildocs_backend/internal/http/router"
	"civildocs_backend/internal/notification"
	"civildocs_backend/internal/payments"
	"civildocs_backend/internal/requests"
	"civildocs_backend/internal/scheduler"
	"civildocs_backend/internal/storage"
	"civildocs_backend/migrations"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/db"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	sender := initEmailSender(cfg, log)

	// Storage service for identity documents and generated certificates
	var storageSvc storage.StorageService
	if cfg.IsMinIOEnabled() {
		svc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, svc, "identity-documents", cfg.GetMinioBucketIdentityDocuments())
		ensureBucket(ctx, log, svc, "generated-documents", cfg.GetMinioBucketGeneratedDocuments())
		storageSvc = svc
		log.Info("storage service initialized",
			"identityDocumentsBucket", cfg.GetMinioBucketIdentityDocuments(),
			"generatedDocumentsBucket", cfg.GetMinioBucketGeneratedDocuments(),
		)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; file uploads disabled")
	}

	reconcileScheduler, closeScheduler := initReconcileScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, eventBus, val, log)
	communesModule := communes.NewModule(pool, val, log)
	agentsModule := agents.NewModule(pool, communesModule.Repository(), eventBus, val, log)

	assignmentEngine := assignment.NewEngine(assignment.NewStore(pool), log)
	requestsModule := requests.NewModule(pool, assignmentEngine, communesModule.Repository(), val, log, eventBus)
	if storageSvc != nil {
		requestsModule.Service().SetStorage(storageSvc,
			cfg.GetMinioBucketIdentityDocuments(), cfg.GetMinioBucketGeneratedDocuments())
	}

	paymentsModule := payments.NewModule(pool, cfg, val, log, eventBus)
	if reconcileScheduler != nil {
		paymentsModule.Service().SetScheduler(reconcileScheduler)
	}

	// Notification module subscribes to domain events
	notificationModule := notification.NewModule(pool, cfg, sender, authModule.Repository(), log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.Close()

	// Certificate generation pipeline (event-driven, not HTTP-facing)
	if cfg.IsGotenbergEnabled() && storageSvc != nil {
		documentsSvc := documents.NewService(
			requestsModule.Repository(),
			communesModule.Repository(),
			documents.NewGotenbergClient(cfg),
			storageSvc,
			cfg.GetMinioBucketGeneratedDocuments(),
			cfg,
			eventBus,
			log,
		)
		documents.NewModule(documentsSvc, log).RegisterHandlers(eventBus)
		log.Info("certificate generation enabled", "gotenbergUrl", cfg.GetGotenbergURL())
	} else {
		log.Warn("certificate generation disabled; requires GOTENBERG_URL and MINIO_ENDPOINT")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			authModule,
			communesModule,
			agentsModule,
			requestsModule,
			paymentsModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initEmailSender(cfg *config.Config, log *logger.Logger) email.Sender {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		log.Warn("SMTP not configured; outgoing email disabled")
		return email.NoopSender{}
	}
	return email.NewSMTPSender(cfg)
}

func initReconcileScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; delayed payment reconciliation disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
