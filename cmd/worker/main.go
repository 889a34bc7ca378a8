package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civildocs_backend/internal/auth"
	"civildocs_backend/internal/email"
	"civildocs_backend/internal/events"
	"civildocs_backend/internal/notification"
	"civildocs_backend/internal/payments"
	"civildocs_backend/internal/scheduler"
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
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	var sender email.Sender = email.NoopSender{}
	if cfg.GetEmailEnabled() && cfg.GetSMTPHost() != "" {
		sender = email.NewSMTPSender(cfg)
	}

	// Reconcile outcomes notify citizens like gateway callbacks do. Realtime
	// push is API-side only; in-app records and emails still go out here.
	authModule := auth.NewModule(pool, cfg, eventBus, val, log)
	notificationModule := notification.NewModule(pool, cfg, sender, authModule.Repository(), log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.Close()

	paymentsModule := payments.NewModule(pool, cfg, val, log, eventBus)

	sweeper, err := scheduler.NewSweeper(cfg, log)
	if err != nil {
		log.Error("failed to initialize payment sweeper", "error", err)
		panic("failed to initialize payment sweeper: " + err.Error())
	}
	defer func() { _ = sweeper.Close() }()
	go sweeper.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, paymentsModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
