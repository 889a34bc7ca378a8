package scheduler

import (
	"context"
	"fmt"

	"civildocs_backend/platform/config"
	"civildocs_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const sweepBatchSize = 100

// PaymentReconciler settles payment intents against the gateway.
type PaymentReconciler interface {
	ReconcileIntent(ctx context.Context, intentID string) error
	ReconcileStalePending(ctx context.Context, limit int) (int, error)
}

// Worker consumes background tasks in the worker process.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	payments PaymentReconciler
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, payments PaymentReconciler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		payments: payments,
		log:      log,
	}

	mux.HandleFunc(TaskPaymentReconcile, w.handlePaymentReconcile)
	mux.HandleFunc(TaskPaymentSweep, w.handlePaymentSweep)

	return w, nil
}

func (w *Worker) handlePaymentReconcile(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePaymentReconcilePayload(task)
	if err != nil {
		return err
	}
	if payload.IntentID == "" {
		return nil
	}

	return w.payments.ReconcileIntent(ctx, payload.IntentID)
}

func (w *Worker) handlePaymentSweep(ctx context.Context, _ *asynq.Task) error {
	settled, err := w.payments.ReconcileStalePending(ctx, sweepBatchSize)
	if err != nil {
		return err
	}
	if settled > 0 {
		w.log.Info("stale payment sweep settled intents", "count", settled)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
