package scheduler

import (
	"context"
	"fmt"
	"time"

	"civildocs_backend/platform/config"
	"civildocs_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const sweepInterval = 10 * time.Minute

// Sweeper periodically enqueues a stale-payment sweep task. It runs in the
// worker process so sweeps keep happening even when no intent has been
// created recently.
type Sweeper struct {
	client   *asynq.Client
	queue    string
	interval time.Duration
	log      *logger.Logger
}

func NewSweeper(cfg config.SchedulerConfig, log *logger.Logger) (*Sweeper, error) {
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

	return &Sweeper{
		client:   asynq.NewClient(opt),
		queue:    queue,
		interval: sweepInterval,
		log:      log,
	}, nil
}

func (s *Sweeper) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.client == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, err := s.client.EnqueueContext(ctx, NewPaymentSweepTask(), asynq.Queue(s.queue))
		if err != nil {
			s.log.Warn("failed to enqueue payment sweep", "error", err)
		}
	}
}
