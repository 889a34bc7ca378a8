package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"civildocs_backend/platform/logger"
)

type fakeSchedulerConfig struct {
	redisURL    string
	queue       string
	concurrency int
}

func (f fakeSchedulerConfig) GetRedisURL() string      { return f.redisURL }
func (f fakeSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (f fakeSchedulerConfig) GetAsynqQueueName() string { return f.queue }
func (f fakeSchedulerConfig) GetAsynqConcurrency() int  { return f.concurrency }

type fakeReconciler struct {
	intents    []string
	intentErr  error
	settled    int
	sweepErr   error
	sweepCalls int
}

func (f *fakeReconciler) ReconcileIntent(_ context.Context, intentID string) error {
	f.intents = append(f.intents, intentID)
	return f.intentErr
}

func (f *fakeReconciler) ReconcileStalePending(_ context.Context, _ int) (int, error) {
	f.sweepCalls++
	return f.settled, f.sweepErr
}

func newTestRedis(t *testing.T, queue string) (fakeSchedulerConfig, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return fakeSchedulerConfig{redisURL: "redis://" + mr.Addr(), queue: queue}, rdb
}

func TestNewClient_RequiresRedisURL(t *testing.T) {
	if _, err := NewClient(fakeSchedulerConfig{}); err == nil {
		t.Fatal("expected an error without a redis url")
	}
}

func TestEnqueueReconcile_SchedulesDelayedTask(t *testing.T) {
	cfg, rdb := newTestRedis(t, "civildocs")

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.EnqueueReconcile(context.Background(), "pi_test_1", 30*time.Minute); err != nil {
		t.Fatalf("EnqueueReconcile: %v", err)
	}

	ctx := context.Background()
	scheduled, err := rdb.ZCard(ctx, "asynq:{civildocs}:scheduled").Result()
	if err != nil {
		t.Fatalf("inspect scheduled set: %v", err)
	}
	if scheduled != 1 {
		t.Fatalf("scheduled set has %d tasks, want 1", scheduled)
	}

	ids, err := rdb.ZRange(ctx, "asynq:{civildocs}:scheduled", 0, -1).Result()
	if err != nil || len(ids) != 1 {
		t.Fatalf("read scheduled task id: %v", err)
	}
	msg, err := rdb.HGet(ctx, fmt.Sprintf("asynq:{civildocs}:t:%s", ids[0]), "msg").Result()
	if err != nil {
		t.Fatalf("read task message: %v", err)
	}
	if !strings.Contains(msg, TaskPaymentReconcile) {
		t.Errorf("task message does not reference %s", TaskPaymentReconcile)
	}
	if !strings.Contains(msg, "pi_test_1") {
		t.Error("task message does not carry the intent id")
	}
}

func TestEnqueueReconcile_FallsBackToDefaultQueue(t *testing.T) {
	cfg, rdb := newTestRedis(t, "")

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if err := client.EnqueueReconcile(context.Background(), "pi_test_2", time.Minute); err != nil {
		t.Fatalf("EnqueueReconcile: %v", err)
	}

	scheduled, err := rdb.ZCard(context.Background(), "asynq:{default}:scheduled").Result()
	if err != nil {
		t.Fatalf("inspect scheduled set: %v", err)
	}
	if scheduled != 1 {
		t.Fatalf("default queue has %d scheduled tasks, want 1", scheduled)
	}
}

func TestParsePaymentReconcilePayload_RejectsGarbage(t *testing.T) {
	task := asynq.NewTask(TaskPaymentReconcile, []byte("{not json"))
	if _, err := ParsePaymentReconcilePayload(task); err == nil {
		t.Fatal("expected an error for a malformed payload")
	}
}

func TestWorker_HandlePaymentReconcile(t *testing.T) {
	cfg, _ := newTestRedis(t, "civildocs")
	reconciler := &fakeReconciler{}

	worker, err := NewWorker(cfg, reconciler, logger.New("development"))
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	task, err := NewPaymentReconcileTask(PaymentReconcilePayload{IntentID: "pi_test_3"})
	if err != nil {
		t.Fatalf("NewPaymentReconcileTask: %v", err)
	}
	if err := worker.handlePaymentReconcile(context.Background(), task); err != nil {
		t.Fatalf("handlePaymentReconcile: %v", err)
	}
	if len(reconciler.intents) != 1 || reconciler.intents[0] != "pi_test_3" {
		t.Errorf("reconciled intents = %v, want [pi_test_3]", reconciler.intents)
	}
}

func TestWorker_HandlePaymentReconcile_EmptyIntentIsNoOp(t *testing.T) {
	cfg, _ := newTestRedis(t, "civildocs")
	reconciler := &fakeReconciler{}

	worker, err := NewWorker(cfg, reconciler, logger.New("development"))
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	task, _ := NewPaymentReconcileTask(PaymentReconcilePayload{})
	if err := worker.handlePaymentReconcile(context.Background(), task); err != nil {
		t.Fatalf("handlePaymentReconcile: %v", err)
	}
	if len(reconciler.intents) != 0 {
		t.Error("empty intent id reached the reconciler")
	}
}

func TestWorker_HandlePaymentSweep_PropagatesError(t *testing.T) {
	cfg, _ := newTestRedis(t, "civildocs")
	reconciler := &fakeReconciler{sweepErr: errors.New("gateway unavailable")}

	worker, err := NewWorker(cfg, reconciler, logger.New("development"))
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	if err := worker.handlePaymentSweep(context.Background(), NewPaymentSweepTask()); err == nil {
		t.Fatal("expected sweep error to propagate so asynq retries")
	}
	if reconciler.sweepCalls != 1 {
		t.Errorf("sweep calls = %d, want 1", reconciler.sweepCalls)
	}
}

func TestSweeper_EnqueuesSweepTasks(t *testing.T) {
	cfg, rdb := newTestRedis(t, "civildocs")

	sweeper, err := NewSweeper(cfg, logger.New("development"))
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	defer sweeper.Close()
	sweeper.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		pending, err := rdb.LLen(context.Background(), "asynq:{civildocs}:pending").Result()
		if err != nil {
			t.Fatalf("inspect pending list: %v", err)
		}
		if pending >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never enqueued a sweep task")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
