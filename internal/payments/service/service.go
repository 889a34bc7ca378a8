// Package service implements the payment coordinator: intent creation
// guarded by request state, idempotent reconciliation of gateway outcomes
// and scheduled re-checks of stale pending intents.
package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"civildocs_backend/internal/events"
	"civildocs_backend/internal/payments/gateway"
	"civildocs_backend/internal/payments/repository"
	"civildocs_backend/internal/payments/transport"
	"civildocs_backend/internal/requests/domain"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/logger"
)

// reconcileDelay is how long an intent may sit pending before the
// scheduled re-check fires.
const reconcileDelay = 30 * time.Minute

// sweepConcurrency bounds parallel gateway lookups during a stale sweep.
const sweepConcurrency = 4

// Scheduler enqueues delayed reconcile checks. Optional; without one,
// stale intents are only caught by the periodic sweep.
type Scheduler interface {
	EnqueueReconcile(ctx context.Context, intentID string, delay time.Duration) error
}

// Service provides payment coordination business logic.
type Service struct {
	repo      repository.Repository
	gateway   gateway.Gateway
	cfg       config.GatewayConfig
	bus       events.Bus
	log       *logger.Logger
	scheduler Scheduler
}

// New creates a new payments service.
func New(repo repository.Repository, gw gateway.Gateway, cfg config.GatewayConfig, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gw,
		cfg:     cfg,
		bus:     bus,
		log:     log,
	}
}

// SetScheduler wires the delayed reconcile queue.
func (s *Service) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

// InitializePayment creates a gateway intent for a request. Only the
// owning citizen may pay, and only once the request reached processing.
// The gateway call happens before any write, so a gateway failure leaves
// the request untouched.
func (s *Service) InitializePayment(ctx context.Context, citizenID, requestID uuid.UUID) (transport.InitializePaymentResponse, error) {
	if !s.cfg.IsGatewayEnabled() {
		return transport.InitializePaymentResponse{}, apperr.Unavailable("payments are not configured")
	}

	row, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return transport.InitializePaymentResponse{}, err
	}
	if row.CitizenID != citizenID {
		return transport.InitializePaymentResponse{}, apperr.Forbidden("only the request owner can pay")
	}
	if row.Status != string(domain.StatusProcessing) {
		return transport.InitializePaymentResponse{}, apperr.Conflict(
			"payment can only be initialized while the request is being processed")
	}
	if row.PaymentState == "paid" {
		return transport.InitializePaymentResponse{}, apperr.Conflict("request is already paid")
	}

	// Prices are stored in whole XOF; the gateway counts minor units.
	amount := row.TotalPrice * 100
	currency := s.cfg.GetGatewayCurrency()

	intent, err := s.gateway.CreateIntent(ctx, gateway.CreateIntentParams{
		Amount:   amount,
		Currency: currency,
		Metadata: map[string]string{
			"requestId": row.ID.String(),
			"userId":    citizenID.String(),
		},
	})
	if err != nil {
		return transport.InitializePaymentResponse{}, err
	}

	if err := s.repo.SetPaymentIntent(ctx, row.ID, intent.ID); err != nil {
		return transport.InitializePaymentResponse{}, err
	}

	s.log.Info("payment intent created", "requestId", row.ID, "intentId", intent.ID, "amount", amount)

	if s.scheduler != nil {
		if err := s.scheduler.EnqueueReconcile(ctx, intent.ID, reconcileDelay); err != nil {
			s.log.Error("enqueue payment reconcile failed", "intentId", intent.ID, "error", err)
		}
	}

	return transport.InitializePaymentResponse{
		RequestID:    row.ID,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       amount,
		Currency:     currency,
	}, nil
}

// UpdatePaymentStatus applies a gateway outcome to the request holding the
// intent reference. Safe under at-least-once delivery: a duplicate of an
// already-applied outcome changes nothing and publishes no second event.
func (s *Service) UpdatePaymentStatus(ctx context.Context, intentID, outcome, transactionID string) (transport.PaymentStatusResponse, error) {
	if intentID == "" || outcome == "" {
		return transport.PaymentStatusResponse{}, apperr.Validation("intent id and outcome are required")
	}

	paymentStatus, paymentState := mapOutcome(outcome)

	row, applied, err := s.repo.ApplyOutcome(ctx, repository.ApplyOutcomeParams{
		IntentID:      intentID,
		PaymentStatus: paymentStatus,
		PaymentState:  paymentState,
		TransactionID: transactionID,
	})
	if err != nil {
		return transport.PaymentStatusResponse{}, err
	}

	if applied {
		s.log.Info("payment outcome applied", "requestId", row.ID,
			"intentId", intentID, "outcome", outcome)
		s.bus.Publish(ctx, events.PaymentStatusChanged{
			BaseEvent:     events.NewBaseEvent(),
			RequestID:     row.ID,
			CitizenID:     row.CitizenID,
			IntentID:      intentID,
			TransactionID: transactionID,
			Outcome:       outcome,
			Amount:        row.TotalPrice,
		})
	} else {
		s.log.Info("duplicate payment outcome ignored", "requestId", row.ID,
			"intentId", intentID, "outcome", outcome)
	}

	return toStatusResponse(row), nil
}

// ConfirmPayment re-checks an intent with the gateway on behalf of the
// owning citizen and applies whatever terminal outcome it reached. Pending
// intents are left alone.
func (s *Service) ConfirmPayment(ctx context.Context, citizenID uuid.UUID, req transport.ConfirmPaymentRequest) (transport.PaymentStatusResponse, error) {
	row, err := s.repo.GetByIntentID(ctx, req.IntentID)
	if err != nil {
		return transport.PaymentStatusResponse{}, err
	}
	if row.CitizenID != citizenID {
		return transport.PaymentStatusResponse{}, apperr.Forbidden("only the request owner can confirm a payment")
	}

	return s.reconcile(ctx, row, req.IntentID)
}

// ReconcileIntent re-checks one intent. Called by the delayed job the
// scheduler enqueues at intent creation.
func (s *Service) ReconcileIntent(ctx context.Context, intentID string) error {
	row, err := s.repo.GetByIntentID(ctx, intentID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			// The request may have been deleted since; nothing to settle.
			return nil
		}
		return err
	}
	if row.PaymentStatus != "pending" {
		return nil
	}
	_, err = s.reconcile(ctx, row, intentID)
	return err
}

// ReconcileStalePending sweeps intents stuck pending past the reconcile
// delay. Called by the periodic job. Gateway lookups run concurrently;
// a failed lookup is logged and retried on the next sweep.
func (s *Service) ReconcileStalePending(ctx context.Context, limit int) (int, error) {
	rows, err := s.repo.ListStalePending(ctx, reconcileDelay, limit)
	if err != nil {
		return 0, err
	}

	var settled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, row := range rows {
		if row.PaymentIntentID == nil {
			continue
		}
		g.Go(func() error {
			if _, err := s.reconcile(gctx, row, *row.PaymentIntentID); err != nil {
				s.log.Error("reconcile stale payment failed", "requestId", row.ID, "error", err)
				return nil
			}
			settled.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(settled.Load()), err
	}
	return int(settled.Load()), nil
}

func (s *Service) reconcile(ctx context.Context, row repository.PaymentRow, intentID string) (transport.PaymentStatusResponse, error) {
	intent, err := s.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		return transport.PaymentStatusResponse{}, err
	}
	if intent.Status == gateway.IntentPending {
		return toStatusResponse(row), nil
	}

	outcome := intent.Status
	if outcome == gateway.IntentCanceled {
		outcome = gateway.IntentFailed
	}
	return s.UpdatePaymentStatus(ctx, intentID, outcome, intent.TransactionID)
}

// mapOutcome folds a gateway outcome into the request's payment columns.
func mapOutcome(outcome string) (paymentStatus, paymentState string) {
	if outcome == gateway.IntentSucceeded {
		return "completed", "paid"
	}
	return outcome, outcome
}

func toStatusResponse(row repository.PaymentRow) transport.PaymentStatusResponse {
	return transport.PaymentStatusResponse{
		RequestID:     row.ID,
		PaymentStatus: row.PaymentStatus,
		PaymentState:  row.PaymentState,
		Amount:        row.PaymentAmount,
		TransactionID: row.PaymentTransactionID,
		PaymentDate:   row.PaymentDate,
	}
}
