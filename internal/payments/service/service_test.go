package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"civildocs_backend/internal/events"
	"civildocs_backend/internal/payments/gateway"
	"civildocs_backend/internal/payments/repository"
	"civildocs_backend/internal/payments/transport"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/logger"
)

// fakeRepo keeps payment rows in memory with the same duplicate-outcome
// guard the SQL repository enforces.
type fakeRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]repository.PaymentRow
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[uuid.UUID]repository.PaymentRow)}
}

func (r *fakeRepo) put(row repository.PaymentRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.ID] = row
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (repository.PaymentRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return repository.PaymentRow{}, apperr.NotFound("request not found")
	}
	return row, nil
}

func (r *fakeRepo) GetByIntentID(_ context.Context, intentID string) (repository.PaymentRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.PaymentIntentID != nil && *row.PaymentIntentID == intentID {
			return row, nil
		}
	}
	return repository.PaymentRow{}, apperr.NotFound("no request matches this payment intent")
}

func (r *fakeRepo) SetPaymentIntent(_ context.Context, id uuid.UUID, intentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return apperr.NotFound("request not found")
	}
	row.PaymentIntentID = &intentID
	row.PaymentStatus = "pending"
	row.PaymentState = "pending"
	method := "gateway"
	row.PaymentMethod = &method
	r.rows[id] = row
	return nil
}

func (r *fakeRepo) ApplyOutcome(ctx context.Context, params repository.ApplyOutcomeParams) (repository.PaymentRow, bool, error) {
	r.mu.Lock()
	for id, row := range r.rows {
		if row.PaymentIntentID == nil || *row.PaymentIntentID != params.IntentID {
			continue
		}
		if row.PaymentStatus == params.PaymentStatus {
			r.mu.Unlock()
			return row, false, nil
		}
		row.PaymentStatus = params.PaymentStatus
		row.PaymentState = params.PaymentState
		amount := row.TotalPrice
		row.PaymentAmount = &amount
		txn := params.TransactionID
		row.PaymentTransactionID = &txn
		date := "2026-08-29T12:00:00Z"
		row.PaymentDate = &date
		r.rows[id] = row
		r.mu.Unlock()
		return row, true, nil
	}
	r.mu.Unlock()
	return repository.PaymentRow{}, false, apperr.NotFound("no request matches this payment intent")
}

func (r *fakeRepo) ListStalePending(context.Context, time.Duration, int) ([]repository.PaymentRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.PaymentRow
	for _, row := range r.rows {
		if row.PaymentIntentID != nil && row.PaymentStatus == "pending" {
			out = append(out, row)
		}
	}
	return out, nil
}

var _ repository.Repository = (*fakeRepo)(nil)

// fakeGateway hands out sequenced intents and replays a configured status
// on retrieval.
type fakeGateway struct {
	createErr      error
	creates        int
	retrieveStatus string
	retrieveTxn    string
}

func (g *fakeGateway) CreateIntent(_ context.Context, params gateway.CreateIntentParams) (gateway.Intent, error) {
	if g.createErr != nil {
		return gateway.Intent{}, g.createErr
	}
	g.creates++
	return gateway.Intent{
		ID:           "pi_test_1",
		ClientSecret: "pi_test_1_secret",
		Status:       gateway.IntentPending,
	}, nil
}

func (g *fakeGateway) RetrieveIntent(_ context.Context, id string) (gateway.Intent, error) {
	return gateway.Intent{ID: id, Status: g.retrieveStatus, TransactionID: g.retrieveTxn}, nil
}

type fakeGatewayConfig struct{ enabled bool }

func (c fakeGatewayConfig) GetGatewayBaseURL() string       { return "https://gateway.test" }
func (c fakeGatewayConfig) GetGatewaySecretKey() string     { return "sk_test" }
func (c fakeGatewayConfig) GetGatewayWebhookSecret() string { return "whsec_test" }
func (c fakeGatewayConfig) GetGatewayCurrency() string      { return "XOF" }
func (c fakeGatewayConfig) IsGatewayEnabled() bool          { return c.enabled }

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.EventName() == name {
			n++
		}
	}
	return n
}

func processingRow() repository.PaymentRow {
	return repository.PaymentRow{
		ID:            uuid.New(),
		CitizenID:     uuid.New(),
		Status:        "processing",
		DocumentType:  "birth_certificate",
		TotalPrice:    4000,
		PaymentStatus: "pending",
		PaymentState:  "unpaid",
	}
}

func newService(repo *fakeRepo, gw *fakeGateway, bus *recordingBus) *Service {
	return New(repo, gw, fakeGatewayConfig{enabled: true}, bus, logger.New("development"))
}

func TestInitializePayment_HappyPath(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{}
	bus := &recordingBus{}
	svc := newService(repo, gw, bus)

	row := processingRow()
	repo.put(row)

	resp, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID)
	if err != nil {
		t.Fatalf("InitializePayment: %v", err)
	}
	if resp.Amount != 400000 {
		t.Errorf("amount = %d minor units, want 400000 for 4000 XOF", resp.Amount)
	}
	if resp.IntentID != "pi_test_1" || resp.ClientSecret == "" {
		t.Errorf("intent handle = %+v, want gateway intent", resp)
	}

	stored, _ := repo.GetByID(context.Background(), row.ID)
	if stored.PaymentIntentID == nil || *stored.PaymentIntentID != "pi_test_1" {
		t.Errorf("paymentIntentID = %v, want pi_test_1", stored.PaymentIntentID)
	}
	if stored.PaymentStatus != "pending" || stored.PaymentState != "pending" {
		t.Errorf("payment record = %s/%s, want pending/pending alongside the intent id",
			stored.PaymentStatus, stored.PaymentState)
	}
}

func TestInitializePayment_RequiresProcessing(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeGateway{}, &recordingBus{})

	row := processingRow()
	row.Status = "pending"
	repo.put(row)

	_, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("err = %v, want conflict before agent verification", err)
	}
}

func TestInitializePayment_OwnerOnly(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeGateway{}, &recordingBus{})

	row := processingRow()
	repo.put(row)

	_, err := svc.InitializePayment(context.Background(), uuid.New(), row.ID)
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("err = %v, want forbidden for non-owner", err)
	}
}

func TestInitializePayment_GatewayFailureLeavesRowUntouched(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{createErr: apperr.Unavailable("payment gateway timed out")}
	svc := newService(repo, gw, &recordingBus{})

	row := processingRow()
	repo.put(row)

	_, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID)
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}

	stored, _ := repo.GetByID(context.Background(), row.ID)
	if stored.PaymentIntentID != nil {
		t.Errorf("paymentIntentID = %v, want none after gateway failure", stored.PaymentIntentID)
	}
	if stored.PaymentState != "unpaid" {
		t.Errorf("paymentState = %q, want unpaid after gateway failure", stored.PaymentState)
	}
}

func TestUpdatePaymentStatus_SucceededMapsToPaid(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	svc := newService(repo, &fakeGateway{}, bus)

	row := processingRow()
	repo.put(row)
	if _, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID); err != nil {
		t.Fatalf("InitializePayment: %v", err)
	}

	resp, err := svc.UpdatePaymentStatus(context.Background(), "pi_test_1", "succeeded", "ch_123")
	if err != nil {
		t.Fatalf("UpdatePaymentStatus: %v", err)
	}
	if resp.PaymentStatus != "completed" || resp.PaymentState != "paid" {
		t.Errorf("payment = %s/%s, want completed/paid", resp.PaymentStatus, resp.PaymentState)
	}
	if resp.TransactionID == nil || *resp.TransactionID != "ch_123" {
		t.Errorf("transactionID = %v, want ch_123", resp.TransactionID)
	}
	if bus.count("payments.status.changed") != 1 {
		t.Errorf("payments.status.changed events = %d, want 1", bus.count("payments.status.changed"))
	}
}

func TestUpdatePaymentStatus_DuplicateCallbackIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	svc := newService(repo, &fakeGateway{}, bus)

	row := processingRow()
	repo.put(row)
	if _, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID); err != nil {
		t.Fatalf("InitializePayment: %v", err)
	}

	first, err := svc.UpdatePaymentStatus(context.Background(), "pi_test_1", "succeeded", "ch_123")
	if err != nil {
		t.Fatalf("first callback: %v", err)
	}
	second, err := svc.UpdatePaymentStatus(context.Background(), "pi_test_1", "succeeded", "ch_123")
	if err != nil {
		t.Fatalf("duplicate callback: %v", err)
	}

	if second.PaymentStatus != first.PaymentStatus ||
		second.PaymentState != first.PaymentState ||
		*second.TransactionID != *first.TransactionID {
		t.Errorf("duplicate callback changed state: first %+v, second %+v", first, second)
	}
	if bus.count("payments.status.changed") != 1 {
		t.Errorf("payments.status.changed events = %d, want exactly 1 across duplicates",
			bus.count("payments.status.changed"))
	}
}

func TestUpdatePaymentStatus_FailureThenSuccessStillApplies(t *testing.T) {
	repo := newFakeRepo()
	bus := &recordingBus{}
	svc := newService(repo, &fakeGateway{}, bus)

	row := processingRow()
	repo.put(row)
	if _, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID); err != nil {
		t.Fatalf("InitializePayment: %v", err)
	}

	if _, err := svc.UpdatePaymentStatus(context.Background(), "pi_test_1", "failed", ""); err != nil {
		t.Fatalf("failed callback: %v", err)
	}
	resp, err := svc.UpdatePaymentStatus(context.Background(), "pi_test_1", "succeeded", "ch_retry")
	if err != nil {
		t.Fatalf("succeeded after failed: %v", err)
	}
	if resp.PaymentStatus != "completed" || resp.PaymentState != "paid" {
		t.Errorf("payment = %s/%s, want completed/paid after retry", resp.PaymentStatus, resp.PaymentState)
	}
	if bus.count("payments.status.changed") != 2 {
		t.Errorf("payments.status.changed events = %d, want 2 distinct outcomes", bus.count("payments.status.changed"))
	}
}

func TestUpdatePaymentStatus_UnknownIntent(t *testing.T) {
	svc := newService(newFakeRepo(), &fakeGateway{}, &recordingBus{})

	_, err := svc.UpdatePaymentStatus(context.Background(), "pi_missing", "succeeded", "ch_1")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestConfirmPayment_AppliesGatewayState(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{retrieveStatus: gateway.IntentSucceeded, retrieveTxn: "ch_sync"}
	bus := &recordingBus{}
	svc := newService(repo, gw, bus)

	row := processingRow()
	repo.put(row)
	if _, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID); err != nil {
		t.Fatalf("InitializePayment: %v", err)
	}

	resp, err := svc.ConfirmPayment(context.Background(), row.CitizenID,
		transport.ConfirmPaymentRequest{IntentID: "pi_test_1"})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if resp.PaymentState != "paid" {
		t.Errorf("paymentState = %q, want paid", resp.PaymentState)
	}
}

func TestConfirmPayment_PendingIntentLeavesRowAlone(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{retrieveStatus: gateway.IntentPending}
	svc := newService(repo, gw, &recordingBus{})

	row := processingRow()
	repo.put(row)
	if _, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID); err != nil {
		t.Fatalf("InitializePayment: %v", err)
	}

	resp, err := svc.ConfirmPayment(context.Background(), row.CitizenID,
		transport.ConfirmPaymentRequest{IntentID: "pi_test_1"})
	if err != nil {
		t.Fatalf("ConfirmPayment: %v", err)
	}
	if resp.PaymentState != "pending" {
		t.Errorf("paymentState = %q, want pending left as-is", resp.PaymentState)
	}
}

func TestReconcileStalePending_SettlesPendingIntents(t *testing.T) {
	repo := newFakeRepo()
	gw := &fakeGateway{retrieveStatus: gateway.IntentCanceled}
	bus := &recordingBus{}
	svc := newService(repo, gw, bus)

	row := processingRow()
	repo.put(row)
	if _, err := svc.InitializePayment(context.Background(), row.CitizenID, row.ID); err != nil {
		t.Fatalf("InitializePayment: %v", err)
	}

	settled, err := svc.ReconcileStalePending(context.Background(), 50)
	if err != nil {
		t.Fatalf("ReconcileStalePending: %v", err)
	}
	if settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}

	stored, _ := repo.GetByID(context.Background(), row.ID)
	if stored.PaymentStatus != "failed" || stored.PaymentState != "failed" {
		t.Errorf("payment = %s/%s, want failed/failed for canceled intent",
			stored.PaymentStatus, stored.PaymentState)
	}
}
