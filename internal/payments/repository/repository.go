// Package repository provides the payment coordinator's view of the
// requests table: the payment columns plus the identifiers needed for
// guards and notifications.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"civildocs_backend/platform/apperr"
)

const requestNotFoundMessage = "request not found"

// PaymentRow is the payment-relevant slice of a request.
type PaymentRow struct {
	ID           uuid.UUID `db:"id"`
	CitizenID    uuid.UUID `db:"citizen_id"`
	Status       string    `db:"status"`
	DocumentType string    `db:"document_type"`
	TotalPrice   int64     `db:"total_price"`

	PaymentStatus        string  `db:"payment_status"`
	PaymentState         string  `db:"payment_state"`
	PaymentAmount        *int64  `db:"payment_amount"`
	PaymentMethod        *string `db:"payment_method"`
	PaymentDate          *string `db:"payment_date"`
	PaymentTransactionID *string `db:"payment_transaction_id"`
	PaymentIntentID      *string `db:"payment_intent_id"`
}

// ApplyOutcomeParams carries a gateway outcome onto a request.
type ApplyOutcomeParams struct {
	IntentID      string
	PaymentStatus string
	PaymentState  string
	TransactionID string
}

// Repository provides the payment operations on requests.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (PaymentRow, error)
	GetByIntentID(ctx context.Context, intentID string) (PaymentRow, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	// ApplyOutcome stamps a gateway outcome. It reports false without
	// touching the row when the same outcome was already applied, so
	// duplicate gateway callbacks stay no-ops.
	ApplyOutcome(ctx context.Context, params ApplyOutcomeParams) (PaymentRow, bool, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]PaymentRow, error)
}

const paymentColumns = `id, citizen_id, status, document_type, total_price,
		payment_status, payment_state, payment_amount, payment_method, payment_date,
		payment_transaction_id, payment_intent_id`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new payments repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves the payment view of a request.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (PaymentRow, error) {
	query := `SELECT ` + paymentColumns + ` FROM requests WHERE id = $1`

	row, err := scanPaymentRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRow{}, apperr.NotFound(requestNotFoundMessage)
		}
		return PaymentRow{}, fmt.Errorf("get payment row by id: %w", err)
	}
	return row, nil
}

// GetByIntentID resolves a request from the gateway's intent reference.
func (r *Repo) GetByIntentID(ctx context.Context, intentID string) (PaymentRow, error) {
	query := `SELECT ` + paymentColumns + ` FROM requests WHERE payment_intent_id = $1`

	row, err := scanPaymentRow(r.pool.QueryRow(ctx, query, intentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PaymentRow{}, apperr.NotFound("no request matches this payment intent")
		}
		return PaymentRow{}, fmt.Errorf("get payment row by intent: %w", err)
	}
	return row, nil
}

// SetPaymentIntent records the gateway reference and a pending payment
// record in one statement, so an intent id is never visible without its
// pending state.
func (r *Repo) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	query := `
		UPDATE requests
		SET payment_intent_id = $2,
			payment_status = 'pending',
			payment_state = 'pending',
			payment_method = 'gateway',
			updated_at = now()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, intentID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMessage)
	}
	return nil
}

// ApplyOutcome stamps a gateway outcome onto the request identified by the
// intent reference. The guard makes a repeat of the already-applied status
// match zero rows; the follow-up read distinguishes that duplicate from an
// unknown intent.
func (r *Repo) ApplyOutcome(ctx context.Context, params ApplyOutcomeParams) (PaymentRow, bool, error) {
	query := `
		UPDATE requests
		SET payment_status = $2,
			payment_state = $3,
			payment_amount = total_price,
			payment_transaction_id = $4,
			payment_date = now(),
			updated_at = now()
		WHERE payment_intent_id = $1
		  AND payment_status IS DISTINCT FROM $2
		RETURNING ` + paymentColumns

	row, err := scanPaymentRow(r.pool.QueryRow(ctx, query,
		params.IntentID, params.PaymentStatus, params.PaymentState, params.TransactionID))
	if err == nil {
		return row, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PaymentRow{}, false, fmt.Errorf("apply payment outcome: %w", err)
	}

	current, err := r.GetByIntentID(ctx, params.IntentID)
	if err != nil {
		return PaymentRow{}, false, err
	}
	return current, false, nil
}

// ListStalePending returns requests whose payment intent has sat pending
// longer than the given age. Used by the reconcile job.
func (r *Repo) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]PaymentRow, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM requests
		WHERE payment_intent_id IS NOT NULL
		  AND payment_status = 'pending'
		  AND updated_at < now() - $1::interval
		ORDER BY updated_at ASC
		LIMIT $2`

	interval := fmt.Sprintf("%d seconds", int(olderThan.Seconds()))
	rows, err := r.pool.Query(ctx, query, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale pending payments: %w", err)
	}
	defer rows.Close()

	var out []PaymentRow
	for rows.Next() {
		row, err := scanPaymentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale pending payment: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaymentRow(row rowScanner) (PaymentRow, error) {
	var p PaymentRow
	var paymentDate *time.Time

	err := row.Scan(
		&p.ID, &p.CitizenID, &p.Status, &p.DocumentType, &p.TotalPrice,
		&p.PaymentStatus, &p.PaymentState, &p.PaymentAmount, &p.PaymentMethod, &paymentDate,
		&p.PaymentTransactionID, &p.PaymentIntentID,
	)
	if err != nil {
		return PaymentRow{}, err
	}
	if paymentDate != nil {
		formatted := paymentDate.Format(time.RFC3339)
		p.PaymentDate = &formatted
	}
	return p, nil
}
