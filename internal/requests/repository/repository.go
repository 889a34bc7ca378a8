package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"civildocs_backend/platform/apperr"
)

const (
	requestNotFoundMessage = "request not found"
	versionConflictMessage = "request was modified concurrently"
	uniqueViolationSQLErr  = "23505"
)

const requestColumns = `id, citizen_id, agent_id, commune_id, document_type, status,
		full_name, birth_date, birth_place, father_name, mother_name, phone_number, address,
		death_date, death_place, death_cause, declarant_name, declarant_relation,
		delivery_method, document_price, delivery_fee, total_price,
		payment_status, payment_state, payment_amount, payment_method, payment_date,
		payment_transaction_id, payment_intent_id,
		identity_document_url, document_url,
		submitted_at, processed_at, completed_at, rejected_at, rejection_reason,
		version, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new requests repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create inserts a new request with its frozen price breakdown.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Request, error) {
	query := `
		INSERT INTO requests (citizen_id, agent_id, commune_id, document_type,
			full_name, birth_date, birth_place, father_name, mother_name, phone_number, address,
			death_date, death_place, death_cause, declarant_name, declarant_relation,
			delivery_method, document_price, delivery_fee, total_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20)
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query,
		params.CitizenID, params.AgentID, params.CommuneID, params.DocumentType,
		params.FullName, params.BirthDate, params.BirthPlace, params.FatherName,
		params.MotherName, params.PhoneNumber, params.Address,
		params.DeathDate, params.DeathPlace, params.DeathCause,
		params.DeclarantName, params.DeclarantRelation,
		params.DeliveryMethod, params.DocumentPrice, params.DeliveryFee, params.TotalPrice))
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// GetByID retrieves a request by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, apperr.NotFound(requestNotFoundMessage)
		}
		return Request{}, fmt.Errorf("get request by id: %w", err)
	}
	return req, nil
}

// ListByCitizen retrieves a citizen's own requests, newest first.
func (r *Repo) ListByCitizen(ctx context.Context, citizenID uuid.UUID, params ListParams) ([]Request, int, error) {
	return r.list(ctx, `citizen_id = $1`, citizenID, params)
}

// ListByAgent retrieves requests assigned to an agent, newest first.
func (r *Repo) ListByAgent(ctx context.Context, agentID uuid.UUID, params ListParams) ([]Request, int, error) {
	return r.list(ctx, `agent_id = $1`, agentID, params)
}

// ListAll retrieves requests across the platform (admin view).
func (r *Repo) ListAll(ctx context.Context, params ListParams) ([]Request, int, error) {
	// The scope placeholder is matched against commune when set, or
	// disabled entirely with NULL.
	var communeID interface{}
	if params.CommuneID != nil {
		communeID = *params.CommuneID
	}
	return r.list(ctx, `($1::uuid IS NULL OR commune_id = $1)`, communeID, params)
}

func (r *Repo) list(ctx context.Context, scope string, scopeArg interface{}, params ListParams) ([]Request, int, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	var statusParam, typeParam interface{}
	if params.Status != nil {
		statusParam = *params.Status
	}
	if params.DocumentType != nil {
		typeParam = *params.DocumentType
	}

	filter := ` WHERE ` + scope + `
		AND ($2::text IS NULL OR status = $2)
		AND ($3::text IS NULL OR document_type = $3)`

	var total int
	countQuery := `SELECT COUNT(*) FROM requests` + filter
	if err := r.pool.QueryRow(ctx, countQuery, scopeArg, statusParam, typeParam).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}

	query := `SELECT ` + requestColumns + ` FROM requests` + filter + `
		ORDER BY submitted_at DESC
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query, scopeArg, statusParam, typeParam, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	items, err := scanRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateDetails edits applicant fields under a version check. Nil params
// keep their current value.
func (r *Repo) UpdateDetails(ctx context.Context, params UpdateDetailsParams) (Request, error) {
	query := `
		UPDATE requests SET
			full_name = COALESCE($3, full_name),
			birth_date = COALESCE($4::date, birth_date),
			birth_place = COALESCE($5, birth_place),
			father_name = COALESCE($6, father_name),
			mother_name = COALESCE($7, mother_name),
			phone_number = COALESCE($8, phone_number),
			address = COALESCE($9, address),
			death_date = COALESCE($10::date, death_date),
			death_place = COALESCE($11, death_place),
			death_cause = COALESCE($12, death_cause),
			declarant_name = COALESCE($13, declarant_name),
			declarant_relation = COALESCE($14, declarant_relation),
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query,
		params.ID, params.Version,
		params.FullName, params.BirthDate, params.BirthPlace, params.FatherName,
		params.MotherName, params.PhoneNumber, params.Address,
		params.DeathDate, params.DeathPlace, params.DeathCause,
		params.DeclarantName, params.DeclarantRelation))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, r.classifyMiss(ctx, params.ID)
		}
		return Request{}, fmt.Errorf("update request details: %w", err)
	}
	return req, nil
}

// UpdateStatus applies a version-checked lifecycle transition. Tracking
// timestamps are first-write-wins: a timestamp already set is never
// overwritten. Returns a conflict error when the row moved underneath the
// caller's version.
func (r *Repo) UpdateStatus(ctx context.Context, params UpdateStatusParams) (Request, error) {
	query := `
		UPDATE requests SET
			status = $3,
			processed_at = CASE WHEN $3 = 'processing' THEN COALESCE(processed_at, now()) ELSE processed_at END,
			completed_at = CASE WHEN $3 = 'completed' THEN COALESCE(completed_at, now()) ELSE completed_at END,
			rejected_at = CASE WHEN $3 = 'rejected' THEN COALESCE(rejected_at, now()) ELSE rejected_at END,
			rejection_reason = CASE WHEN $3 = 'rejected' THEN COALESCE(rejection_reason, $4) ELSE rejection_reason END,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $2
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query,
		params.ID, params.Version, params.NewStatus, params.RejectionReason))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, r.classifyMiss(ctx, params.ID)
		}
		return Request{}, fmt.Errorf("update request status: %w", err)
	}
	return req, nil
}

// classifyMiss distinguishes a stale version from a missing row.
func (r *Repo) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("classify update miss: %w", err)
	}
	if exists {
		return apperr.Conflict(versionConflictMessage)
	}
	return apperr.NotFound(requestNotFoundMessage)
}

// AssignAgent binds the request to an agent. Quota accounting happens in
// the assignment store before this is called.
func (r *Repo) AssignAgent(ctx context.Context, id uuid.UUID, agentID uuid.UUID) (Request, error) {
	query := `
		UPDATE requests SET agent_id = $2, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING ` + requestColumns

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id, agentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, apperr.NotFound(requestNotFoundMessage)
		}
		return Request{}, fmt.Errorf("assign request agent: %w", err)
	}
	return req, nil
}

// SetIdentityDocument records the storage key of the uploaded identity proof.
func (r *Repo) SetIdentityDocument(ctx context.Context, id uuid.UUID, fileKey string) error {
	return r.setFileColumn(ctx, id, "identity_document_url", fileKey)
}

// SetDocumentURL records the storage key of the generated certificate.
func (r *Repo) SetDocumentURL(ctx context.Context, id uuid.UUID, fileKey string) error {
	return r.setFileColumn(ctx, id, "document_url", fileKey)
}

func (r *Repo) setFileColumn(ctx context.Context, id uuid.UUID, column, fileKey string) error {
	query := `UPDATE requests SET ` + column + ` = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, fileKey)
	if err != nil {
		return fmt.Errorf("set request %s: %w", column, err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMessage)
	}
	return nil
}

// Delete removes a request. Notes cascade; notification references are
// detached by the schema.
func (r *Repo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(requestNotFoundMessage)
	}
	return nil
}

// AddNote appends a processing note with the next sequence number. The
// unique (request_id, seq) constraint makes the sequence monotonic even
// under concurrent writers; lost races retry with a fresh number.
func (r *Repo) AddNote(ctx context.Context, requestID, authorID uuid.UUID, content string) (Note, error) {
	query := `
		INSERT INTO request_notes (request_id, seq, content, author_id)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2, $3
		FROM request_notes WHERE request_id = $1
		RETURNING id, request_id, seq, content, author_id, created_at`

	for attempt := 0; attempt < 3; attempt++ {
		var n Note
		var createdAt time.Time
		err := r.pool.QueryRow(ctx, query, requestID, content, authorID).Scan(
			&n.ID, &n.RequestID, &n.Seq, &n.Content, &n.AuthorID, &createdAt,
		)
		if err == nil {
			n.CreatedAt = createdAt.Format(time.RFC3339)
			return n, nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQLErr {
			continue
		}
		return Note{}, fmt.Errorf("add request note: %w", err)
	}
	return Note{}, apperr.Conflict("could not append note, please retry")
}

// ListNotes retrieves all notes of a request in insertion order.
func (r *Repo) ListNotes(ctx context.Context, requestID uuid.UUID) ([]Note, error) {
	query := `
		SELECT id, request_id, seq, content, author_id, created_at
		FROM request_notes WHERE request_id = $1
		ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("list request notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		var createdAt time.Time
		if err := rows.Scan(&n.ID, &n.RequestID, &n.Seq, &n.Content, &n.AuthorID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan request note: %w", err)
		}
		n.CreatedAt = createdAt.Format(time.RFC3339)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request notes: %w", err)
	}
	return notes, nil
}

// StatsForCitizen aggregates a citizen's requests per status.
func (r *Repo) StatsForCitizen(ctx context.Context, citizenID uuid.UUID) (StatusCounts, error) {
	return r.stats(ctx, `citizen_id = $1`, citizenID)
}

// StatsForAgent aggregates an agent's assigned requests per status.
func (r *Repo) StatsForAgent(ctx context.Context, agentID uuid.UUID) (StatusCounts, error) {
	return r.stats(ctx, `agent_id = $1`, agentID)
}

// StatsGlobal aggregates all requests, optionally scoped to one commune.
func (r *Repo) StatsGlobal(ctx context.Context, communeID *uuid.UUID) (StatusCounts, error) {
	var arg interface{}
	if communeID != nil {
		arg = *communeID
	}
	return r.stats(ctx, `($1::uuid IS NULL OR commune_id = $1)`, arg)
}

func (r *Repo) stats(ctx context.Context, scope string, scopeArg interface{}) (StatusCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'rejected'),
			COALESCE(SUM(payment_amount) FILTER (WHERE payment_state = 'paid'), 0)
		FROM requests WHERE ` + scope

	var s StatusCounts
	err := r.pool.QueryRow(ctx, query, scopeArg).Scan(
		&s.Total, &s.Pending, &s.Processing, &s.Completed, &s.Rejected, &s.PaidAmount,
	)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("request stats: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (Request, error) {
	var req Request
	var birthDate time.Time
	var deathDate, paymentDate, processedAt, completedAt, rejectedAt *time.Time
	var submittedAt, createdAt, updatedAt time.Time

	err := row.Scan(
		&req.ID, &req.CitizenID, &req.AgentID, &req.CommuneID, &req.DocumentType, &req.Status,
		&req.FullName, &birthDate, &req.BirthPlace, &req.FatherName, &req.MotherName,
		&req.PhoneNumber, &req.Address,
		&deathDate, &req.DeathPlace, &req.DeathCause, &req.DeclarantName, &req.DeclarantRelation,
		&req.DeliveryMethod, &req.DocumentPrice, &req.DeliveryFee, &req.TotalPrice,
		&req.PaymentStatus, &req.PaymentState, &req.PaymentAmount, &req.PaymentMethod, &paymentDate,
		&req.PaymentTransactionID, &req.PaymentIntentID,
		&req.IdentityDocumentURL, &req.DocumentURL,
		&submittedAt, &processedAt, &completedAt, &rejectedAt, &req.RejectionReason,
		&req.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return Request{}, err
	}

	req.BirthDate = birthDate.Format("2006-01-02")
	req.DeathDate = formatDatePtr(deathDate)
	req.PaymentDate = formatTimePtr(paymentDate)
	req.SubmittedAt = submittedAt.Format(time.RFC3339)
	req.ProcessedAt = formatTimePtr(processedAt)
	req.CompletedAt = formatTimePtr(completedAt)
	req.RejectedAt = formatTimePtr(rejectedAt)
	req.CreatedAt = createdAt.Format(time.RFC3339)
	req.UpdatedAt = updatedAt.Format(time.RFC3339)
	return req, nil
}

func scanRequests(rows pgx.Rows) ([]Request, error) {
	var results []Request

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		results = append(results, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return results, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
