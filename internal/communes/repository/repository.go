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

const communeNotFoundMessage = "commune not found"

const communeColumns = `id, name, description, region, department, is_active,
		total_requests, completed_requests, pending_requests, created_at, updated_at`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new communes repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// GetByID retrieves a commune by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Commune, error) {
	query := `SELECT ` + communeColumns + ` FROM communes WHERE id = $1`

	c, err := scanCommune(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Commune{}, apperr.NotFound(communeNotFoundMessage)
		}
		return Commune{}, fmt.Errorf("get commune by id: %w", err)
	}
	return c, nil
}

// GetByName retrieves a commune by its unique name.
func (r *Repo) GetByName(ctx context.Context, name string) (Commune, error) {
	query := `SELECT ` + communeColumns + ` FROM communes WHERE name = $1`

	c, err := scanCommune(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Commune{}, apperr.NotFound(communeNotFoundMessage)
		}
		return Commune{}, fmt.Errorf("get commune by name: %w", err)
	}
	return c, nil
}

// List retrieves all communes ordered by name.
func (r *Repo) List(ctx context.Context) ([]Commune, error) {
	query := `SELECT ` + communeColumns + ` FROM communes ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list communes: %w", err)
	}
	defer rows.Close()

	return scanCommunes(rows)
}

// ListActive retrieves only active communes ordered by name.
func (r *Repo) ListActive(ctx context.Context) ([]Commune, error) {
	query := `SELECT ` + communeColumns + ` FROM communes WHERE is_active ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active communes: %w", err)
	}
	defer rows.Close()

	return scanCommunes(rows)
}

// Exists checks if a commune exists by ID.
func (r *Repo) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM communes WHERE id = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check commune exists: %w", err)
	}
	return exists, nil
}

// Create creates a new commune.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Commune, error) {
	query := `
		INSERT INTO communes (name, description, region, department)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + communeColumns

	c, err := scanCommune(r.pool.QueryRow(ctx, query,
		params.Name, params.Description, params.Region, params.Department))
	if err != nil {
		return Commune{}, fmt.Errorf("create commune: %w", err)
	}
	return c, nil
}

// Upsert creates a commune or refreshes region/department for an existing
// name. Used by the seed command so reruns are harmless.
func (r *Repo) Upsert(ctx context.Context, params CreateParams) (Commune, error) {
	query := `
		INSERT INTO communes (name, description, region, department)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			region = EXCLUDED.region,
			department = EXCLUDED.department,
			updated_at = now()
		RETURNING ` + communeColumns

	c, err := scanCommune(r.pool.QueryRow(ctx, query,
		params.Name, params.Description, params.Region, params.Department))
	if err != nil {
		return Commune{}, fmt.Errorf("upsert commune: %w", err)
	}
	return c, nil
}

// Update updates an existing commune.
func (r *Repo) Update(ctx context.Context, params UpdateParams) (Commune, error) {
	query := `
		UPDATE communes SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			region = COALESCE($4, region),
			department = COALESCE($5, department),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + communeColumns

	c, err := scanCommune(r.pool.QueryRow(ctx, query,
		params.ID, params.Name, params.Description, params.Region, params.Department))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Commune{}, apperr.NotFound(communeNotFoundMessage)
		}
		return Commune{}, fmt.Errorf("update commune: %w", err)
	}
	return c, nil
}

// SetActive sets the is_active flag for a commune.
func (r *Repo) SetActive(ctx context.Context, id uuid.UUID, isActive bool) error {
	query := `UPDATE communes SET is_active = $2, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, isActive)
	if err != nil {
		return fmt.Errorf("set commune active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(communeNotFoundMessage)
	}
	return nil
}

// IncrementRequestCounters bumps total and pending counts when a request
// is submitted for the commune.
func (r *Repo) IncrementRequestCounters(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE communes SET
			total_requests = total_requests + 1,
			pending_requests = pending_requests + 1,
			updated_at = now()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("increment commune counters: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(communeNotFoundMessage)
	}
	return nil
}

// MarkRequestCompleted moves one request from pending to completed.
func (r *Repo) MarkRequestCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE communes SET
			completed_requests = completed_requests + 1,
			pending_requests = GREATEST(pending_requests - 1, 0),
			updated_at = now()
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark commune request completed: %w", err)
	}
	return nil
}

// MarkRequestClosed decrements pending without counting a completion,
// used when a request is rejected.
func (r *Repo) MarkRequestClosed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE communes SET
			pending_requests = GREATEST(pending_requests - 1, 0),
			updated_at = now()
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark commune request closed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommune(row rowScanner) (Commune, error) {
	var c Commune
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &c.Region, &c.Department, &c.IsActive,
		&c.TotalRequests, &c.CompletedRequests, &c.PendingRequests, &createdAt, &updatedAt,
	)
	if err != nil {
		return Commune{}, err
	}

	c.CreatedAt = createdAt.Format(time.RFC3339)
	c.UpdatedAt = updatedAt.Format(time.RFC3339)
	return c, nil
}

func scanCommunes(rows pgx.Rows) ([]Commune, error) {
	var results []Commune

	for rows.Next() {
		c, err := scanCommune(rows)
		if err != nil {
			return nil, fmt.Errorf("scan commune: %w", err)
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate communes: %w", err)
	}
	return results, nil
}
