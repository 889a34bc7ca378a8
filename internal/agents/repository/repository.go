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
	agentNotFoundMessage  = "agent not found"
	emailInUseMessage     = "email already registered"
	uniqueViolationSQLErr = "23505"
)

const agentColumns = `id, first_name, last_name, email, phone_number, commune_id,
		max_daily_requests, daily_request_count, last_request_count_reset, is_active, created_at`

// effectiveCountExpr yields the quota count as observed today. A counter
// last reset on a previous calendar day reads as zero without a write.
const effectiveCountExpr = `
	CASE WHEN last_request_count_reset::date < CURRENT_DATE
	THEN 0 ELSE daily_request_count END`

// Repo implements the Repository interface with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new agent directory repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository.
var _ Repository = (*Repo)(nil)

// Create provisions an agent account.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Agent, error) {
	query := `
		INSERT INTO users (first_name, last_name, email, password_hash, role,
			phone_number, commune_id, max_daily_requests)
		VALUES ($1, $2, $3, $4, 'agent', $5, $6, $7)
		RETURNING ` + agentColumns

	a, err := scanAgent(r.pool.QueryRow(ctx, query,
		params.FirstName, params.LastName, params.Email, params.PasswordHash,
		params.PhoneNumber, params.CommuneID, params.MaxDailyRequests))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationSQLErr {
			return Agent{}, apperr.Conflict(emailInUseMessage)
		}
		return Agent{}, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

// GetByID retrieves an agent by ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM users WHERE id = $1 AND role = 'agent'`

	a, err := scanAgent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agent{}, apperr.NotFound(agentNotFoundMessage)
		}
		return Agent{}, fmt.Errorf("get agent by id: %w", err)
	}
	return a, nil
}

// List retrieves all agents ordered by name.
func (r *Repo) List(ctx context.Context) ([]Agent, error) {
	query := `SELECT ` + agentColumns + `
		FROM users WHERE role = 'agent'
		ORDER BY last_name ASC, first_name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	return scanAgents(rows)
}

// ListByCommune retrieves all agents of one commune.
func (r *Repo) ListByCommune(ctx context.Context, communeID uuid.UUID) ([]Agent, error) {
	query := `SELECT ` + agentColumns + `
		FROM users WHERE role = 'agent' AND commune_id = $1
		ORDER BY last_name ASC, first_name ASC`

	rows, err := r.pool.Query(ctx, query, communeID)
	if err != nil {
		return nil, fmt.Errorf("list agents by commune: %w", err)
	}
	defer rows.Close()

	return scanAgents(rows)
}

// Update updates mutable agent fields, including quota size and commune.
func (r *Repo) Update(ctx context.Context, params UpdateParams) (Agent, error) {
	query := `
		UPDATE users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			phone_number = COALESCE($4, phone_number),
			commune_id = COALESCE($5, commune_id),
			max_daily_requests = COALESCE($6, max_daily_requests),
			updated_at = now()
		WHERE id = $1 AND role = 'agent'
		RETURNING ` + agentColumns

	a, err := scanAgent(r.pool.QueryRow(ctx, query,
		params.ID, params.FirstName, params.LastName, params.PhoneNumber,
		params.CommuneID, params.MaxDailyRequests))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agent{}, apperr.NotFound(agentNotFoundMessage)
		}
		return Agent{}, fmt.Errorf("update agent: %w", err)
	}
	return a, nil
}

// SetActive activates or deactivates an agent account. Inactive agents
// never receive new assignments; existing assignments stay in place.
func (r *Repo) SetActive(ctx context.Context, id uuid.UUID, isActive bool) error {
	query := `UPDATE users SET is_active = $2, updated_at = now()
		WHERE id = $1 AND role = 'agent'`

	result, err := r.pool.Exec(ctx, query, id, isActive)
	if err != nil {
		return fmt.Errorf("set agent active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(agentNotFoundMessage)
	}
	return nil
}

// StatsByCommune aggregates quota load for one commune's active agents.
func (r *Repo) StatsByCommune(ctx context.Context, communeID uuid.UUID) (CommuneAgentStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(max_daily_requests), 0),
			COALESCE(SUM(` + effectiveCountExpr + `), 0),
			COUNT(*) FILTER (WHERE ` + effectiveCountExpr + ` >= max_daily_requests)
		FROM users
		WHERE role = 'agent' AND commune_id = $1 AND is_active`

	stats := CommuneAgentStats{CommuneID: communeID}
	err := r.pool.QueryRow(ctx, query, communeID).Scan(
		&stats.ActiveAgents, &stats.TotalCapacity, &stats.AssignedToday, &stats.SaturatedCount,
	)
	if err != nil {
		return CommuneAgentStats{}, fmt.Errorf("commune agent stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var a Agent
	var lastReset, createdAt time.Time

	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PhoneNumber, &a.CommuneID,
		&a.MaxDailyRequests, &a.DailyRequestCount, &lastReset, &a.IsActive, &createdAt,
	)
	if err != nil {
		return Agent{}, err
	}

	a.LastRequestCountReset = lastReset.Format(time.RFC3339)
	a.CreatedAt = createdAt.Format(time.RFC3339)
	return a, nil
}

func scanAgents(rows pgx.Rows) ([]Agent, error) {
	var results []Agent

	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return results, nil
}
