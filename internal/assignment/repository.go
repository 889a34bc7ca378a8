package assignment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Candidate is an active agent as seen by the selection pass. Count is the
// effective quota usage for the current calendar day.
type Candidate struct {
	ID       uuid.UUID
	MaxDaily int
	Count    int
}

// Store provides the two persistence operations the engine needs: a
// consistent candidate snapshot and an atomic quota reservation.
type Store interface {
	ListCandidates(ctx context.Context, communeID uuid.UUID) ([]Candidate, error)
	ReserveSlot(ctx context.Context, agentID uuid.UUID) (bool, error)
}

// PGStore implements Store with PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore creates a new assignment store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

// ListCandidates returns active agents of the commune with their effective
// daily counts. A counter last reset before today reads as zero; the reset
// itself is written only inside ReserveSlot.
func (s *PGStore) ListCandidates(ctx context.Context, communeID uuid.UUID) ([]Candidate, error) {
	query := `
		SELECT id, max_daily_requests,
			CASE WHEN last_request_count_reset::date < CURRENT_DATE
			THEN 0 ELSE daily_request_count END
		FROM users
		WHERE role = 'agent' AND commune_id = $1 AND is_active
		ORDER BY id ASC`

	rows, err := s.pool.Query(ctx, query, communeID)
	if err != nil {
		return nil, fmt.Errorf("list assignment candidates: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.MaxDaily, &c.Count); err != nil {
			return nil, fmt.Errorf("scan assignment candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment candidates: %w", err)
	}
	return candidates, nil
}

// ReserveSlot atomically increments the agent's daily counter if it is
// below the cap, folding in the calendar-day reset in the same statement.
// Returns false when the agent is already at capacity (or no longer an
// eligible agent), in which case nothing is written.
func (s *PGStore) ReserveSlot(ctx context.Context, agentID uuid.UUID) (bool, error) {
	query := `
		UPDATE users SET
			daily_request_count = CASE
				WHEN last_request_count_reset::date < CURRENT_DATE THEN 1
				ELSE daily_request_count + 1 END,
			last_request_count_reset = CASE
				WHEN last_request_count_reset::date < CURRENT_DATE THEN now()
				ELSE last_request_count_reset END,
			updated_at = now()
		WHERE id = $1 AND role = 'agent' AND is_active
			AND (CASE WHEN last_request_count_reset::date < CURRENT_DATE
				THEN 0 ELSE daily_request_count END) < max_daily_requests`

	result, err := s.pool.Exec(ctx, query, agentID)
	if err != nil {
		return false, fmt.Errorf("reserve assignment slot: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
