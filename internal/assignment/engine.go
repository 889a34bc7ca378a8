// Package assignment implements agent selection for incoming requests:
// least-loaded active agent of the commune, bounded by per-agent daily
// quotas that roll over at local midnight.
package assignment

import (
	"bytes"
	"context"

	"github.com/google/uuid"

	"civildocs_backend/platform/logger"
)

// reserveAttempts bounds the pick-then-reserve retry loop. Concurrent
// submissions can race a candidate to capacity between the snapshot and
// the reservation; each retry re-reads the snapshot.
const reserveAttempts = 3

// Engine selects and reserves agents for requests.
type Engine struct {
	store Store
	log   *logger.Logger
}

// NewEngine creates a new assignment engine.
func NewEngine(store Store, log *logger.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// FindAvailableAgent returns the least-loaded eligible agent of the
// commune without reserving a slot. ErrNoAgent when the commune has no
// active agents; ErrQuotaExhausted when all are at capacity.
func (e *Engine) FindAvailableAgent(ctx context.Context, communeID uuid.UUID) (uuid.UUID, error) {
	candidates, err := e.store.ListCandidates(ctx, communeID)
	if err != nil {
		return uuid.Nil, err
	}

	chosen, err := pick(candidates, uuid.Nil)
	if err != nil {
		return uuid.Nil, err
	}
	return chosen, nil
}

// AssignRequest reserves a quota slot on the best available agent and
// returns its ID. The reservation is atomic: under concurrent submissions
// an agent's daily count never exceeds its cap.
func (e *Engine) AssignRequest(ctx context.Context, communeID uuid.UUID) (uuid.UUID, error) {
	return e.assign(ctx, communeID, uuid.Nil)
}

// ReassignRequest reserves a slot on the best agent other than current.
// The previous agent keeps its counted slot; reassignment only adds load
// to the receiving agent. ErrNoAlternateAgent when nobody else is eligible.
func (e *Engine) ReassignRequest(ctx context.Context, communeID, current uuid.UUID) (uuid.UUID, error) {
	agentID, err := e.assign(ctx, communeID, current)
	if err == ErrNoAgent || err == ErrQuotaExhausted {
		return uuid.Nil, ErrNoAlternateAgent
	}
	return agentID, err
}

func (e *Engine) assign(ctx context.Context, communeID, exclude uuid.UUID) (uuid.UUID, error) {
	for attempt := 1; attempt <= reserveAttempts; attempt++ {
		candidates, err := e.store.ListCandidates(ctx, communeID)
		if err != nil {
			return uuid.Nil, err
		}

		chosen, err := pick(candidates, exclude)
		if err != nil {
			return uuid.Nil, err
		}

		ok, err := e.store.ReserveSlot(ctx, chosen)
		if err != nil {
			return uuid.Nil, err
		}
		if ok {
			if attempt > 1 {
				e.log.Info("assignment reserved after retry", "agentId", chosen, "attempt", attempt)
			}
			return chosen, nil
		}

		// Lost the race for this candidate's last slot; re-read and retry.
		e.log.Warn("assignment slot race lost", "agentId", chosen, "attempt", attempt)
	}

	return uuid.Nil, ErrQuotaExhausted
}

// pick applies the selection rule to a candidate snapshot: drop the
// excluded agent, drop saturated agents, choose the lowest count and break
// ties toward the smaller UUID so concurrent snapshots converge.
func pick(candidates []Candidate, exclude uuid.UUID) (uuid.UUID, error) {
	anyActive := false
	chosen := uuid.Nil
	best := Candidate{}

	for _, c := range candidates {
		if c.ID == exclude {
			continue
		}
		anyActive = true
		if c.Count >= c.MaxDaily {
			continue
		}
		if chosen == uuid.Nil || c.Count < best.Count ||
			(c.Count == best.Count && bytes.Compare(c.ID[:], best.ID[:]) < 0) {
			chosen = c.ID
			best = c
		}
	}

	if !anyActive {
		return uuid.Nil, ErrNoAgent
	}
	if chosen == uuid.Nil {
		return uuid.Nil, ErrQuotaExhausted
	}
	return chosen, nil
}
