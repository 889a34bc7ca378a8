package assignment

import "errors"

var (
	// ErrNoAgent means the commune has no active agents at all.
	ErrNoAgent = errors.New("no active agent in commune")
	// ErrQuotaExhausted means every active agent has reached its daily cap.
	ErrQuotaExhausted = errors.New("all agents have exhausted their daily quota")
	// ErrNoAlternateAgent means reassignment found no eligible agent other
	// than the one currently holding the request.
	ErrNoAlternateAgent = errors.New("no alternate agent available")
)
