package ai

import "context"

// Gateway sends one extraction request to a model and returns its raw text answer.
//
// Implementations must be safe for concurrent use and must honor ctx: once ctx ends
// they return promptly. Transport failures are reported by wrapping ErrTimeout,
// ErrRateLimited or ErrUnavailable; any other error is treated as unavailable by callers.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
}
