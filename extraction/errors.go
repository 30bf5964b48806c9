package extraction

import (
	"errors"
	"fmt"

	"github.com/poiesic/jobstream/ai"
)

// Error kinds. Every *Error carries exactly one of them and matches it with errors.Is.
var (
	// ErrTimeout indicates the model did not answer within the call timeout.
	ErrTimeout = errors.New("extraction timed out")

	// ErrInvalidSchema indicates empty input or a response that does not match the
	// expected record shape. Never retried.
	ErrInvalidSchema = errors.New("extraction response does not match schema")

	// ErrUpstreamUnavailable indicates the model could not be reached or failed.
	ErrUpstreamUnavailable = errors.New("extraction service unavailable")

	// ErrRateLimited indicates the model provider refused the call because of quota.
	ErrRateLimited = errors.New("extraction service rate limited")
)

var (
	// ErrGatewayRequired is returned when a gateway is not provided.
	ErrGatewayRequired = errors.New("ai gateway required")

	errEmptyInput = errors.New("input is empty after normalization")
)

// Error is the failure of one extraction, after all attempts.
type Error struct {
	// Kind is one of ErrTimeout, ErrInvalidSchema, ErrUpstreamUnavailable, ErrRateLimited.
	Kind error
	// Attempts is the number of model calls made; zero when the input was rejected upfront.
	Attempts int
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v after %d attempt(s): %v", e.Kind, e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Retryable reports whether the kind is transient and the upstream did not reject the
// request outright.
func (e *Error) Retryable() bool {
	return isTransient(e.Kind) && !errors.Is(e.Err, ai.ErrRejected)
}

func isTransient(kind error) bool {
	return kind == ErrTimeout || kind == ErrUpstreamUnavailable || kind == ErrRateLimited
}

// KindOf returns the kind of an extraction failure, or nil if err is not one.
func KindOf(err error) error {
	var extractionErr *Error
	if errors.As(err, &extractionErr) {
		return extractionErr.Kind
	}
	return nil
}

// attemptError is the failure of a single call, classified for the retry loop.
type attemptError struct {
	kind error
	err  error
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }
