package ai

import "errors"

var (
	// ErrTimeout indicates the model did not answer in time.
	ErrTimeout = errors.New("model call timed out")

	// ErrRateLimited indicates the provider refused the call because of quota or rate limits.
	ErrRateLimited = errors.New("model call rate limited")

	// ErrUnavailable indicates the provider could not be reached or failed internally.
	ErrUnavailable = errors.New("model unavailable")

	// ErrRejected indicates the provider refused the request itself, e.g. bad
	// credentials, an unknown model or a malformed call. Repeating it cannot succeed.
	ErrRejected = errors.New("model rejected the request")

	// ErrEmptyResponse indicates the provider answered without any text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrUnknownSchema indicates a request for a schema no prompt exists for.
	ErrUnknownSchema = errors.New("unknown extraction schema")

	// ErrUnknownProvider indicates a configuration naming an unsupported provider.
	ErrUnknownProvider = errors.New("unknown ai provider")
)
