package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/jobstream/ai"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/retry"
)

const (
	// DefaultCallTimeout bounds a single model call.
	DefaultCallTimeout = 60 * time.Second

	// DefaultMaxInputRunes caps the text sent to the model.
	DefaultMaxInputRunes = 24000
)

// Client extracts structured records from raw text. It is safe for concurrent use.
type Client struct {
	gateway       ai.Gateway
	policy        retry.Policy
	callTimeout   time.Duration
	maxInputRunes int
	logger        *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) error {
		if policy.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		c.policy = policy
		return nil
	}
}

// WithMaxAttempts keeps the default backoff and changes only the attempt count.
func WithMaxAttempts(attempts int) Option {
	return func(c *Client) error {
		if attempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		c.policy.MaxAttempts = attempts
		return nil
	}
}

// WithCallTimeout bounds each model call. A call still running when it expires is
// abandoned and counts as a timed out attempt.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("call timeout must be positive, got %s", timeout)
		}
		c.callTimeout = timeout
		return nil
	}
}

// WithMaxInputRunes caps the normalized input length. Zero disables the cap.
func WithMaxInputRunes(limit int) Option {
	return func(c *Client) error {
		if limit < 0 {
			return fmt.Errorf("input limit must not be negative, got %d", limit)
		}
		c.maxInputRunes = limit
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// NewClient creates a client over gateway.
func NewClient(gateway ai.Gateway, opts ...Option) (*Client, error) {
	if gateway == nil {
		return nil, ErrGatewayRequired
	}
	c := &Client{
		gateway:       gateway,
		policy:        retry.DefaultPolicy(),
		callTimeout:   DefaultCallTimeout,
		maxInputRunes: DefaultMaxInputRunes,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "extraction")
	return c, nil
}

// ExtractJob extracts a job posting. The title is required; everything else is optional.
func (c *Client) ExtractJob(ctx context.Context, raw string) (*core.ExtractedJobData, error) {
	return extract(ctx, c, ai.SchemaJob, raw, func(data *core.ExtractedJobData) error {
		data.Title = core.CollapseSpace(data.Title)
		return data.Validate()
	})
}

// ExtractResume extracts a résumé. The person's name is required.
func (c *Client) ExtractResume(ctx context.Context, raw string) (*core.ExtractedResumeData, error) {
	return extract(ctx, c, ai.SchemaResume, raw, (*core.ExtractedResumeData).Validate)
}

// extract runs the retry loop. Each attempt decodes into a fresh record; a record that
// fails validate is never retried.
func extract[T any](ctx context.Context, c *Client, schema ai.Schema, raw string, validate func(*T) error) (*T, error) {
	text := truncateRunes(NormalizeText(raw), c.maxInputRunes)
	if text == "" {
		return nil, &Error{Kind: ErrInvalidSchema, Err: errEmptyInput}
	}
	req := ai.Request{Schema: schema, Text: text}

	var result *T
	start := time.Now()
	attempts, err := retry.Do(ctx, c.policy, isRetryable, func(ctx context.Context, attempt int) error {
		answer, err := c.call(ctx, req)
		if err != nil {
			c.logger.Warn("model call failed", "schema", schema, "attempt", attempt, "err", err)
			return err
		}
		data := new(T)
		if err := decodeResponse(answer, data); err != nil {
			c.logger.Warn("model response rejected", "schema", schema, "attempt", attempt,
				"err", err, "response", ai.TruncateForLog(answer, 200))
			return err
		}
		if err := validate(data); err != nil {
			return &attemptError{kind: ErrInvalidSchema, err: err}
		}
		result = data
		return nil
	})
	if err == nil {
		c.logger.Debug("extracted", "schema", schema, "attempts", attempts, "elapsed", time.Since(start))
		return result, nil
	}

	var failed *attemptError
	switch {
	case errors.As(err, &failed):
		return nil, &Error{Kind: failed.kind, Attempts: attempts, Err: failed.err}
	case errors.Is(err, context.DeadlineExceeded):
		return nil, &Error{Kind: ErrTimeout, Attempts: attempts, Err: err}
	case errors.Is(err, context.Canceled):
		return nil, fmt.Errorf("extraction canceled after %d attempt(s): %w", attempts, err)
	default:
		return nil, &Error{Kind: ErrUpstreamUnavailable, Attempts: attempts, Err: err}
	}
}

// call makes one gateway call under the call timeout. The gateway runs on its own
// goroutine so a call that ignores its context is abandoned instead of blocking the loop.
func (c *Client) call(ctx context.Context, req ai.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	type answer struct {
		text string
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		text, err := c.gateway.Complete(callCtx, req)
		done <- answer{text: text, err: err}
	}()

	select {
	case a := <-done:
		if a.err != nil {
			return "", classify(ctx, callCtx, a.err)
		}
		return a.text, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", &attemptError{kind: ErrTimeout, err: fmt.Errorf("no answer within %s", c.callTimeout)}
	}
}

// classify maps a gateway error to an attempt error. Errors from an ended parent
// context pass through unchanged so the retry loop stops.
func classify(parent, callCtx context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	switch {
	case errors.Is(err, ai.ErrRateLimited):
		return &attemptError{kind: ErrRateLimited, err: err}
	case errors.Is(err, ai.ErrTimeout), errors.Is(err, context.DeadlineExceeded), callCtx.Err() != nil:
		return &attemptError{kind: ErrTimeout, err: err}
	case errors.Is(err, ai.ErrEmptyResponse), errors.Is(err, ai.ErrUnknownSchema):
		return &attemptError{kind: ErrInvalidSchema, err: err}
	default:
		return &attemptError{kind: ErrUpstreamUnavailable, err: err}
	}
}

func isRetryable(err error) bool {
	var failed *attemptError
	return errors.As(err, &failed) && isTransient(failed.kind) && !errors.Is(failed.err, ai.ErrRejected)
}
