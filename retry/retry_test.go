package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary error")

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
}

func TestDo_Success(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), nil, func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls, "should succeed on first try")
}

func TestDo_EventualSuccess(t *testing.T) {
	attempts, err := Do(context.Background(), fastPolicy(5), nil, func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return errTemporary
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestDo_AllAttemptsFail(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastPolicy(3), nil, func(ctx context.Context, attempt int) error {
		calls++
		return errTemporary
	})
	assert.Equal(t, errTemporary, err, "should return the original error")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls, "should attempt exactly MaxAttempts times")
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	permanent := errors.New("bad input")
	calls := 0
	retryable := func(err error) bool { return errors.Is(err, errTemporary) }

	attempts, err := Do(context.Background(), fastPolicy(5), retryable, func(ctx context.Context, attempt int) error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, fastPolicy(10), nil, func(ctx context.Context, attempt int) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errTemporary
	})
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.Equal(t, 2, calls, "should stop when context is canceled")
}

func TestDo_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	_, err := Do(ctx, fastPolicy(10), nil, func(ctx context.Context, attempt int) error {
		calls++
		time.Sleep(30 * time.Millisecond)
		return errTemporary
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.LessOrEqual(t, calls, 3, "should stop when context times out")
}

func TestDo_InvalidMaxAttempts(t *testing.T) {
	for _, n := range []int{0, -1} {
		calls := 0
		_, err := Do(context.Background(), fastPolicy(n), nil, func(ctx context.Context, attempt int) error {
			calls++
			return nil
		})
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
		assert.Equal(t, 0, calls)
	}
}

func TestPolicyDelay(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(10), "capped at MaxDelay")
}

func TestPolicyDelay_Jitter(t *testing.T) {
	orig := randFloat
	defer func() { randFloat = orig }()

	p := Policy{BaseDelay: 100 * time.Millisecond, Jitter: 0.5}

	randFloat = func() float64 { return 0 }
	assert.Equal(t, 50*time.Millisecond, p.Delay(1), "lowest jittered delay")

	randFloat = func() float64 { return 1 }
	assert.Equal(t, 100*time.Millisecond, p.Delay(1), "highest jittered delay")
}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Greater(t, p.BaseDelay, time.Duration(0))
	assert.LessOrEqual(t, p.Delay(10), p.MaxDelay)
}
