// Package executor provides the bounded goroutine pool shared by the ingestion
// pipeline and the workflow engine. Pools are always constructed explicitly and passed
// to their users; there is no package-level default pool.
package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
)

// ErrClosed is returned when submitting to a released pool.
var ErrClosed = errors.New("executor is closed")

// Pool runs tasks on a fixed number of worker goroutines. Submit blocks while every
// worker is busy. A panicking task is logged and does not take the worker down.
type Pool struct {
	name   string
	size   int
	pool   *ants.Pool
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithName labels the pool in logs.
func WithName(name string) Option {
	return func(p *Pool) error {
		p.name = name
		return nil
	}
}

// DefaultSize is runtime.NumCPU() / 2, with a minimum of 1.
func DefaultSize() int {
	return max(runtime.NumCPU()/2, 1)
}

// New creates a pool with size workers. A size below 1 uses DefaultSize.
func New(size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		size = DefaultSize()
	}
	p := &Pool{
		name:   "default",
		size:   size,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "executor", "pool", p.name)

	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(r any) {
		p.logger.Error("task panicked", "panic", fmt.Sprint(r))
	}))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Submit queues task for execution, blocking while the pool is saturated.
func (p *Pool) Submit(task func()) error {
	if err := p.pool.Submit(task); err != nil {
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of tasks currently executing.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops accepting tasks. Tasks already running are not interrupted.
func (p *Pool) Release() {
	p.pool.Release()
}

// ReleaseTimeout stops accepting tasks and waits up to timeout for running tasks to end.
func (p *Pool) ReleaseTimeout(timeout time.Duration) error {
	return p.pool.ReleaseTimeout(timeout)
}
