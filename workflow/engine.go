package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds an invocation when no timeout is configured.
const DefaultTimeout = 10 * time.Minute

// InvocationID identifies one run of a workflow.
type InvocationID string

// Workflow is a unit of background work.
type Workflow interface {
	Name() string
	// Run does the work. It must return promptly once ctx ends.
	Run(ctx context.Context) (Summary, error)
}

// Summary counts what an invocation did.
type Summary struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
}

// FailureKind classifies how an invocation ended.
type FailureKind string

const (
	KindNone     FailureKind = ""
	KindPartial  FailureKind = "partial_batch_failure"
	KindTimeout  FailureKind = "timeout"
	KindCanceled FailureKind = "canceled"
	KindPanic    FailureKind = "panic"
	KindError    FailureKind = "error"
)

// Result is the outcome of one invocation.
type Result struct {
	Workflow     string
	InvocationID InvocationID
	StartedAt    time.Time
	FinishedAt   time.Time
	Summary      Summary
	Kind         FailureKind
	Err          error
}

// Executor runs tasks with bounded concurrency. *executor.Pool implements it.
type Executor interface {
	Submit(task func()) error
}

type engineState int

const (
	stateIdle engineState = iota
	stateRunning
	stateStopped
)

type registration struct {
	workflow Workflow
	running  atomic.Bool
	last     atomic.Pointer[Result]
}

// Engine runs registered workflows. It is safe for concurrent use.
type Engine struct {
	exec    Executor
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	state     engineState
	workflows map[string]*registration
	schedules map[string]time.Duration
	baseCtx   context.Context
	cancel    context.CancelFunc

	inflight   sync.WaitGroup
	tickers    sync.WaitGroup
	results    chan Result
	supervisor chan struct{}
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithTimeout bounds every invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(e *Engine) error {
		if timeout <= 0 {
			return fmt.Errorf("workflow timeout must be positive, got %s", timeout)
		}
		e.timeout = timeout
		return nil
	}
}

// NewEngine creates an engine whose invocations run on exec.
func NewEngine(exec Executor, opts ...Option) (*Engine, error) {
	if exec == nil {
		return nil, ErrExecutorRequired
	}
	e := &Engine{
		exec:      exec,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
		workflows: make(map[string]*registration),
		schedules: make(map[string]time.Duration),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "workflow")
	return e, nil
}

// Register adds a workflow under its name.
func (e *Engine) Register(wf Workflow) error {
	if wf == nil || wf.Name() == "" {
		return ErrInvalidWorkflow
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.workflows[wf.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkflow, wf.Name())
	}
	e.workflows[wf.Name()] = &registration{workflow: wf}
	return nil
}

// Start launches the supervisor and the schedules. Invocations inherit ctx: cancelling it
// cancels them.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != stateIdle {
		return ErrAlreadyStarted
	}
	e.baseCtx, e.cancel = context.WithCancel(ctx)
	e.results = make(chan Result, 64)
	e.supervisor = make(chan struct{})
	e.state = stateRunning

	go e.supervise()
	for name, interval := range e.schedules {
		e.startTicker(name, interval)
	}
	e.logger.Info("engine started", "workflows", len(e.workflows), "schedules", len(e.schedules))
	return nil
}

// Stop cancels running invocations and schedules, then waits for in-flight invocations
// to report. It returns ctx's error if they do not finish in time; the supervisor keeps
// draining in the background in that case.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.state != stateRunning {
		e.state = stateStopped
		e.mu.Unlock()
		return nil
	}
	e.state = stateStopped
	e.cancel()
	e.mu.Unlock()

	e.tickers.Wait()
	go func() {
		e.inflight.Wait()
		close(e.results)
	}()

	select {
	case <-e.supervisor:
		e.logger.Info("engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger starts an invocation and returns without waiting for it.
func (e *Engine) Trigger(ctx context.Context, name string) (InvocationID, error) {
	return e.trigger(ctx, name, nil)
}

// TriggerAndWait starts an invocation and waits for its result. If ctx ends first the
// invocation keeps running and ctx's error is returned. A failed invocation is not an
// error here; it is reported in Result.
func (e *Engine) TriggerAndWait(ctx context.Context, name string) (*Result, error) {
	done := make(chan Result, 1)
	if _, err := e.trigger(ctx, name, done); err != nil {
		return nil, err
	}
	select {
	case res := <-done:
		return &res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Schedule triggers name every interval while the engine runs. A tick that finds the
// previous invocation still running is skipped.
func (e *Engine) Schedule(name string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("schedule interval must be positive, got %s", interval)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.workflows[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	if _, ok := e.schedules[name]; ok {
		return fmt.Errorf("workflow %s is already scheduled", name)
	}
	e.schedules[name] = interval
	if e.state == stateRunning {
		e.startTicker(name, interval)
	}
	return nil
}

// LastResult returns the outcome of the most recent finished invocation of name.
func (e *Engine) LastResult(name string) (*Result, bool) {
	e.mu.Lock()
	reg, ok := e.workflows[name]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	res := reg.last.Load()
	return res, res != nil
}

// Running reports whether an invocation of name is in flight.
func (e *Engine) Running(name string) bool {
	e.mu.Lock()
	reg, ok := e.workflows[name]
	e.mu.Unlock()
	return ok && reg.running.Load()
}

func (e *Engine) trigger(ctx context.Context, name string, done chan<- Result) (InvocationID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.state != stateRunning {
		e.mu.Unlock()
		return "", ErrNotRunning
	}
	reg, ok := e.workflows[name]
	if !ok {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}
	if !reg.running.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrSingleFlightRejected, name)
	}
	e.inflight.Add(1)
	baseCtx := e.baseCtx
	e.mu.Unlock()

	id := InvocationID(uuid.NewString())
	err := e.exec.Submit(func() {
		defer e.inflight.Done()
		e.invoke(baseCtx, reg, id, done)
	})
	if err != nil {
		reg.running.Store(false)
		e.inflight.Done()
		return "", fmt.Errorf("submit %s: %w", name, err)
	}
	e.logger.Debug("workflow triggered", "workflow", name, "invocation", id)
	return id, nil
}

func (e *Engine) invoke(baseCtx context.Context, reg *registration, id InvocationID, done chan<- Result) {
	ctx, cancel := context.WithTimeout(baseCtx, e.timeout)
	defer cancel()

	res := Result{
		Workflow:     reg.workflow.Name(),
		InvocationID: id,
		StartedAt:    time.Now().UTC(),
	}
	res.Summary, res.Err = runSafely(ctx, reg.workflow)
	res.FinishedAt = time.Now().UTC()
	res.Kind = failureKind(ctx, baseCtx, res.Err)

	reg.last.Store(&res)
	reg.running.Store(false)

	e.results <- res
	if done != nil {
		done <- res
	}
}

func runSafely(ctx context.Context, wf Workflow) (summary Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrWorkflowPanicked, r, debug.Stack())
		}
	}()
	return wf.Run(ctx)
}

func failureKind(ctx, baseCtx context.Context, err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrWorkflowPanicked):
		return KindPanic
	case baseCtx.Err() != nil:
		return KindCanceled
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrPartialBatchFailure):
		return KindPartial
	default:
		return KindError
	}
}

func (e *Engine) supervise() {
	defer close(e.supervisor)
	for res := range e.results {
		logger := e.logger.With(
			"workflow", res.Workflow,
			"invocation", res.InvocationID,
			"elapsed", res.FinishedAt.Sub(res.StartedAt),
			"processed", res.Summary.Processed,
			"created", res.Summary.Created,
			"updated", res.Summary.Updated,
			"skipped", res.Summary.Skipped,
			"failed", res.Summary.Failed,
		)
		switch res.Kind {
		case KindNone:
			logger.Info("workflow finished")
		case KindPartial, KindCanceled:
			logger.Warn("workflow finished with failures", "kind", res.Kind, "err", res.Err)
		default:
			logger.Error("workflow failed", "kind", res.Kind, "err", res.Err)
		}
	}
}

// startTicker must be called with e.mu held while the engine runs.
func (e *Engine) startTicker(name string, interval time.Duration) {
	ctx := e.baseCtx
	e.tickers.Add(1)
	go func() {
		defer e.tickers.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, err := e.Trigger(ctx, name)
				switch {
				case err == nil:
				case errors.Is(err, ErrSingleFlightRejected):
					e.logger.Debug("skipping scheduled run, previous run still in flight", "workflow", name)
				case ctx.Err() != nil, errors.Is(err, ErrNotRunning):
					return
				default:
					e.logger.Warn("scheduled trigger failed", "workflow", name, "err", err)
				}
			}
		}
	}()
}
