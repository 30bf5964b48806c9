package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/storage"
	"golang.org/x/sync/errgroup"
)

// StatusName is the registered name of the status workflow.
const StatusName = "status"

// DefaultStatusConcurrency bounds how many profiles are checked at once.
const DefaultStatusConcurrency = 4

// StatusObservation is what a status source knows about an application.
type StatusObservation struct {
	StatusOrder int
	Notes       *string
	// JobStatus, when set, becomes the derived status of the application's job.
	JobStatus *string
}

// StatusSource looks up the current status of an application. A nil observation with a
// nil error means nothing is known.
type StatusSource interface {
	Check(ctx context.Context, app *core.JobApplication) (*StatusObservation, error)
}

// ApplicationStore is the part of storage.Store the status workflow needs.
type ApplicationStore interface {
	ListApplicationProfiles(ctx context.Context) ([]string, error)
	GetApplicationsForUser(ctx context.Context, profileID string) ([]*core.JobApplication, error)
	UpdateApplicationStatus(ctx context.Context, id core.ID, statusOrder int, notes *string) (*core.JobApplication, error)
	GetJob(ctx context.Context, id core.ID) (*core.Job, error)
	SetJobStatus(ctx context.Context, id core.ID, status string) error
}

// Status checks every application of every profile and applies status increases.
type Status struct {
	store       ApplicationStore
	source      StatusSource
	concurrency int
	logger      *slog.Logger
}

// StatusOption configures Status.
type StatusOption func(*Status) error

// WithStatusLogger sets a custom logger.
func WithStatusLogger(logger *slog.Logger) StatusOption {
	return func(s *Status) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithConcurrency bounds how many profiles are checked at once.
func WithConcurrency(n int) StatusOption {
	return func(s *Status) error {
		if n < 1 {
			return fmt.Errorf("status concurrency must be positive, got %d", n)
		}
		s.concurrency = n
		return nil
	}
}

// NewStatus creates the status workflow.
func NewStatus(store ApplicationStore, source StatusSource, opts ...StatusOption) (*Status, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if source == nil {
		return nil, ErrSourceRequired
	}
	s := &Status{
		store:       store,
		source:      source,
		concurrency: DefaultStatusConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "status")
	return s, nil
}

func (s *Status) Name() string {
	return StatusName
}

// statusTally collects per-application outcomes from concurrent profile checks.
type statusTally struct {
	mu       sync.Mutex
	summary  Summary
	failures []ItemError
}

func (t *statusTally) add(update func(*Summary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	update(&t.summary)
}

func (t *statusTally) fail(ref string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.Failed++
	t.failures = append(t.failures, ItemError{Ref: ref, Err: err})
}

// Run checks profiles concurrently. Only increases of StatusOrder are applied;
// regressions are logged and dropped.
func (s *Status) Run(ctx context.Context) (Summary, error) {
	profiles, err := s.store.ListApplicationProfiles(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list profiles: %w", err)
	}

	tally := &statusTally{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, profile := range profiles {
		g.Go(func() error {
			return s.checkProfile(gctx, profile, tally)
		})
	}
	if err := g.Wait(); err != nil {
		return tally.summary, err
	}

	if len(tally.failures) > 0 {
		return tally.summary, &BatchError{Total: tally.summary.Processed, Failures: tally.failures}
	}
	return tally.summary, nil
}

// checkProfile records per-application failures in tally and returns only context
// errors, which stop the whole run.
func (s *Status) checkProfile(ctx context.Context, profile string, tally *statusTally) error {
	apps, err := s.store.GetApplicationsForUser(ctx, profile)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		tally.fail("profile "+profile, err)
		return nil
	}
	for _, app := range apps {
		if err := ctx.Err(); err != nil {
			return err
		}
		tally.add(func(sum *Summary) { sum.Processed++ })
		ref := fmt.Sprintf("application %d", app.Id)

		updated, err := s.checkApplication(ctx, app)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			s.logger.Warn("status check failed", "profile", profile, "application", app.Id, "err", err)
			tally.fail(ref, err)
		case updated:
			tally.add(func(sum *Summary) { sum.Updated++ })
		default:
			tally.add(func(sum *Summary) { sum.Skipped++ })
		}
	}
	return nil
}

func (s *Status) checkApplication(ctx context.Context, app *core.JobApplication) (bool, error) {
	obs, err := s.source.Check(ctx, app)
	if err != nil {
		return false, fmt.Errorf("check status: %w", err)
	}
	if obs == nil {
		return false, nil
	}

	updated := false
	switch {
	case obs.StatusOrder > app.StatusOrder:
		_, err := s.store.UpdateApplicationStatus(ctx, app.Id, obs.StatusOrder, obs.Notes)
		switch {
		case errors.Is(err, storage.ErrConflict):
			// Raised past the observation since it was read.
			s.logger.Info("status update superseded", "application", app.Id, "observed", obs.StatusOrder)
		case err != nil:
			return false, fmt.Errorf("update status: %w", err)
		default:
			updated = true
		}
	case obs.StatusOrder < app.StatusOrder:
		s.logger.Warn("ignoring status regression", "application", app.Id,
			"current", app.StatusOrder, "observed", obs.StatusOrder)
	}

	if obs.JobStatus != nil && *obs.JobStatus != "" {
		changed, err := s.setJobStatus(ctx, app.JobId, *obs.JobStatus)
		if err != nil {
			return updated, err
		}
		updated = updated || changed
	}
	return updated, nil
}

func (s *Status) setJobStatus(ctx context.Context, jobID core.ID, status string) (bool, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("get job %d: %w", jobID, err)
	}
	if job.Status != nil && *job.Status == status {
		return false, nil
	}
	if err := s.store.SetJobStatus(ctx, jobID, status); err != nil {
		return false, fmt.Errorf("set job %d status: %w", jobID, err)
	}
	return true, nil
}
