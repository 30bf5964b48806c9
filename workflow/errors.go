package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSingleFlightRejected is returned when a workflow is triggered while it is running.
	ErrSingleFlightRejected = errors.New("workflow already running")

	// ErrUnknownWorkflow is returned when triggering or scheduling an unregistered name.
	ErrUnknownWorkflow = errors.New("unknown workflow")

	// ErrDuplicateWorkflow is returned when registering a name twice.
	ErrDuplicateWorkflow = errors.New("workflow already registered")

	// ErrInvalidWorkflow is returned when registering a nil or unnamed workflow.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrNotRunning is returned when triggering an engine that is not started or already stopped.
	ErrNotRunning = errors.New("engine not running")

	// ErrAlreadyStarted is returned when starting an engine twice.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrWorkflowPanicked wraps a panic recovered from a workflow.
	ErrWorkflowPanicked = errors.New("workflow panicked")

	// ErrPartialBatchFailure matches every *BatchError.
	ErrPartialBatchFailure = errors.New("partial batch failure")

	// ErrExecutorRequired is returned when an executor is not provided.
	ErrExecutorRequired = errors.New("executor required")

	// ErrSourceRequired is returned when a posting or status source is not provided.
	ErrSourceRequired = errors.New("source required")

	// ErrIngesterRequired is returned when an ingester is not provided.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrStoreRequired is returned when an application store is not provided.
	ErrStoreRequired = errors.New("store required")
)

// ItemError is the failure of one item of a batch.
type ItemError struct {
	// Ref identifies the item: a posting ref, or "application <id>".
	Ref string
	Err error
}

// BatchError reports the items of a batch that failed while the rest succeeded.
type BatchError struct {
	Total    int
	Failures []ItemError
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d items failed", len(e.Failures), e.Total)
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failures)-i)
			break
		}
		fmt.Fprintf(&b, "; %s: %v", f.Ref, f.Err)
	}
	return b.String()
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrPartialBatchFailure)
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
