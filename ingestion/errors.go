package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/jobstream/ai"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/extraction"
	"github.com/poiesic/jobstream/storage"
)

var (
	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrExtractorRequired is returned when an extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrExecutorRequired is returned when an executor is not provided.
	ErrExecutorRequired = errors.New("executor required")

	// ErrObjectStoreRequired is returned by ParseResume when the pipeline has no object store.
	ErrObjectStoreRequired = errors.New("object store required")

	// ErrEmptyPosting indicates a posting with no visible text.
	ErrEmptyPosting = errors.New("posting has no content")

	// ErrDocumentRefRequired indicates a résumé request without a document ref.
	ErrDocumentRefRequired = errors.New("document ref required")
)

// Class groups failures by what the caller should do about them.
type Class string

const (
	// ClassBadInput failures repeat on every retry; fix the input.
	ClassBadInput Class = "bad_input"
	// ClassRetryLater failures are transient.
	ClassRetryLater Class = "retry_later"
	// ClassNotFound failures reference a missing document.
	ClassNotFound Class = "not_found"
	// ClassConflict failures collide with stored data.
	ClassConflict Class = "conflict"
	// ClassCanceled failures were cut short by the caller's context.
	ClassCanceled Class = "canceled"
	// ClassInternal covers everything else.
	ClassInternal Class = "internal"
)

// Failure describes a request that ended in StateFailed.
type Failure struct {
	RunID string
	// State is the state the request was in when it failed.
	State State
	Class Class
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("ingestion failed while %s (%s): %v", f.State, f.Class, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// ClassOf returns the class of a failure, or ClassInternal for any other error.
func ClassOf(err error) Class {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Class
	}
	return ClassInternal
}

func classify(err error) Class {
	// A rejected model request points at configuration, not at the posting.
	if errors.Is(err, ai.ErrRejected) {
		return ClassInternal
	}
	switch extraction.KindOf(err) {
	case extraction.ErrInvalidSchema:
		return ClassBadInput
	case extraction.ErrTimeout, extraction.ErrUpstreamUnavailable, extraction.ErrRateLimited:
		return ClassRetryLater
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	case errors.Is(err, storage.ErrNotFound):
		return ClassNotFound
	case errors.Is(err, storage.ErrConflict):
		return ClassConflict
	case errors.Is(err, storage.ErrUnavailable):
		return ClassRetryLater
	case errors.Is(err, storage.ErrInvalidQuery),
		errors.Is(err, core.ErrInvalidJob),
		errors.Is(err, core.ErrInvalidResume),
		errors.Is(err, core.ErrEmptyProfile),
		errors.Is(err, ErrEmptyPosting),
		errors.Is(err, ErrDocumentRefRequired):
		return ClassBadInput
	default:
		return ClassInternal
	}
}
