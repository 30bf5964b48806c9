package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/extraction"
	"github.com/poiesic/jobstream/resolve"
	"github.com/poiesic/jobstream/retry"
	"github.com/poiesic/jobstream/storage"
)

// Extractor reads structured records out of raw text. *extraction.Client implements it.
type Extractor interface {
	ExtractJob(ctx context.Context, raw string) (*core.ExtractedJobData, error)
	ExtractResume(ctx context.Context, raw string) (*core.ExtractedResumeData, error)
}

// Store is the part of storage.Store the pipeline writes through.
type Store interface {
	resolve.CompanyLookup
	UpsertPosting(ctx context.Context, posting *core.Posting) (*core.Posting, error)
	SaveResume(ctx context.Context, resume *core.StructuredResume) (*core.StructuredResume, error)
}

// Executor runs tasks with bounded concurrency. *executor.Pool implements it.
type Executor interface {
	Submit(task func()) error
}

var _ Extractor = (*extraction.Client)(nil)

// Pipeline ingests postings and résumés. It is safe for concurrent use.
type Pipeline struct {
	store           Store
	extractor       Extractor
	resolver        *resolve.Resolver
	executor        Executor
	objects         storage.ObjectStore
	monitor         Monitor
	persistPolicy   retry.Policy
	minimalFallback bool
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithObjectStore sets the store résumé documents are read from.
func WithObjectStore(objects storage.ObjectStore) Option {
	return func(p *Pipeline) error {
		p.objects = objects
		return nil
	}
}

// WithMonitor reports state transitions to monitor.
func WithMonitor(monitor Monitor) Option {
	return func(p *Pipeline) error {
		if monitor == nil {
			monitor = noopMonitor{}
		}
		p.monitor = monitor
		return nil
	}
}

// WithPersistPolicy bounds how often resolution and persistence are retried when the
// store is unavailable.
func WithPersistPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		p.persistPolicy = policy
		return nil
	}
}

// WithMinimalFallback stores a title-only job when extraction rejects a posting that
// carries a title hint.
func WithMinimalFallback(enabled bool) Option {
	return func(p *Pipeline) error {
		p.minimalFallback = enabled
		return nil
	}
}

// DefaultPersistPolicy is the policy used unless WithPersistPolicy replaces it.
func DefaultPersistPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Jitter:      0.5,
	}
}

// NewPipeline creates a pipeline. exec bounds IngestBatch concurrency; it should not be
// the pool the caller itself runs on.
func NewPipeline(store Store, extractor Extractor, exec Executor, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if exec == nil {
		return nil, ErrExecutorRequired
	}

	p := &Pipeline{
		store:         store,
		extractor:     extractor,
		executor:      exec,
		monitor:       noopMonitor{},
		persistPolicy: DefaultPersistPolicy(),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	resolver, err := resolve.NewResolver(store, resolve.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	p.resolver = resolver
	return p, nil
}

// RawPosting is an unprocessed job posting.
type RawPosting struct {
	// Ref identifies the posting in logs and batch results, e.g. an object store ref.
	Ref     string
	Content string
	// HTML marks Content as an HTML document. Unflagged content is sniffed.
	HTML bool
	// TitleHint is used by the minimal fallback; HTML postings default it to their <title>.
	TitleHint string
	// URL fills the job's URL when the extraction has none.
	URL string
	// ProfileID, when set, appends a stream entry for the profile.
	ProfileID string
	// Source of the stream entry. Defaults to core.SourceManual.
	Source string
}

// Result is a completed ingestion.
type Result struct {
	RunID   string
	Company *core.Company
	Job     *core.Job
	Entry   *core.JobStreamEntry
	// Created reports whether the job did not exist before.
	Created bool
	// Degraded reports that the minimal fallback replaced a rejected extraction.
	Degraded bool
}

// IngestJob extracts, resolves and stores one posting. On failure the error is a
// *Failure and nothing was written.
func (p *Pipeline) IngestJob(ctx context.Context, raw RawPosting) (*Result, error) {
	r := p.newRun()
	logger := p.logger.With("run", r.id, "ref", raw.Ref)

	if err := ctx.Err(); err != nil {
		return nil, p.failed(logger, r, err)
	}
	text, hint, err := preparePosting(raw)
	if err != nil {
		return nil, p.failed(logger, r, err)
	}

	r.advance(StateExtracting)
	data, err := p.extractor.ExtractJob(ctx, text)
	degraded := false
	if err != nil {
		if !p.minimalFallback || hint == "" || !errors.Is(err, extraction.ErrInvalidSchema) {
			return nil, p.failed(logger, r, err)
		}
		logger.Warn("extraction rejected posting, storing title only", "title", hint, "err", err)
		data = core.MinimalJobData(hint)
		degraded = true
	}

	r.advance(StateResolving)
	var saved *core.Posting
	_, err = retry.Do(ctx, p.persistPolicy, isStoreTransient, func(ctx context.Context, attempt int) error {
		posting, err := p.resolver.Resolve(ctx, data)
		if err != nil {
			return err
		}
		if posting.Job.URL == nil && raw.URL != "" {
			posting.Job.URL = core.Ptr(raw.URL)
		}
		if raw.ProfileID != "" {
			posting.Entry = &core.JobStreamEntry{
				ProfileID: raw.ProfileID,
				Source:    sourceOrDefault(raw.Source),
				Status:    core.EntryStatusNew,
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		r.advance(StatePersisting)
		saved, err = p.store.UpsertPosting(ctx, posting)
		if err != nil && attempt < p.persistPolicy.MaxAttempts && isStoreTransient(err) {
			logger.Warn("store unavailable, retrying", "attempt", attempt, "err", err)
		}
		return err
	})
	if err != nil {
		return nil, p.failed(logger, r, err)
	}

	r.advance(StateCompleted)
	logger.Info("posting ingested", "job", saved.Job.Id, "created", saved.JobCreated, "degraded", degraded)
	return &Result{
		RunID:    r.id,
		Company:  saved.Company,
		Job:      saved.Job,
		Entry:    saved.Entry,
		Created:  saved.JobCreated,
		Degraded: degraded,
	}, nil
}

// ResumeRequest asks for the résumé stored under DocumentRef to be parsed for ProfileID.
type ResumeRequest struct {
	ProfileID   string
	DocumentRef string
}

// ParseResume fetches a résumé document, extracts it and stores it for the profile,
// replacing any previous résumé. Résumés have nothing to resolve, so the run goes from
// StateExtracting straight to StatePersisting.
func (p *Pipeline) ParseResume(ctx context.Context, req ResumeRequest) (*core.StructuredResume, error) {
	r := p.newRun()
	logger := p.logger.With("run", r.id, "profile", req.ProfileID, "ref", req.DocumentRef)

	switch {
	case req.ProfileID == "":
		return nil, p.failed(logger, r, core.ErrEmptyProfile)
	case req.DocumentRef == "":
		return nil, p.failed(logger, r, ErrDocumentRefRequired)
	case p.objects == nil:
		return nil, p.failed(logger, r, ErrObjectStoreRequired)
	}

	doc, err := p.objects.FetchRawDocument(ctx, req.DocumentRef)
	if err != nil {
		return nil, p.failed(logger, r, err)
	}
	text := documentText(doc)
	if text == "" {
		return nil, p.failed(logger, r, fmt.Errorf("%w: %s", ErrEmptyPosting, req.DocumentRef))
	}

	r.advance(StateExtracting)
	data, err := p.extractor.ExtractResume(ctx, text)
	if err != nil {
		return nil, p.failed(logger, r, err)
	}

	var saved *core.StructuredResume
	_, err = retry.Do(ctx, p.persistPolicy, isStoreTransient, func(ctx context.Context, attempt int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.advance(StatePersisting)
		var err error
		saved, err = p.store.SaveResume(ctx, &core.StructuredResume{
			ProfileID:   req.ProfileID,
			DocumentRef: req.DocumentRef,
			Data:        *data,
		})
		return err
	})
	if err != nil {
		return nil, p.failed(logger, r, err)
	}

	r.advance(StateCompleted)
	logger.Info("resume parsed")
	return saved, nil
}

// BatchItem is the outcome of one posting of a batch. Exactly one of Result and Err is set.
type BatchItem struct {
	Index  int
	Ref    string
	Result *Result
	Err    error
}

// IngestBatch ingests postings concurrently on the executor. A failing posting never
// affects the others. Items are returned in input order.
func (p *Pipeline) IngestBatch(ctx context.Context, postings []RawPosting) []BatchItem {
	items := make([]BatchItem, len(postings))
	var wg sync.WaitGroup
	for i, raw := range postings {
		items[i] = BatchItem{Index: i, Ref: raw.Ref}
		wg.Add(1)
		err := p.executor.Submit(func() {
			defer wg.Done()
			items[i].Result, items[i].Err = p.IngestJob(ctx, raw)
		})
		if err != nil {
			wg.Done()
			items[i].Err = &Failure{State: StateReceived, Class: ClassInternal, Err: err}
		}
	}
	wg.Wait()
	return items
}

func (p *Pipeline) newRun() *run {
	return &run{id: uuid.NewString(), state: StateReceived, monitor: p.monitor}
}

func (p *Pipeline) failed(logger *slog.Logger, r *run, err error) error {
	failure := r.fail(err)
	if failure.Class == ClassCanceled {
		logger.Debug("ingestion canceled", "state", failure.State, "err", err)
	} else {
		logger.Warn("ingestion failed", "state", failure.State, "class", failure.Class, "err", err)
	}
	return failure
}

// preparePosting returns the text to extract and the title hint.
func preparePosting(raw RawPosting) (string, string, error) {
	text, hint := raw.Content, strings.TrimSpace(raw.TitleHint)
	if raw.HTML || looksLikeHTML(raw.Content) {
		var htmlTitle string
		var err error
		text, htmlTitle, err = htmlToText(raw.Content)
		if err != nil {
			return "", "", fmt.Errorf("%w: %w", ErrEmptyPosting, err)
		}
		if hint == "" {
			hint = htmlTitle
		}
	}
	if extraction.NormalizeText(text) == "" {
		return "", "", ErrEmptyPosting
	}
	return text, hint, nil
}

func documentText(doc []byte) string {
	text := string(doc)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}
	if looksLikeHTML(text) {
		if visible, _, err := htmlToText(text); err == nil {
			text = visible
		}
	}
	return extraction.NormalizeText(text)
}

func sourceOrDefault(source string) string {
	if source == "" {
		return core.SourceManual
	}
	return source
}

func isStoreTransient(err error) bool {
	return errors.Is(err, storage.ErrUnavailable)
}
