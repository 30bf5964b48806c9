package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/ingestion"
)

// DiscoveryName is the registered name of the discovery workflow.
const DiscoveryName = "discovery"

// Source yields postings to ingest.
type Source interface {
	Fetch(ctx context.Context) ([]ingestion.RawPosting, error)
}

// Acker is implemented by sources that want to hear which postings were stored, so
// they are not delivered again.
type Acker interface {
	Ack(ctx context.Context, refs []string) error
}

// Ingester stores a batch of postings. *ingestion.Pipeline implements it.
type Ingester interface {
	IngestBatch(ctx context.Context, postings []ingestion.RawPosting) []ingestion.BatchItem
}

var _ Ingester = (*ingestion.Pipeline)(nil)

// Discovery fetches postings from a source and ingests them as a batch.
type Discovery struct {
	source    Source
	ingester  Ingester
	profileID string
	logger    *slog.Logger
}

// DiscoveryOption configures Discovery.
type DiscoveryOption func(*Discovery) error

// WithDiscoveryLogger sets a custom logger.
func WithDiscoveryLogger(logger *slog.Logger) DiscoveryOption {
	return func(d *Discovery) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithProfile surfaces discovered postings to profileID. Postings that name their own
// profile keep it.
func WithProfile(profileID string) DiscoveryOption {
	return func(d *Discovery) error {
		d.profileID = profileID
		return nil
	}
}

// NewDiscovery creates the discovery workflow.
func NewDiscovery(source Source, ingester Ingester, opts ...DiscoveryOption) (*Discovery, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	d := &Discovery{
		source:   source,
		ingester: ingester,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "discovery")
	return d, nil
}

func (d *Discovery) Name() string {
	return DiscoveryName
}

// Run ingests every fetched posting. Failing postings are isolated and reported in a
// *BatchError; the others are stored.
func (d *Discovery) Run(ctx context.Context) (Summary, error) {
	postings, err := d.source.Fetch(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch postings: %w", err)
	}
	if len(postings) == 0 {
		return Summary{}, nil
	}
	for i := range postings {
		if postings[i].Source == "" {
			postings[i].Source = core.SourceDiscovered
		}
		if postings[i].ProfileID == "" {
			postings[i].ProfileID = d.profileID
		}
	}

	items := d.ingester.IngestBatch(ctx, postings)

	summary := Summary{Processed: len(items)}
	var failures []ItemError
	var stored []string
	for _, item := range items {
		switch {
		case item.Err != nil:
			summary.Failed++
			failures = append(failures, ItemError{Ref: item.Ref, Err: item.Err})
		case item.Result.Created:
			summary.Created++
			stored = append(stored, item.Ref)
		default:
			summary.Updated++
			stored = append(stored, item.Ref)
		}
	}

	if acker, ok := d.source.(Acker); ok && len(stored) > 0 {
		if err := acker.Ack(ctx, stored); err != nil {
			d.logger.Warn("acknowledging postings failed", "count", len(stored), "err", err)
		}
	}

	if len(failures) > 0 {
		return summary, &BatchError{Total: len(items), Failures: failures}
	}
	return summary, nil
}
