package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/ingestion"
	"github.com/poiesic/jobstream/storage"
)

// Default object store prefixes of the feeds.
const (
	DefaultPostingsPrefix = "postings/"
	DefaultStatusesPrefix = "statuses/"
)

// FeedSource delivers the documents under a prefix of an object store as postings.
// A document is delivered again only once its content changes; acknowledgements are
// kept in memory, so a restarted process delivers everything once more and relies on
// idempotent ingestion.
type FeedSource struct {
	objects storage.ObjectStore
	prefix  string

	mu      sync.Mutex
	pending map[string]core.ID
	acked   map[string]core.ID
}

var (
	_ Source = (*FeedSource)(nil)
	_ Acker  = (*FeedSource)(nil)
)

// NewFeedSource creates a feed over the documents under prefix.
func NewFeedSource(objects storage.ObjectStore, prefix string) (*FeedSource, error) {
	if objects == nil {
		return nil, ErrSourceRequired
	}
	if prefix == "" {
		prefix = DefaultPostingsPrefix
	}
	return &FeedSource{
		objects: objects,
		prefix:  prefix,
		pending: make(map[string]core.ID),
		acked:   make(map[string]core.ID),
	}, nil
}

// Fetch returns the documents that are new or changed since their last acknowledgement.
// HTML documents are recognized by their extension.
func (f *FeedSource) Fetch(ctx context.Context) ([]ingestion.RawPosting, error) {
	refs, err := f.objects.List(ctx, f.prefix)
	if err != nil {
		return nil, err
	}

	var postings []ingestion.RawPosting
	for _, ref := range refs {
		doc, err := f.objects.FetchRawDocument(ctx, ref)
		if errors.Is(err, storage.ErrNotFound) {
			// Removed between List and Fetch.
			continue
		}
		if err != nil {
			return nil, err
		}

		content := string(doc)
		digest := core.IDFromContent(content)
		f.mu.Lock()
		seen := f.acked[ref] == digest
		if !seen {
			f.pending[ref] = digest
		}
		f.mu.Unlock()
		if seen {
			continue
		}

		ext := strings.ToLower(path.Ext(ref))
		postings = append(postings, ingestion.RawPosting{
			Ref:     ref,
			Content: content,
			HTML:    ext == ".html" || ext == ".htm",
		})
	}
	return postings, nil
}

// Ack marks refs as delivered in the version last fetched.
func (f *FeedSource) Ack(_ context.Context, refs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ref := range refs {
		if digest, ok := f.pending[ref]; ok {
			f.acked[ref] = digest
			delete(f.pending, ref)
		}
	}
	return nil
}

// statusRecord is one line of a status feed document.
type statusRecord struct {
	JobID       core.ID `json:"job_id"`
	StatusOrder int     `json:"status_order"`
	Notes       *string `json:"notes,omitempty"`
	JobStatus   *string `json:"job_status,omitempty"`
}

// FeedStatusSource reads status observations from one JSON document per profile,
// "<prefix><profile>.json", holding an array of records keyed by job id.
type FeedStatusSource struct {
	objects storage.ObjectStore
	prefix  string
}

var _ StatusSource = (*FeedStatusSource)(nil)

// NewFeedStatusSource creates a status source over the documents under prefix.
func NewFeedStatusSource(objects storage.ObjectStore, prefix string) (*FeedStatusSource, error) {
	if objects == nil {
		return nil, ErrSourceRequired
	}
	if prefix == "" {
		prefix = DefaultStatusesPrefix
	}
	return &FeedStatusSource{objects: objects, prefix: prefix}, nil
}

// Check returns the record for the application's job, or nil when the profile has no
// status document or the document does not mention the job.
func (s *FeedStatusSource) Check(ctx context.Context, app *core.JobApplication) (*StatusObservation, error) {
	ref := s.prefix + app.ProfileID + ".json"
	doc, err := s.objects.FetchRawDocument(ctx, ref)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []statusRecord
	if err := json.Unmarshal(doc, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	for _, rec := range records {
		if rec.JobID == app.JobId {
			return &StatusObservation{
				StatusOrder: rec.StatusOrder,
				Notes:       rec.Notes,
				JobStatus:   rec.JobStatus,
			}, nil
		}
	}
	return nil, nil
}
