package ingestion

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/jobstream/ai"
	"github.com/poiesic/jobstream/ai/mock"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/executor"
	"github.com/poiesic/jobstream/extraction"
	"github.com/poiesic/jobstream/retry"
	"github.com/poiesic/jobstream/storage"
	"github.com/poiesic/jobstream/storage/badger"
	"github.com/poiesic/jobstream/storage/objects"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acmeJob = `{"title": "Software Engineer", "company_name": "Acme", "company_domain": "acme.com",
"location": "remote", "salary_min": 120000, "salary_max": 160000}`

// countingStore wraps a real store, counts writes and can fail the first writes.
type countingStore struct {
	*badger.Store
	failures atomic.Int32
	upserts  atomic.Int32
	saves    atomic.Int32
}

func (s *countingStore) UpsertPosting(ctx context.Context, posting *core.Posting) (*core.Posting, error) {
	s.upserts.Add(1)
	if s.failures.Add(-1) >= 0 {
		return nil, fmt.Errorf("%w: disk busy", storage.ErrUnavailable)
	}
	return s.Store.UpsertPosting(ctx, posting)
}

func (s *countingStore) SaveResume(ctx context.Context, resume *core.StructuredResume) (*core.StructuredResume, error) {
	s.saves.Add(1)
	return s.Store.SaveResume(ctx, resume)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return &countingStore{Store: store}
}

type recordingMonitor struct {
	mu          sync.Mutex
	transitions []string
}

func (m *recordingMonitor) Transition(runID string, from, to State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, from.String()+">"+to.String())
}

func (m *recordingMonitor) Transitions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.transitions...)
}

func newTestPipeline(t *testing.T, gateway ai.Gateway, store Store, opts ...Option) *Pipeline {
	t.Helper()
	client, err := extraction.NewClient(gateway,
		extraction.WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}))
	require.NoError(t, err)

	pool, err := executor.New(4, executor.WithName("test"))
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	opts = append([]Option{
		WithPersistPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond}),
	}, opts...)
	p, err := NewPipeline(store, client, pool, opts...)
	require.NoError(t, err)
	return p
}

func requireFailure(t *testing.T, err error) *Failure {
	t.Helper()
	require.Error(t, err)
	var failure *Failure
	require.ErrorAs(t, err, &failure)
	return failure
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	store := newCountingStore(t)
	client, err := extraction.NewClient(mock.NewGateway(acmeJob))
	require.NoError(t, err)
	pool, err := executor.New(1)
	require.NoError(t, err)
	defer pool.Release()

	_, err = NewPipeline(nil, client, pool)
	assert.ErrorIs(t, err, ErrStoreRequired)
	_, err = NewPipeline(store, nil, pool)
	assert.ErrorIs(t, err, ErrExtractorRequired)
	_, err = NewPipeline(store, client, nil)
	assert.ErrorIs(t, err, ErrExecutorRequired)
}

func TestIngestJob_AcmeScenario(t *testing.T) {
	store := newCountingStore(t)
	monitor := &recordingMonitor{}
	p := newTestPipeline(t, mock.NewGateway(acmeJob), store, WithMonitor(monitor))
	ctx := context.Background()

	raw := RawPosting{Content: "Acme is hiring a Software Engineer (remote).", ProfileID: "bob"}
	first, err := p.IngestJob(ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, first.Company)
	assert.Equal(t, "acme.com", *first.Company.Domain)
	require.NotNil(t, first.Job.CompanyId)
	assert.Equal(t, first.Company.Id, *first.Job.CompanyId)
	assert.Equal(t, "Remote", *first.Job.Location)
	assert.Equal(t, "USD", *first.Job.SalaryCurrency)
	assert.True(t, first.Created)
	require.NotNil(t, first.Entry)
	assert.Equal(t, core.SourceManual, first.Entry.Source)
	assert.NotEmpty(t, first.RunID)

	assert.Equal(t, []string{
		"received>extracting",
		"extracting>resolving",
		"resolving>persisting",
		"persisting>completed",
	}, monitor.Transitions())

	second, err := p.IngestJob(ctx, raw)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Job.Id, second.Job.Id)
	assert.Equal(t, first.Company.Id, second.Company.Id)
	assert.NotEqual(t, first.RunID, second.RunID)

	entries, err := store.GetStreamEntries(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestIngestJob_MalformedResponseWritesNothing(t *testing.T) {
	store := newCountingStore(t)
	gateway := mock.NewGateway("Sorry, I cannot help with that.")
	p := newTestPipeline(t, gateway, store)

	_, err := p.IngestJob(context.Background(), RawPosting{Content: "posting"})
	failure := requireFailure(t, err)
	assert.Equal(t, ClassBadInput, failure.Class)
	assert.Equal(t, StateExtracting, failure.State)
	assert.ErrorIs(t, err, extraction.ErrInvalidSchema)
	assert.Equal(t, 1, gateway.CallCount())
	assert.Zero(t, store.upserts.Load())
}

func TestIngestJob_TransientStoreFailureIsRetried(t *testing.T) {
	store := newCountingStore(t)
	store.failures.Store(2)
	gateway := mock.NewGateway(acmeJob)
	p := newTestPipeline(t, gateway, store)

	result, err := p.IngestJob(context.Background(), RawPosting{Content: "posting"})
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, int32(3), store.upserts.Load())
	assert.Equal(t, 1, gateway.CallCount(), "extraction is not repeated")
}

func TestIngestJob_StoreDown(t *testing.T) {
	store := newCountingStore(t)
	store.failures.Store(100)
	p := newTestPipeline(t, mock.NewGateway(acmeJob), store)

	_, err := p.IngestJob(context.Background(), RawPosting{Content: "posting"})
	failure := requireFailure(t, err)
	assert.Equal(t, ClassRetryLater, failure.Class)
	assert.Equal(t, StatePersisting, failure.State)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Equal(t, int32(3), store.upserts.Load())

	_, err = store.GetCompanyByDomain(context.Background(), "acme.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIngestJob_OrphanedJob(t *testing.T) {
	store := newCountingStore(t)
	p := newTestPipeline(t, mock.NewGateway(`{"title": "Data Analyst", "salary_currency": "EUR"}`), store)

	result, err := p.IngestJob(context.Background(), RawPosting{Content: "posting", URL: "https://jobs.example/1"})
	require.NoError(t, err)
	assert.Nil(t, result.Company)
	assert.Nil(t, result.Job.CompanyId)
	assert.Equal(t, "EUR", *result.Job.SalaryCurrency)
	assert.Equal(t, "https://jobs.example/1", *result.Job.URL)
	assert.Nil(t, result.Entry, "no profile, no stream entry")
}

func TestIngestJob_RejectedModelRequest(t *testing.T) {
	store := newCountingStore(t)
	gateway := mock.NewSequence(fmt.Errorf("%w: invalid api key", ai.ErrRejected), acmeJob)
	p := newTestPipeline(t, gateway, store)

	_, err := p.IngestJob(context.Background(), RawPosting{Content: "posting"})
	require.Error(t, err)
	assert.Equal(t, ClassInternal, ClassOf(err), "a rejected request is not worth retrying later")
	assert.Equal(t, 1, gateway.CallCount())
	assert.Zero(t, store.upserts.Load())
}

func TestIngestJob_ReingestionKeepsStoredCurrency(t *testing.T) {
	store := newCountingStore(t)
	gateway := mock.NewSequence(
		`{"title": "Data Analyst", "location": "Berlin", "salary_currency": "EUR"}`,
		`{"title": "Data Analyst", "location": "Berlin"}`,
	)
	p := newTestPipeline(t, gateway, store)
	ctx := context.Background()

	first, err := p.IngestJob(ctx, RawPosting{Content: "Data Analyst, Berlin, EUR"})
	require.NoError(t, err)
	assert.Equal(t, "EUR", *first.Job.SalaryCurrency)

	second, err := p.IngestJob(ctx, RawPosting{Content: "Data Analyst, Berlin"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Job.Id, second.Job.Id)
	assert.Equal(t, "EUR", *second.Job.SalaryCurrency, "absent currency never replaces a stored one")

	stored, err := store.GetJob(ctx, first.Job.Id)
	require.NoError(t, err)
	assert.Equal(t, "EUR", *stored.SalaryCurrency)
}

func TestIngestJob_HTMLPosting(t *testing.T) {
	store := newCountingStore(t)
	gateway := mock.NewGateway(acmeJob)
	p := newTestPipeline(t, gateway, store)

	doc := `<!DOCTYPE html><html><head><title>Software Engineer | Acme</title>
<script>trackVisitor();</script><style>p { color: red }</style></head>
<body><h1>Software Engineer</h1><p>Build   things.</p><ul><li>Go</li><li>SQL</li></ul></body></html>`
	_, err := p.IngestJob(context.Background(), RawPosting{Content: doc})
	require.NoError(t, err)

	text := gateway.Requests()[0].Text
	assert.Equal(t, "Software Engineer\nBuild things.\nGo\nSQL", text)
	assert.NotContains(t, text, "trackVisitor")
}

func TestIngestJob_MinimalFallback(t *testing.T) {
	rejected := `{"error": {"code": "invalid_input", "message": "no salary information"}}`
	doc := `<html><head><title>Staff Engineer</title></head><body><p>Join us.</p></body></html>`

	t.Run("enabled", func(t *testing.T) {
		p := newTestPipeline(t, mock.NewGateway(rejected), newCountingStore(t), WithMinimalFallback(true))

		result, err := p.IngestJob(context.Background(), RawPosting{Content: doc, HTML: true})
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		assert.Equal(t, "Staff Engineer", result.Job.Title)
		assert.Nil(t, result.Job.CompanyId)
		assert.Equal(t, "USD", *result.Job.SalaryCurrency)
	})

	t.Run("disabled", func(t *testing.T) {
		p := newTestPipeline(t, mock.NewGateway(rejected), newCountingStore(t))

		_, err := p.IngestJob(context.Background(), RawPosting{Content: doc, HTML: true})
		assert.Equal(t, ClassBadInput, ClassOf(err))
	})

	t.Run("transient failures are not masked", func(t *testing.T) {
		p := newTestPipeline(t, mock.NewSequence(ai.ErrUnavailable), newCountingStore(t), WithMinimalFallback(true))

		_, err := p.IngestJob(context.Background(), RawPosting{Content: doc, HTML: true})
		assert.Equal(t, ClassRetryLater, ClassOf(err))
	})
}

func TestIngestJob_EmptyPosting(t *testing.T) {
	gateway := mock.NewGateway(acmeJob)
	p := newTestPipeline(t, gateway, newCountingStore(t))

	_, err := p.IngestJob(context.Background(), RawPosting{Content: "<html><body><script>x()</script></body></html>"})
	failure := requireFailure(t, err)
	assert.Equal(t, ClassBadInput, failure.Class)
	assert.Equal(t, StateReceived, failure.State)
	assert.ErrorIs(t, err, ErrEmptyPosting)
	assert.Zero(t, gateway.CallCount())
}

func TestIngestJob_CanceledRunWritesNothing(t *testing.T) {
	store := newCountingStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gateway := &mock.Gateway{
		CompleteFunc: func(_ context.Context, _ ai.Request) (string, error) {
			cancel()
			return acmeJob, nil
		},
	}
	p := newTestPipeline(t, gateway, store)

	_, err := p.IngestJob(ctx, RawPosting{Content: "posting"})
	assert.Equal(t, ClassCanceled, ClassOf(err))
	assert.Zero(t, store.upserts.Load())
}

func TestIngestBatch_ConcurrentIdenticalPostings(t *testing.T) {
	store := newCountingStore(t)
	p := newTestPipeline(t, mock.NewGateway(acmeJob), store)

	postings := make([]RawPosting, 8)
	for i := range postings {
		postings[i] = RawPosting{Ref: fmt.Sprintf("postings/%d.txt", i), Content: "same posting", ProfileID: "bob"}
	}
	items := p.IngestBatch(context.Background(), postings)
	require.Len(t, items, 8)

	created := 0
	for i, item := range items {
		require.NoError(t, item.Err)
		assert.Equal(t, i, item.Index)
		assert.Equal(t, postings[i].Ref, item.Ref)
		assert.Equal(t, items[0].Result.Job.Id, item.Result.Job.Id)
		if item.Result.Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestIngestBatch_IsolatesFailures(t *testing.T) {
	p := newTestPipeline(t, mock.NewGateway(acmeJob), newCountingStore(t))

	items := p.IngestBatch(context.Background(), []RawPosting{
		{Ref: "a", Content: "posting a"},
		{Ref: "b", Content: "   "},
		{Ref: "c", Content: "posting c"},
	})
	require.Len(t, items, 3)
	assert.NoError(t, items[0].Err)
	assert.Equal(t, ClassBadInput, ClassOf(items[1].Err))
	assert.Nil(t, items[1].Result)
	assert.NoError(t, items[2].Err)
}

func TestIngestBatch_ClosedExecutor(t *testing.T) {
	store := newCountingStore(t)
	client, err := extraction.NewClient(mock.NewGateway(acmeJob))
	require.NoError(t, err)
	pool, err := executor.New(1)
	require.NoError(t, err)
	pool.Release()

	p, err := NewPipeline(store, client, pool)
	require.NoError(t, err)

	items := p.IngestBatch(context.Background(), []RawPosting{{Content: "posting"}})
	assert.Equal(t, ClassInternal, ClassOf(items[0].Err))
	assert.ErrorIs(t, items[0].Err, executor.ErrClosed)
}

func TestParseResume(t *testing.T) {
	ctx := context.Background()
	docs := objects.NewMemory()
	require.NoError(t, docs.PutRawDocument(ctx, "resumes/bob.txt", []byte("Bob Smith\nGo developer")))

	store := newCountingStore(t)
	gateway := mock.NewGateway(`{"name": "Bob Smith", "skills": ["Go"]}`)
	p := newTestPipeline(t, gateway, store, WithObjectStore(docs))

	resume, err := p.ParseResume(ctx, ResumeRequest{ProfileID: "bob", DocumentRef: "resumes/bob.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Bob Smith", *resume.Data.Name)
	assert.Equal(t, "resumes/bob.txt", resume.DocumentRef)
	assert.Equal(t, ai.SchemaResume, gateway.Requests()[0].Schema)
	assert.Equal(t, "Bob Smith\nGo developer", gateway.Requests()[0].Text)

	stored, err := store.GetResume(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, stored.Data.Skills)
}

func TestParseResume_Failures(t *testing.T) {
	ctx := context.Background()
	docs := objects.NewMemory()
	require.NoError(t, docs.PutRawDocument(ctx, "resumes/blank.txt", []byte(" \n ")))

	store := newCountingStore(t)
	gateway := mock.NewGateway(`{"name": "Bob"}`)
	p := newTestPipeline(t, gateway, store, WithObjectStore(docs))

	tests := []struct {
		name  string
		req   ResumeRequest
		class Class
	}{
		{"missing profile", ResumeRequest{DocumentRef: "resumes/bob.txt"}, ClassBadInput},
		{"missing ref", ResumeRequest{ProfileID: "bob"}, ClassBadInput},
		{"unknown document", ResumeRequest{ProfileID: "bob", DocumentRef: "resumes/nobody.txt"}, ClassNotFound},
		{"escaping ref", ResumeRequest{ProfileID: "bob", DocumentRef: "../etc/passwd"}, ClassBadInput},
		{"blank document", ResumeRequest{ProfileID: "bob", DocumentRef: "resumes/blank.txt"}, ClassBadInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseResume(ctx, tt.req)
			failure := requireFailure(t, err)
			assert.Equal(t, tt.class, failure.Class)
			assert.Equal(t, StateReceived, failure.State)
		})
	}
	assert.Zero(t, gateway.CallCount())
	assert.Zero(t, store.saves.Load())

	noObjects := newTestPipeline(t, gateway, store)
	_, err := noObjects.ParseResume(ctx, ResumeRequest{ProfileID: "bob", DocumentRef: "resumes/bob.txt"})
	assert.ErrorIs(t, err, ErrObjectStoreRequired)
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, looksLikeHTML("  <!DOCTYPE html><html></html>"))
	assert.True(t, looksLikeHTML("<div>x</div><body>"))
	assert.False(t, looksLikeHTML("Senior engineer, <5 years experience"))
	assert.False(t, looksLikeHTML(strings.Repeat("x", 600)+"<body>"))
}
