package extraction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/jobstream/ai"
	"github.com/poiesic/jobstream/ai/mock"
	"github.com/poiesic/jobstream/core"
	"github.com/poiesic/jobstream/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acmeJob = `{"title": "Senior  Software Engineer", "company_name": "Acme", "company_domain": "acme.com",
"location": "Remote", "salary_min": 150000, "salary_max": 190000, "qualifications": ["Go", "Postgres"]}`

func fastPolicy(attempts int) retry.Policy {
	return retry.Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestClient(t *testing.T, gateway ai.Gateway, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithRetryPolicy(fastPolicy(3))}, opts...)
	client, err := NewClient(gateway, opts...)
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresGateway(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrGatewayRequired)

	_, err = NewClient(mock.NewGateway("{}"), WithMaxAttempts(0))
	assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)

	_, err = NewClient(mock.NewGateway("{}"), WithCallTimeout(0))
	assert.Error(t, err)
}

func TestExtractJob_Success(t *testing.T) {
	gateway := mock.NewGateway("```json\n" + acmeJob + "\n```")
	client := newTestClient(t, gateway)

	data, err := client.ExtractJob(context.Background(), "  Senior Software Engineer\x00 at Acme\n\n\nRemote  ")
	require.NoError(t, err)
	assert.Equal(t, "Senior Software Engineer", data.Title)
	assert.Equal(t, "acme.com", *data.CompanyDomain)
	assert.Equal(t, 150000.0, *data.SalaryMin)
	assert.Nil(t, data.SalaryCurrency)
	assert.Equal(t, []string{"Go", "Postgres"}, data.Qualifications)

	requests := gateway.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, ai.SchemaJob, requests[0].Schema)
	assert.Equal(t, "Senior Software Engineer at Acme\nRemote", requests[0].Text)
}

func TestExtractJob_RetriesTransientFailures(t *testing.T) {
	gateway := mock.NewSequence(ai.ErrUnavailable, ai.ErrTimeout, acmeJob)
	client := newTestClient(t, gateway)

	data, err := client.ExtractJob(context.Background(), "posting")
	require.NoError(t, err)
	assert.Equal(t, "Senior Software Engineer", data.Title)
	assert.Equal(t, 3, gateway.CallCount())
}

func TestExtractJob_RateLimitedExhaustsAttempts(t *testing.T) {
	gateway := mock.NewSequence(ai.ErrRateLimited)
	client := newTestClient(t, gateway)

	_, err := client.ExtractJob(context.Background(), "posting")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ai.ErrRateLimited)

	var extractionErr *Error
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, 3, extractionErr.Attempts)
	assert.True(t, extractionErr.Retryable())
	assert.Equal(t, 3, gateway.CallCount())
}

func TestExtractJob_RejectedRequestIsNotRetried(t *testing.T) {
	rejected := fmt.Errorf("%w: API returned unexpected status code: 401", ai.ErrRejected)
	gateway := mock.NewSequence(rejected, acmeJob)
	client := newTestClient(t, gateway)

	_, err := client.ExtractJob(context.Background(), "posting")
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrRejected)

	var extractionErr *Error
	require.ErrorAs(t, err, &extractionErr)
	assert.Equal(t, 1, extractionErr.Attempts)
	assert.False(t, extractionErr.Retryable())
	assert.Equal(t, 1, gateway.CallCount())
}

func TestExtractJob_MalformedResponseIsNotRetried(t *testing.T) {
	gateway := mock.NewGateway("I could not find a job in this text.")
	client := newTestClient(t, gateway)

	_, err := client.ExtractJob(context.Background(), "posting")
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.Equal(t, ErrInvalidSchema, KindOf(err))
	assert.Equal(t, 1, gateway.CallCount())
}

func TestExtractJob_EmptyInputSkipsModel(t *testing.T) {
	gateway := mock.NewGateway(acmeJob)
	client := newTestClient(t, gateway)

	_, err := client.ExtractJob(context.Background(), " \n\t\x07 ")
	require.ErrorIs(t, err, ErrInvalidSchema)

	var extractionErr *Error
	require.ErrorAs(t, err, &extractionErr)
	assert.Zero(t, extractionErr.Attempts)
	assert.Zero(t, gateway.CallCount())
}

func TestExtractJob_RequiresTitle(t *testing.T) {
	client := newTestClient(t, mock.NewGateway(`{"title": "  ", "company_name": "Acme"}`))

	_, err := client.ExtractJob(context.Background(), "posting")
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.ErrorIs(t, err, core.ErrEmptyTitle)
}

func TestExtractJob_IgnoresUnknownFields(t *testing.T) {
	gateway := mock.NewGateway(`{"title": "Engineer", "perks": ["snacks"], "confidence": 0.9,
"company_name": "Acme"}`)
	client := newTestClient(t, gateway)

	data, err := client.ExtractJob(context.Background(), "posting")
	require.NoError(t, err)
	assert.Equal(t, "Engineer", data.Title)
	require.NotNil(t, data.CompanyName)
	assert.Equal(t, "Acme", *data.CompanyName)
	assert.Equal(t, 1, gateway.CallCount())
}

func TestExtractJob_UnknownFieldsStillNeedTitle(t *testing.T) {
	client := newTestClient(t, mock.NewGateway(`{"job_title": "Engineer", "perks": ["snacks"]}`))

	_, err := client.ExtractJob(context.Background(), "posting")
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.ErrorIs(t, err, core.ErrEmptyTitle)
}

func TestExtractJob_RejectsWrongTypes(t *testing.T) {
	client := newTestClient(t, mock.NewGateway(`{"title": "Engineer", "salary_min": "120k"}`))

	_, err := client.ExtractJob(context.Background(), "posting")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestExtractJob_ErrorEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		response  string
		kind      error
		callCount int
	}{
		{"invalid input", `{"error": {"code": "invalid_input", "message": "not a job posting"}}`, ErrInvalidSchema, 1},
		{"rate limited", `{"error": {"code": "rate_limited", "message": "slow down"}}`, ErrRateLimited, 3},
		{"numeric code", `{"error": {"code": 503, "message": "overloaded"}}`, ErrUpstreamUnavailable, 3},
		{"timeout", `{"error": {"code": "timeout"}}`, ErrTimeout, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := mock.NewGateway(tt.response)
			client := newTestClient(t, gateway)

			_, err := client.ExtractJob(context.Background(), "posting")
			assert.ErrorIs(t, err, tt.kind)
			assert.Equal(t, tt.callCount, gateway.CallCount())
		})
	}
}

func TestExtractJob_AbandonsHungCall(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	gateway := &mock.Gateway{
		CompleteFunc: func(ctx context.Context, req ai.Request) (string, error) {
			// Ignores ctx on purpose.
			<-release
			return acmeJob, nil
		},
	}
	client := newTestClient(t, gateway, WithRetryPolicy(fastPolicy(2)), WithCallTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := client.ExtractJob(context.Background(), "posting")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 2, gateway.CallCount())
}

func TestExtractJob_ParentCancellation(t *testing.T) {
	gateway := mock.NewGateway(acmeJob)
	client := newTestClient(t, gateway)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ExtractJob(ctx, "posting")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, KindOf(err))
	assert.Zero(t, gateway.CallCount())
}

func TestExtractJob_ParentDeadlineIsTimeout(t *testing.T) {
	gateway := &mock.Gateway{
		CompleteFunc: func(ctx context.Context, req ai.Request) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	client := newTestClient(t, gateway)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ExtractJob(ctx, "posting")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractJob_ConcurrentUse(t *testing.T) {
	gateway := mock.NewGateway(acmeJob)
	client := newTestClient(t, gateway)

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := client.ExtractJob(context.Background(), "posting")
			errs <- err
		}()
	}
	for i := 0; i < 10; i++ {
		assert.NoError(t, <-errs)
	}
	assert.Equal(t, 10, gateway.CallCount())
}

func TestExtractResume(t *testing.T) {
	gateway := mock.NewGateway(`Here is the data: {"name": "Ada Lovelace", "skills": ["math"],
		"experience": [{"title": "Analyst", "company": "Babbage & Co",}],}`)
	client := newTestClient(t, gateway)

	data, err := client.ExtractResume(context.Background(), "Ada Lovelace\nAnalyst")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", *data.Name)
	require.Len(t, data.Experience, 1)
	assert.Equal(t, "Babbage & Co", *data.Experience[0].Company)
	assert.Equal(t, ai.SchemaResume, gateway.Requests()[0].Schema)
}

func TestExtractResume_RequiresName(t *testing.T) {
	client := newTestClient(t, mock.NewGateway(`{"skills": ["go"]}`))

	_, err := client.ExtractResume(context.Background(), "resume")
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.ErrorIs(t, err, core.ErrEmptyName)
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: ErrTimeout, Attempts: 2, Err: errors.New("boom")}
	assert.Equal(t, "extraction timed out after 2 attempt(s): boom", err.Error())
	assert.True(t, err.Retryable())
	assert.False(t, (&Error{Kind: ErrInvalidSchema}).Retryable())
}
