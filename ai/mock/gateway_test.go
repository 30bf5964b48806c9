package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/jobstream/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateway_Response(t *testing.T) {
	g := NewGateway(`{"title": "Engineer"}`)
	got, err := g.Complete(context.Background(), ai.Request{Schema: ai.SchemaJob, Text: "posting"})
	require.NoError(t, err)
	assert.Equal(t, `{"title": "Engineer"}`, got)
	assert.Equal(t, 1, g.CallCount())
	assert.Equal(t, "posting", g.Requests()[0].Text)

	g.Reset()
	assert.Zero(t, g.CallCount())
}

func TestNewSequence(t *testing.T) {
	boom := errors.New("boom")
	g := NewSequence(boom, "first", "last")
	ctx := context.Background()

	_, err := g.Complete(ctx, ai.Request{})
	assert.ErrorIs(t, err, boom)

	got, err := g.Complete(ctx, ai.Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	for i := 0; i < 2; i++ {
		got, err = g.Complete(ctx, ai.Request{})
		require.NoError(t, err)
		assert.Equal(t, "last", got, "the last result repeats")
	}

	_, err = NewSequence().Complete(ctx, ai.Request{})
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}
