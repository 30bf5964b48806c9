package mock

import (
	"context"
	"sync"

	"github.com/poiesic/jobstream/ai"
)

// Gateway is a test double for ai.Gateway. It is safe for concurrent use.
type Gateway struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Response.
	CompleteFunc func(ctx context.Context, req ai.Request) (string, error)

	// Response is returned when CompleteFunc is nil.
	Response string

	mu       sync.Mutex
	requests []ai.Request
}

var _ ai.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway that always answers response.
func NewGateway(response string) *Gateway {
	return &Gateway{Response: response}
}

// NewSequence creates a gateway that answers with the given results in order and
// repeats the last one once exhausted. A result is either a string or an error.
func NewSequence(results ...any) *Gateway {
	g := &Gateway{}
	g.CompleteFunc = func(ctx context.Context, req ai.Request) (string, error) {
		if len(results) == 0 {
			return "", ai.ErrEmptyResponse
		}
		idx := min(g.CallCount(), len(results)) - 1
		switch r := results[idx].(type) {
		case error:
			return "", r
		case string:
			return r, nil
		}
		return "", ai.ErrEmptyResponse
	}
	return g
}

func (g *Gateway) Complete(ctx context.Context, req ai.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	fn := g.CompleteFunc
	response := g.Response
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return response, nil
}

// CallCount returns the number of Complete calls so far.
func (g *Gateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// Requests returns a copy of the requests received so far.
func (g *Gateway) Requests() []ai.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]ai.Request(nil), g.requests...)
}

// Reset forgets recorded calls and clears CompleteFunc.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = nil
	g.CompleteFunc = nil
}
