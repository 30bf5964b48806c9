// Package gemini provides an ai.Gateway for Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/poiesic/jobstream/ai"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

// contentGenerator is the slice of genai.Models the gateway uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gateway implements ai.Gateway on the Gemini API backend.
type Gateway struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

var _ ai.Gateway = (*Gateway)(nil)

// NewGateway creates a Gemini gateway. config.APIKey is required; an empty model
// falls back to gemini-2.5-flash.
func NewGateway(ctx context.Context, config *ai.Config) (*Gateway, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGateway(client.Models, config.Model), nil
}

func newGateway(models contentGenerator, model string) *Gateway {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Gateway{
		models: models,
		model:  model,
		logger: slog.Default().With("component", "gemini-gateway", "model", model),
	}
}

// Complete sends the text with the schema prompt as system instruction and returns the
// concatenated text parts of the answer.
func (g *Gateway) Complete(ctx context.Context, req ai.Request) (string, error) {
	systemPrompt, err := ai.SystemPrompt(req.Schema)
	if err != nil {
		return "", err
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Text), config)
	if err != nil {
		classified := classify(ctx, err)
		g.logger.Debug("generate content failed", "schema", req.Schema, "err", classified)
		return "", classified
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", ai.ErrEmptyResponse
	}
	return output, nil
}

// classify maps Gemini API errors onto the ai transport errors. 429 and
// RESOURCE_EXHAUSTED mean quota; 408/504 and DEADLINE_EXCEEDED mean timeout; other 4xx
// codes mean the request was rejected; anything else is reported as unavailable.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ai.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
			apiErr = *apiErrPtr
		}
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
	case apiErr.Code == http.StatusRequestTimeout || apiErr.Code == http.StatusGatewayTimeout ||
		apiErr.Status == "DEADLINE_EXCEEDED":
		return fmt.Errorf("%w: %w", ai.ErrTimeout, err)
	case apiErr.Code >= http.StatusBadRequest && apiErr.Code < http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ai.ErrRejected, err)
	}
	return fmt.Errorf("%w: %w", ai.ErrUnavailable, err)
}
