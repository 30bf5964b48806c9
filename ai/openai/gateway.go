package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/jobstream/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Gateway implements ai.Gateway using OpenAI-compatible chat APIs.
type Gateway struct {
	client llms.Model
	logger *slog.Logger
}

var _ ai.Gateway = (*Gateway)(nil)

// NewGateway creates a gateway for the host and model in config.
// The config is validated and normalized before use.
func NewGateway(config *ai.Config) (*Gateway, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	token := config.APIKey
	if token == "" {
		token = "none"
	}
	client, err := openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(token),
		openai.WithModel(config.Model),
	)
	if err != nil {
		return nil, err
	}
	return newGateway(client), nil
}

func newGateway(client llms.Model) *Gateway {
	return &Gateway{
		client: client,
		logger: slog.Default().With("component", "openai-gateway"),
	}
}

// Complete sends the schema prompt and text to the model and returns its first choice.
func (g *Gateway) Complete(ctx context.Context, req ai.Request) (string, error) {
	systemPrompt, err := ai.SystemPrompt(req.Schema)
	if err != nil {
		return "", err
	}
	content := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(req.Text)},
		},
	}

	response, err := g.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		classified := classify(ctx, err)
		g.logger.Debug("failed to generate content", "schema", req.Schema, "err", classified)
		return "", classified
	}
	if len(response.Choices) < 1 || strings.TrimSpace(response.Choices[0].Content) == "" {
		return "", ai.ErrEmptyResponse
	}
	return response.Choices[0].Content, nil
}

// langchaingo reports HTTP failures as "API returned unexpected status code: N".
var statusCodePattern = regexp.MustCompile(`status code: (\d{3})`)

// classify maps a langchaingo failure onto the ai transport errors.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ai.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ai.ErrTimeout, err)
	}
	if m := statusCodePattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch {
		case code == 429:
			return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
		case code == 408 || code == 504:
			return fmt.Errorf("%w: %w", ai.ErrTimeout, err)
		case code >= 400 && code < 500:
			return fmt.Errorf("%w: %w", ai.ErrRejected, err)
		}
	}
	return fmt.Errorf("%w: %w", ai.ErrUnavailable, err)
}
