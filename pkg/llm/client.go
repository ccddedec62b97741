// Package llm wraps the Anthropic Messages API behind a narrow interface
// the classification pipeline calls three times per case (spec.md §4.3),
// each call a single-turn completion rather than a streaming conversation.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sony/gobreaker"

	"github.com/svcdesk/caseintake/pkg/config"
	caseerrors "github.com/svcdesk/caseintake/pkg/errors"
)

// Request is one single-turn completion call.
type Request struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Response carries the model's raw text plus token accounting for the
// caller to fold into models.StageUsage.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Client is the pipeline-facing completion interface. Tests substitute a
// fake; production wires Anthropic.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// AnthropicClient calls the Anthropic Messages API, wrapped in a circuit
// breaker the same way pkg/servicenow wraps its HTTP calls — an LLM outage
// should trip open rather than let every pipeline stage pile up retries.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	breaker *gobreaker.CircuitBreaker
}

// NewAnthropicClient builds a client from LLMConfig. The API key is read
// from the environment variable LLMConfig.APIKeyEnv names, never from YAML,
// matching pkg/servicenow's bearer-token handling.
func NewAnthropicClient(cfg config.LLMConfig) *AnthropicClient {
	key := os.Getenv(cfg.APIKeyEnv)
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-anthropic",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &AnthropicClient{
		client:  anthropic.NewClient(option.WithAPIKey(key)),
		model:   model,
		breaker: breaker,
	}
}

// Complete issues one non-streaming completion call, mapping failures into
// the shared error taxonomy: breaker-open -> DependencyDisabled, everything
// else -> Transient (the classification pipeline retries stage parse
// failures itself; transport failures are the queue layer's job to retry).
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (Response, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokensOrDefault(req.MaxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
			},
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.System}}
		}
		if req.Temperature >= 0 {
			params.Temperature = anthropic.Float(req.Temperature)
		}

		msg, err := c.client.Messages.New(ctx, params)
		if err != nil {
			return Response{}, fmt.Errorf("anthropic completion failed: %w", err)
		}

		var text string
		for _, block := range msg.Content {
			if b := block.AsAny(); b != nil {
				if tb, ok := b.(anthropic.TextBlock); ok {
					text += tb.Text
				}
			}
		}

		return Response{
			Text:         text,
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		}, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return Response{}, caseerrors.DependencyDisabled("llm circuit breaker open", err)
		}
		return Response{}, caseerrors.Transient("llm completion failed", err)
	}
	return out.(Response), nil
}

func maxTokensOrDefault(n int64) int64 {
	if n <= 0 {
		return 2048
	}
	return n
}
