package services

import (
	"context"
	"fmt"
	"strings"

	"stock-analyst/observability"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient defines the Messages API call used (for testing)
type anthropicClient interface {
	NewMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type anthropicClientWrapper struct {
	client anthropic.Client
}

func (w *anthropicClientWrapper) NewMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return w.client.Messages.New(ctx, params)
}

// AnthropicService talks to the Anthropic Messages API directly
type AnthropicService struct {
	client    anthropicClient
	model     string
	maxTokens int
}

// NewAnthropicService creates a new AnthropicService instance
func NewAnthropicService(apiKey, model string, maxTokens int) (*AnthropicService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicService{
		client:    &anthropicClientWrapper{client: client},
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (s *AnthropicService) Model() string    { return s.model }
func (s *AnthropicService) Provider() string { return BreakerAnthropic }

// Complete sends one user turn with the system prompt. Schemas are carried
// in the system prompt.
func (s *AnthropicService) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerAnthropic, "complete")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerAnthropic, func() (*Completion, error) {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = s.maxTokens
		}

		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(s.model),
			MaxTokens: int64(maxTokens),
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
			},
			Temperature: anthropic.Float(req.Temperature),
		}
		if system := schemaInstruction(req.System, req.Schema); system != "" {
			params.System = []anthropic.TextBlockParam{
				{Text: system},
			}
		}

		resp, err := s.client.NewMessage(ctx, params)
		if err != nil {
			return nil, providerError(BreakerAnthropic, fmt.Errorf("Claude API call failed: %w", err))
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}

		content := text.String()
		if req.Schema != nil {
			content = stripCodeFence(content)
		}
		model := string(resp.Model)
		if model == "" {
			model = s.model
		}
		return &Completion{
			Content:          content,
			Model:            model,
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
		}, nil
	})

	timer.ObserveExternalAPI(BreakerAnthropic, "complete")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerAnthropic, "complete", categorizeAPIError(err))
	}
	return result, err
}
