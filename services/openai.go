package services

import (
	"context"
	"fmt"

	appconfig "stock-analyst/config"
	"stock-analyst/observability"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// openaiClient defines the interface for OpenAI API calls (for testing)
type openaiClient interface {
	CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// openaiClientWrapper wraps the openai.Client to implement our interface
type openaiClientWrapper struct {
	client openai.Client
}

func (w *openaiClientWrapper) CreateChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return w.client.Chat.Completions.New(ctx, params)
}

// OpenAIService handles communication with OpenAI API
type OpenAIService struct {
	client    openaiClient
	model     string
	maxTokens int
}

// NewOpenAIService creates a new OpenAIService instance. OPENAI_BASE_URL
// points it at any OpenAI-compatible endpoint.
func NewOpenAIService(cfg *appconfig.Config) (*OpenAIService, error) {
	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAI.APIKey)}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIService{
		client:    &openaiClientWrapper{client: client},
		model:     cfg.OpenAI.Model,
		maxTokens: cfg.OpenAI.MaxTokens,
	}, nil
}

// newOpenAIServiceWithClient creates an OpenAIService with a custom client (for testing)
func newOpenAIServiceWithClient(client openaiClient, model string, maxTokens int) *OpenAIService {
	return &OpenAIService{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
	}
}

func (s *OpenAIService) Model() string    { return s.model }
func (s *OpenAIService) Provider() string { return BreakerOpenAI }

// Complete sends the prompts to OpenAI, using JSON schema response format
// when the request carries a schema
func (s *OpenAIService) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerOpenAI, "complete")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerOpenAI, func() (*Completion, error) {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = s.maxTokens
		}

		params := openai.ChatCompletionNewParams{
			Model:       shared.ChatModel(s.model),
			MaxTokens:   openai.Int(int64(maxTokens)),
			Temperature: openai.Float(req.Temperature),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(req.System),
				openai.UserMessage(req.User),
			},
		}
		if req.Schema != nil {
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
					JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
						Name:        req.Schema.Name,
						Description: openai.String(req.Schema.Description),
						Schema:      req.Schema.Schema,
					},
				},
			}
		}

		completion, err := s.client.CreateChatCompletion(ctx, params)
		if err != nil {
			return nil, providerError(BreakerOpenAI, fmt.Errorf("failed to invoke OpenAI: %w", err))
		}

		// An empty reply is still billed; the caller decides what to do with it
		var content string
		if len(completion.Choices) > 0 {
			content = completion.Choices[0].Message.Content
		}

		model := completion.Model
		if model == "" {
			model = s.model
		}
		return &Completion{
			Content:          content,
			Model:            model,
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		}, nil
	})

	timer.ObserveExternalAPI(BreakerOpenAI, "complete")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerOpenAI, "complete", categorizeAPIError(err))
	}
	return result, err
}
