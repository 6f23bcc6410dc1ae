package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stock-analyst/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// bedrockClient defines the Bedrock runtime call used (for testing)
type bedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockService handles communication with AWS Bedrock for Claude models
type BedrockService struct {
	client           bedrockClient
	model            string
	anthropicVersion string
	maxTokens        int
}

// ClaudeRequest represents the request format for Claude models via Bedrock
type ClaudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      *float64        `json:"temperature,omitempty"`
	System           string          `json:"system,omitempty"`
	Messages         []ClaudeMessage `json:"messages"`
}

// ClaudeMessage represents a message in the Claude conversation
type ClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ClaudeResponse represents the response from Claude models
type ClaudeResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockService creates a new BedrockService instance
func NewBedrockService(ctx context.Context, region, modelID, anthropicVersion string, maxTokens int) (*BedrockService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return newBedrockServiceWithClient(bedrockruntime.NewFromConfig(cfg), modelID, anthropicVersion, maxTokens), nil
}

func newBedrockServiceWithClient(client bedrockClient, modelID, anthropicVersion string, maxTokens int) *BedrockService {
	if anthropicVersion == "" {
		anthropicVersion = "bedrock-2023-05-31"
	}
	return &BedrockService{
		client:           client,
		model:            modelID,
		anthropicVersion: anthropicVersion,
		maxTokens:        maxTokens,
	}
}

func (s *BedrockService) Model() string    { return s.model }
func (s *BedrockService) Provider() string { return BreakerBedrock }

// Complete invokes Claude on Bedrock. Schemas are enforced through the
// system prompt since the messages API has no response format field.
func (s *BedrockService) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerBedrock, "complete")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerBedrock, func() (*Completion, error) {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = s.maxTokens
		}
		temperature := req.Temperature

		request := ClaudeRequest{
			AnthropicVersion: s.anthropicVersion,
			MaxTokens:        maxTokens,
			Temperature:      &temperature,
			System:           schemaInstruction(req.System, req.Schema),
			Messages: []ClaudeMessage{
				{Role: "user", Content: req.User},
			},
		}

		reqBody, err := json.Marshal(request)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(s.model),
			Body:        reqBody,
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return nil, providerError(BreakerBedrock, fmt.Errorf("failed to invoke model: %w", err))
		}

		var response ClaudeResponse
		if err := json.Unmarshal(output.Body, &response); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}

		var text strings.Builder
		for _, block := range response.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}

		content := text.String()
		if req.Schema != nil {
			content = stripCodeFence(content)
		}
		return &Completion{
			Content:          content,
			Model:            s.model,
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
		}, nil
	})

	timer.ObserveExternalAPI(BreakerBedrock, "complete")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerBedrock, "complete", categorizeAPIError(err))
	}
	return result, err
}
