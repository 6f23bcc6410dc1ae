package services

import (
	"context"
	"fmt"
	"strings"

	"stock-analyst/observability"

	"google.golang.org/genai"
)

// geminiClient defines the GenerateContent call used (for testing)
type geminiClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiClientWrapper struct {
	client *genai.Client
}

func (w *geminiClientWrapper) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return w.client.Models.GenerateContent(ctx, model, contents, config)
}

// GeminiService generates completions with Google Gemini
type GeminiService struct {
	client    geminiClient
	model     string
	maxTokens int
}

// NewGeminiService creates a new GeminiService instance
func NewGeminiService(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiService{
		client:    &geminiClientWrapper{client: client},
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

func (s *GeminiService) Model() string    { return s.model }
func (s *GeminiService) Provider() string { return BreakerGemini }

// Complete generates content, enforcing the schema through ResponseSchema
func (s *GeminiService) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerGemini, "complete")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerGemini, func() (*Completion, error) {
		maxTokens := req.MaxTokens
		if maxTokens <= 0 {
			maxTokens = s.maxTokens
		}

		config := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(req.Temperature)),
			MaxOutputTokens: int32(maxTokens),
		}
		if req.System != "" {
			config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
		}
		if req.Schema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = toGenaiSchema(req.Schema.Schema)
		}

		resp, err := s.client.GenerateContent(ctx, s.model, genai.Text(req.User), config)
		if err != nil {
			return nil, providerError(BreakerGemini, fmt.Errorf("failed to generate content: %w", err))
		}
		if resp == nil {
			return nil, fmt.Errorf("empty response from Gemini API")
		}

		var text string
		if len(resp.Candidates) > 0 {
			text = resp.Text()
		}

		c := &Completion{Content: text, Model: s.model}
		if resp.UsageMetadata != nil {
			c.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
			c.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
		}
		return c, nil
	})

	timer.ObserveExternalAPI(BreakerGemini, "complete")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerGemini, "complete", categorizeAPIError(err))
	}
	return result, err
}

// toGenaiSchema converts a JSON schema map into a genai.Schema
func toGenaiSchema(m map[string]any) *genai.Schema {
	if len(m) == 0 {
		return nil
	}

	schema := &genai.Schema{}
	if t, ok := m["type"].(string); ok {
		switch strings.ToLower(t) {
		case "object":
			schema.Type = genai.TypeObject
		case "array":
			schema.Type = genai.TypeArray
		case "string":
			schema.Type = genai.TypeString
		case "number":
			schema.Type = genai.TypeNumber
		case "integer":
			schema.Type = genai.TypeInteger
		case "boolean":
			schema.Type = genai.TypeBoolean
		}
	}
	if desc, ok := m["description"].(string); ok {
		schema.Description = desc
	}
	if enum, ok := m["enum"].([]string); ok {
		schema.Enum = enum
	}
	if req, ok := m["required"].([]string); ok {
		schema.Required = req
	}
	if v, ok := toFloat(m["minimum"]); ok {
		schema.Minimum = &v
	}
	if v, ok := toFloat(m["maximum"]); ok {
		schema.Maximum = &v
	}
	if v, ok := toInt64(m["maxLength"]); ok {
		schema.MaxLength = &v
	}
	if v, ok := toInt64(m["maxItems"]); ok {
		schema.MaxItems = &v
	}
	if items, ok := m["items"].(map[string]any); ok {
		schema.Items = toGenaiSchema(items)
	}
	if props, ok := m["properties"].(map[string]any); ok {
		schema.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				schema.Properties[name] = toGenaiSchema(pm)
			}
		}
	}
	return schema
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
