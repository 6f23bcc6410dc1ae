package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"
)

type mockGeminiClient struct {
	generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *mockGeminiClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.generateFunc(ctx, model, contents, config)
}

func geminiText(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}}},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     30,
			CandidatesTokenCount: 7,
		},
	}
}

func TestGeminiComplete_Success(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	var gotConfig *genai.GenerateContentConfig
	var gotModel string
	client := &mockGeminiClient{
		generateFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel = model
			gotConfig = config
			return geminiText(`{"a":1}`), nil
		},
	}

	s := &GeminiService{client: client, model: "gemini-2.0-flash", maxTokens: 2000}
	result, err := s.Complete(context.Background(), CompletionRequest{
		System: "sys",
		User:   "user",
		Schema: &JSONSchema{Name: "x", Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"a": map[string]any{"type": "integer"}},
			"required":   []string{"a"},
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != `{"a":1}` {
		t.Errorf("content = %q", result.Content)
	}
	if result.PromptTokens != 30 || result.CompletionTokens != 7 {
		t.Errorf("usage = %d/%d", result.PromptTokens, result.CompletionTokens)
	}
	if gotModel != "gemini-2.0-flash" {
		t.Errorf("model = %s", gotModel)
	}
	if gotConfig.ResponseMIMEType != "application/json" {
		t.Errorf("mime type = %s", gotConfig.ResponseMIMEType)
	}
	if gotConfig.ResponseSchema == nil || gotConfig.ResponseSchema.Type != genai.TypeObject {
		t.Errorf("response schema = %+v", gotConfig.ResponseSchema)
	}
	if gotConfig.MaxOutputTokens != 2000 {
		t.Errorf("max output tokens = %d", gotConfig.MaxOutputTokens)
	}
}

func TestGeminiComplete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		wantErr string
	}{
		{"api error", nil, errors.New("quota"), "failed to generate content"},
		{"nil response", nil, nil, "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
			client := &mockGeminiClient{
				generateFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			s := &GeminiService{client: client, model: "gemini-2.0-flash", maxTokens: 100}
			_, err := s.Complete(context.Background(), CompletionRequest{User: "x"})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestToGenaiSchema(t *testing.T) {
	schema := toGenaiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"recommendation": map[string]any{"type": "string", "enum": []string{"BUY", "HOLD", "SELL"}},
			"confidence":     map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"key_points": map[string]any{
				"type":     "array",
				"maxItems": 8,
				"items":    map[string]any{"type": "string", "maxLength": 200},
			},
			"ok": map[string]any{"type": "boolean"},
		},
		"required": []string{"recommendation"},
	})

	if schema.Type != genai.TypeObject {
		t.Fatalf("type = %v", schema.Type)
	}
	if len(schema.Required) != 1 || schema.Required[0] != "recommendation" {
		t.Errorf("required = %v", schema.Required)
	}
	rec := schema.Properties["recommendation"]
	if rec.Type != genai.TypeString || len(rec.Enum) != 3 {
		t.Errorf("recommendation = %+v", rec)
	}
	conf := schema.Properties["confidence"]
	if conf.Minimum == nil || *conf.Minimum != 0 || conf.Maximum == nil || *conf.Maximum != 100 {
		t.Errorf("confidence bounds = %v/%v", conf.Minimum, conf.Maximum)
	}
	kp := schema.Properties["key_points"]
	if kp.Type != genai.TypeArray || kp.MaxItems == nil || *kp.MaxItems != 8 {
		t.Errorf("key_points = %+v", kp)
	}
	if kp.Items == nil || kp.Items.MaxLength == nil || *kp.Items.MaxLength != 200 {
		t.Errorf("key_points items = %+v", kp.Items)
	}
	if schema.Properties["ok"].Type != genai.TypeBoolean {
		t.Errorf("ok type = %v", schema.Properties["ok"].Type)
	}

	if toGenaiSchema(nil) != nil {
		t.Error("empty schema map should convert to nil")
	}
}

func TestGeminiComplete_NoCandidatesKeepsUsage(t *testing.T) {
	SetGlobalRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))
	client := &mockGeminiClient{
		generateFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{
				UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 64},
			}, nil
		},
	}
	s := &GeminiService{client: client, model: "gemini-2.0-flash", maxTokens: 100}
	result, err := s.Complete(context.Background(), CompletionRequest{User: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "" || result.PromptTokens != 64 {
		t.Errorf("completion = %+v, want empty content with billed tokens", result)
	}
}
