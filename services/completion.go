package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"stock-analyst/models"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// JSONSchema describes a structured output contract
type JSONSchema struct {
	Name        string
	Description string
	Schema      map[string]any
}

// CompletionRequest is a single system + user prompt exchange. A nil Schema
// requests free text.
type CompletionRequest struct {
	System      string
	User        string
	Schema      *JSONSchema
	Temperature float64
	MaxTokens   int
}

// Completion is the provider's answer with token accounting
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int64
	CompletionTokens int64
}

// TotalTokens returns prompt plus completion tokens
func (c *Completion) TotalTokens() int64 {
	return c.PromptTokens + c.CompletionTokens
}

// schemaInstruction renders the schema into the system prompt for providers
// without native structured output
func schemaInstruction(system string, schema *JSONSchema) string {
	if schema == nil {
		return system
	}
	raw, err := json.MarshalIndent(schema.Schema, "", "  ")
	if err != nil {
		return system
	}

	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nRespond with a single JSON object only, no prose and no code fences. ")
	if schema.Description != "" {
		b.WriteString(schema.Description)
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "The object must validate against this JSON schema (%s):\n%s", schema.Name, raw)
	return b.String()
}

// providerError tags a failed provider call with the error taxonomy.
// Transport failures, timeouts, auth rejections, throttling and server
// errors wrap models.ErrUpstreamUnavailable. Other client errors describe a
// bad request and are returned as is.
func providerError(service string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, models.ErrUpstreamUnavailable) {
		return err
	}
	status, ok := providerStatus(err)
	if ok && status < 500 && !transientClientStatus(status) {
		return err
	}
	return fmt.Errorf("%s unavailable: %w: %w", service, models.ErrUpstreamUnavailable, err)
}

func transientClientStatus(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return false
}

// providerStatus extracts the HTTP status from an SDK error
func providerStatus(err error) (int, bool) {
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		return openaiErr.StatusCode, true
	}
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return anthropicErr.StatusCode, true
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return genaiErr.Code, true
	}
	var awsErr interface{ HTTPStatusCode() int }
	if errors.As(err, &awsErr) {
		return awsErr.HTTPStatusCode(), true
	}
	return 0, false
}
