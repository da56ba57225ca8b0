// Package gemini is the Google Gemini adapter for the ai.Client port.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/bryanwahyu/chatlog-analyzer/internal/domain/ai"
)

const DefaultModel = "gemini-2.5-pro"

// Client wraps a genai client bound to one API key.
type Client struct {
	client *genai.Client
}

var _ ai.Client = (*Client)(nil)

// NewClient is an ai.ClientFactory. Each call returns an independent client.
func NewClient(ctx context.Context, cfg ai.ClientConfig) (ai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: cli}, nil
}

func (c *Client) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if len(req.ResponseSchema) > 0 {
		schema, err := toSchema(req.ResponseSchema)
		if err != nil {
			return "", err
		}
		config.ResponseSchema = schema
	}
	if req.ThinkingBudget != 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(req.ThinkingBudget)}
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", ai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return resp.Text(), nil
}

// toSchema converts a JSON Schema document into the OpenAPI subset Gemini accepts,
// which spells types in upper case.
func toSchema(raw json.RawMessage) (*genai.Schema, error) {
	var s genai.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("invalid response schema: %w", err)
	}
	normalize(&s)
	return &s, nil
}

func normalize(s *genai.Schema) {
	if s == nil {
		return
	}
	s.Type = genai.Type(strings.ToUpper(string(s.Type)))
	for _, p := range s.Properties {
		normalize(p)
	}
	normalize(s.Items)
	for _, a := range s.AnyOf {
		normalize(a)
	}
}
