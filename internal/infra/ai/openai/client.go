package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/chatlog-analyzer/internal/domain/ai"
)

const DefaultModel = "o3-2025-04-16"

type Client struct {
	*openai.Client
}

var _ ai.Client = (*Client)(nil)

// NewClient is an ai.ClientFactory for OpenAI-compatible endpoints.
func NewClient(_ context.Context, cfg ai.ClientConfig) (ai.Client, error) {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{Client: openai.NewClientWithConfig(oc)}, nil
}

func (c *Client) Generate(ctx context.Context, in ai.GenerateRequest) (string, error) {
	model := in.Model
	if model == "" {
		model = DefaultModel
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: in.SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: in.Prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if len(in.ResponseSchema) > 0 {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "analysis_report",
				Schema: in.ResponseSchema,
			},
		}
	}
	// thinking budget maps to the completion cap on reasoning models (o1/o3/o4/gpt-5*)
	if in.ThinkingBudget > 0 && isReasoningModel(model) {
		req.MaxCompletionTokens = int(in.ThinkingBudget)
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", ai.ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
