package ai

import (
	"context"
	"encoding/json"
)

// GenerateRequest is one JSON-constrained completion sent to a hosted model.
type GenerateRequest struct {
	Model             string
	SystemInstruction string
	Prompt            string
	// ResponseSchema is a JSON Schema document (lowercase types); adapters translate it
	// into whatever their provider expects.
	ResponseSchema json.RawMessage
	ThinkingBudget int32
}

// Client sends a single request and returns the raw response text.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// ClientConfig carries everything a provider needs to build a client for one call.
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

// ClientFactory builds a fresh Client. Implementations must not share clients across calls.
type ClientFactory func(ctx context.Context, cfg ClientConfig) (Client, error)

// CredentialSource resolves the provider API key. It is consulted on every call.
type CredentialSource interface {
	APIKey() string
}
