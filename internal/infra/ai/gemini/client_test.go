package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/bryanwahyu/chatlog-analyzer/internal/domain/ai"
)

const schema = `{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "questions": {"type": "array", "items": {"type": "object", "properties": {"text": {"type": "string"}}}}
  },
  "required": ["summary"]
}`

func TestToSchema(t *testing.T) {
	s, err := toSchema(json.RawMessage(schema))
	if err != nil {
		t.Fatalf("toSchema: %v", err)
	}
	if s.Type != genai.TypeObject {
		t.Errorf("Type = %q", s.Type)
	}
	if s.Properties["summary"].Type != genai.TypeString {
		t.Errorf("summary type = %q", s.Properties["summary"].Type)
	}
	items := s.Properties["questions"].Items
	if items == nil || items.Type != genai.TypeObject || items.Properties["text"].Type != genai.TypeString {
		t.Errorf("nested items not normalized: %+v", items)
	}
	if len(s.Required) != 1 || s.Required[0] != "summary" {
		t.Errorf("Required = %v", s.Required)
	}
}

func TestToSchema_Invalid(t *testing.T) {
	if _, err := toSchema(json.RawMessage(`{"type":`)); err == nil {
		t.Error("expected error for invalid schema")
	}
}

func TestGenerate(t *testing.T) {
	var gotPath, gotKey, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"  {\"summary\":\"ok\"}\n"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	cli, err := NewClient(context.Background(), ai.ClientConfig{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	text, err := cli.Generate(context.Background(), ai.GenerateRequest{
		SystemInstruction: "be precise",
		Prompt:            "analyze this",
		ResponseSchema:    json.RawMessage(schema),
		ThinkingBudget:    32768,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.TrimSpace(text) != `{"summary":"ok"}` {
		t.Errorf("text = %q", text)
	}

	if !strings.HasSuffix(gotPath, "models/"+DefaultModel+":generateContent") {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	for _, want := range []string{
		`"responseMimeType":"application/json"`,
		`"thinkingBudget":32768`,
		`"type":"OBJECT"`,
		"be precise",
		"analyze this",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("request body missing %s: %s", want, gotBody)
		}
	}
}

func TestGenerate_Quota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	cli, err := NewClient(context.Background(), ai.ClientConfig{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = cli.Generate(context.Background(), ai.GenerateRequest{Prompt: "x"})
	if !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Errorf("expected quota error, got %v", err)
	}
}

func TestNewClient_Independent(t *testing.T) {
	a, err := NewClient(context.Background(), ai.ClientConfig{APIKey: "one"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	b, err := NewClient(context.Background(), ai.ClientConfig{APIKey: "two"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if a == b {
		t.Error("factory must not share clients")
	}
}
