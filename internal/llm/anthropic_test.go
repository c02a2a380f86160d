package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safelens/safelens/internal/model"
)

func TestAnthropicProvider_ClassifyJSON_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant-test" {
			t.Errorf("missing api key header")
		}

		resp := anthropicResponse{
			Model: "claude-3-5-sonnet-20241022",
			Content: []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			}{
				{Type: "text", Text: "```json\n{\"is_phishing\": true, \"confidence\": 0.8}\n```"},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(model.LLMConfig{
		APIKey:  "sk-ant-test",
		BaseURL: server.URL,
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	raw, err := provider.ClassifyJSON(context.Background(), Request{
		System: "You verify SMS messages.",
		Prompt: "Verify this message.",
	})
	if err != nil {
		t.Fatalf("ClassifyJSON failed: %v", err)
	}

	var parsed struct {
		IsPhishing bool    `json:"is_phishing"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !parsed.IsPhishing || parsed.Confidence != 0.8 {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestAnthropicProvider_ClassifyJSON_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid key"}}`))
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(model.LLMConfig{
		APIKey:  "sk-ant-bad",
		BaseURL: server.URL,
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.ClassifyJSON(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestAnthropicProvider_RequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(model.LLMConfig{}); err == nil {
		t.Fatal("Expected error for missing API key")
	}
}

func TestAnthropicProvider_ClassifyJSON_EmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(anthropicResponse{Model: "claude-3-5-sonnet-20241022"})
	}))
	defer server.Close()

	provider, err := NewAnthropicProvider(model.LLMConfig{
		APIKey:  "sk-ant-test",
		BaseURL: server.URL,
		Timeout: 5,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	if _, err := provider.ClassifyJSON(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("Expected error for empty content")
	}
}
