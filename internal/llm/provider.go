// Package llm abstracts the generative providers used for content risk
// analysis and message verification. Every call is JSON-mode: the provider
// must return a single JSON object, which callers unmarshal into their own
// response shapes.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Request is one JSON-mode classification call.
type Request struct {
	// System sets the assistant role for the call.
	System string

	// Prompt is the user message. It must instruct the model to answer
	// with a JSON object; providers only enforce the output shape.
	Prompt string

	// Model overrides the configured model when set.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Images are optional data URLs or https URLs attached to the call.
	// Only providers with vision support use them.
	Images []string
}

// Provider is a generative model backend.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// ClassifyJSON runs the request and returns the JSON object the model
	// produced.
	ClassifyJSON(ctx context.Context, req Request) (json.RawMessage, error)

	// IsAvailable checks if the provider is properly configured and
	// reachable.
	IsAvailable(ctx context.Context) bool
}

// extractJSON pulls the outermost JSON object out of a model response,
// tolerating code fences and prose around it.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %.80q", text)
	}

	raw := json.RawMessage(text[start : end+1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("malformed JSON in response: %.80q", string(raw))
	}
	return raw, nil
}
