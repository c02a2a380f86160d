package llm

import (
	"fmt"
	"strings"

	"github.com/safelens/safelens/internal/model"
)

// NewProvider creates a new LLM provider based on configuration. An empty
// provider name disables generative stages; the caller gets (nil, nil) and
// must treat the stages as degraded.
func NewProvider(config model.LLMConfig) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}
