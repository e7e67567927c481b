package agent

import (
	"context"
	"fmt"
)

// ChatProvider abstracts one chat backend. Converse performs a single
// request/response round trip; the tool loop lives in the Runner.
type ChatProvider interface {
	Converse(ctx context.Context, request ChatRequest) (*ChatResponse, error)
	Name() string
}

// ProviderOptions selects and configures a chat backend.
type ProviderOptions struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
}

// NewProvider creates a chat provider from options.
func NewProvider(opts ProviderOptions) (ChatProvider, error) {
	switch opts.Provider {
	case "openai":
		return NewOpenAIProvider(opts.APIKey, opts.BaseURL), nil
	case "anthropic":
		return NewAnthropicProvider(opts.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", opts.Provider)
	}
}
