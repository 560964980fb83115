package tutor

import (
	"fmt"
)

// NewProvider creates a Provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		p, err := NewOpenAIProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing openai provider: %w", err)
		}
		return p, nil
	case "anthropic":
		p, err := NewAnthropicProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("initializing anthropic provider: %w", err)
		}
		return p, nil
	case "mock":
		return NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown tutor provider: %q", cfg.Provider)
	}
}
