package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider creates a new LLM provider based on configuration.
// An empty provider name means the narrative feature is disabled.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return NewOpenAIProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", config.Provider)
	}
}

// Narrator wraps an optional provider and degrades to no narrative on any
// failure: the roadmap's insight entries are the authoritative content, the
// narrative is garnish.
type Narrator struct {
	provider Provider
	config   Config
}

// NewNarrator creates a narrator; returns nil when no provider is configured
func NewNarrator(config Config) (*Narrator, error) {
	provider, err := NewProvider(config)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, nil
	}
	return &Narrator{provider: provider, config: config}, nil
}

// Narrate produces the roadmap notes, or "" when there is nothing to narrate
func (n *Narrator) Narrate(ctx context.Context, req NarrateRequest) (string, error) {
	if n == nil || len(req.Entries) == 0 {
		return "", nil
	}

	resp, err := n.provider.Narrate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Notes, nil
}
