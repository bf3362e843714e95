package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlasci/coalesce/internal/model"
)

// Provider defines the interface for LLM providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Narrate generates the modernization roadmap narrative
	Narrate(ctx context.Context, req NarrateRequest) (*NarrateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// NarrateRequest contains the input for roadmap narration.
// The narrative is strictly additive prose: it never feeds back into
// ranking scores or report status.
type NarrateRequest struct {
	RunID string

	// Entries are the confidence-ordered modernization insights the
	// narrative must stay grounded in. The LLM may not introduce subjects
	// beyond these.
	Entries []model.RoadmapEntry

	// Improvements gives the narrative context about what ranked highest
	Improvements []model.ImprovementItem

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// NarrateResponse contains the LLM's narrative output
type NarrateResponse struct {
	Notes      string
	Model      string
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for the provider
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}

// BuildPrompt constructs the default prompt for roadmap narration.
// The subject allowlist keeps the narrative grounded in actual insights.
func BuildPrompt(req NarrateRequest) string {
	var subjects []string
	for _, e := range req.Entries {
		subjects = append(subjects, e.Subject)
	}

	prompt := fmt.Sprintf(`You are writing the narrative for the Modernization Roadmap section of a pipeline analysis report.

CRITICAL RULES:
1. You MUST ONLY discuss these subjects:
%s

2. DO NOT invent findings, subjects, or recommendations beyond the insights listed below.
3. Describe suggested modernization steps and their stated rationale; do not assert outcomes.
4. Keep it to 3-5 sentences of plain prose.

Modernization insights (confidence descending):
`, joinSubjects(subjects))

	for i, e := range req.Entries {
		if i >= 10 {
			prompt += fmt.Sprintf("... and %d more insights\n", len(req.Entries)-10)
			break
		}
		prompt += fmt.Sprintf("- %s (confidence %.2f): %s\n", e.Subject, e.Confidence, e.Rationale)
	}

	if len(req.Improvements) > 0 {
		prompt += "\nTop ranked improvements for context:\n"
		for i, item := range req.Improvements {
			if i >= 3 {
				break
			}
			prompt += fmt.Sprintf("%d. %s (confidence %.2f)\n", item.Rank, item.Title, item.Confidence)
		}
	}

	return prompt
}

func joinSubjects(subjects []string) string {
	if len(subjects) == 0 {
		return "(No subjects available)"
	}
	var b strings.Builder
	for i, s := range subjects {
		if i >= 20 {
			fmt.Fprintf(&b, "\n... and %d more subjects", len(subjects)-20)
			break
		}
		fmt.Fprintf(&b, "\n- %s", s)
	}
	return b.String()
}
