package model

import "time"

// Config is the complete engine configuration.
// Hierarchy (highest to lowest priority): CLI flags, COALESCE_* environment
// variables, config file (~/.coalesce/config.yaml), defaults.
type Config struct {
	Correlation CorrelationConfig `yaml:"correlation" mapstructure:"correlation"`
	Sources     SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Linking     LinkingConfig     `yaml:"linking" mapstructure:"linking"`
	Ranking     RankingConfig     `yaml:"ranking" mapstructure:"ranking"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	LLM         LLMConfig         `yaml:"llm" mapstructure:"llm"`
}

// CorrelationConfig controls the bounded-wait join
type CorrelationConfig struct {
	Window        time.Duration `yaml:"window" mapstructure:"window"`                 // max wait for all inputs of a run
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"` // deadline sweep period
}

// SourcesConfig configures the three upstream fetch clients
type SourcesConfig struct {
	Graph SourceConfig `yaml:"graph" mapstructure:"graph"`
	Rule  SourceConfig `yaml:"rule" mapstructure:"rule"`
	AI    SourceConfig `yaml:"ai" mapstructure:"ai"`
}

// ByKind returns the client configuration for one source kind
func (s SourcesConfig) ByKind(kind SourceKind) SourceConfig {
	switch kind {
	case SourceRule:
		return s.Rule
	case SourceAI:
		return s.AI
	default:
		return s.Graph
	}
}

// SourceConfig configures one upstream fetch client
type SourceConfig struct {
	Endpoint     string        `yaml:"endpoint" mapstructure:"endpoint"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RatePerSec   float64       `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RateBurst    int           `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LinkingConfig controls subject resolution
type LinkingConfig struct {
	// Containment enables resolving a finding's subject to its nearest
	// enclosing graph node when no exact subject match exists.
	Containment bool `yaml:"containment" mapstructure:"containment"`
}

// RankingConfig makes the scoring policy explicit rather than hard-coded
type RankingConfig struct {
	// SeverityWeights normalizes the rule engine's ordinal severity scale
	// into [0,1] for the ranking formula.
	SeverityWeights map[Severity]float64 `yaml:"severity_weights" mapstructure:"severity_weights"`
	// DefaultConfidence substitutes for a rule finding with no raw
	// confidence, keyed by severity. Never zero-skip.
	DefaultConfidence map[Severity]float64 `yaml:"default_confidence" mapstructure:"default_confidence"`
	RuleWeight        float64              `yaml:"rule_weight" mapstructure:"rule_weight"`
	AIWeight          float64              `yaml:"ai_weight" mapstructure:"ai_weight"`
}

// CacheConfig controls the per-run fetch payload cache
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// OutputConfig controls artifact publishing
type OutputConfig struct {
	ArtifactDir   string `yaml:"artifact_dir" mapstructure:"artifact_dir"`
	IncludeFooter bool   `yaml:"include_footer" mapstructure:"include_footer"`
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
}

// ConcurrencyConfig bounds parallelism
type ConcurrencyConfig struct {
	FetchWorkers int `yaml:"fetch_workers" mapstructure:"fetch_workers"`
}

// LLMConfig configures the optional modernization narrative.
// CRITICAL: the narrative never affects ranking scores.
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // "openai" or "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Correlation: CorrelationConfig{
			Window:        5 * time.Minute,
			SweepInterval: 10 * time.Second,
		},
		Sources: SourcesConfig{
			Graph: defaultSourceConfig("http://localhost:8081"),
			Rule:  defaultSourceConfig("http://localhost:8082"),
			AI:    defaultSourceConfig("http://localhost:8083"),
		},
		Linking: LinkingConfig{
			Containment: true,
		},
		Ranking: RankingConfig{
			SeverityWeights: map[Severity]float64{
				SeverityInfo:     0.2,
				SeverityLow:      0.4,
				SeverityMedium:   0.6,
				SeverityHigh:     0.8,
				SeverityCritical: 1.0,
			},
			DefaultConfidence: map[Severity]float64{
				SeverityInfo:     0.5,
				SeverityLow:      0.6,
				SeverityMedium:   0.7,
				SeverityHigh:     0.8,
				SeverityCritical: 0.9,
			},
			RuleWeight: 0.6,
			AIWeight:   0.4,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Output: OutputConfig{
			ArtifactDir:   "artifacts",
			IncludeFooter: true,
		},
		Concurrency: ConcurrencyConfig{
			FetchWorkers: 3,
		},
		LLM: LLMConfig{
			Provider:  "",
			Timeout:   30,
			MaxTokens: 1000,
		},
	}
}

func defaultSourceConfig(endpoint string) SourceConfig {
	return SourceConfig{
		Endpoint:     endpoint,
		Timeout:      15 * time.Second,
		MaxBodyBytes: 8_000_000,
		RatePerSec:   10,
		RateBurst:    5,
	}
}
