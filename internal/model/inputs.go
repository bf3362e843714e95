package model

// GraphSnapshot is the structure-map payload for one run, produced by the
// graph collaborator. Immutable once fetched; this engine never owns it.
type GraphSnapshot struct {
	RunID string      `json:"run_id"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// GraphNode is one structure-map node (file, module, pipeline stage, ...)
type GraphNode struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`           // e.g. "file", "module", "pipeline"
	Name string `json:"name"`
	Path string `json:"path,omitempty"` // subject reference for linking
}

// GraphEdge is one dependency edge between two nodes
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"` // e.g. "calls", "imports", "triggers"
}

// Severity is the rule engine's ordinal severity scale
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RuleFinding is a single rule-engine violation
type RuleFinding struct {
	ID         string   `json:"id"`
	RuleID     string   `json:"rule_id"`
	Severity   Severity `json:"severity"`
	Subject    string   `json:"subject"`              // path or node id
	Message    string   `json:"message"`
	Confidence *float64 `json:"confidence,omitempty"` // 0.0-1.0, optional
}

// AIInsight is an AI-generated suggestion
type AIInsight struct {
	ID         string  `json:"id"`
	Subject    string  `json:"subject"`
	Category   string  `json:"category"` // e.g. "modernization", "refactor"
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// CategoryModernization tags insights that feed the Modernization Roadmap section
const CategoryModernization = "modernization"

// AnalysisMetrics carries the score breakdowns computed upstream by the rule
// engine. They are passed through into the report verbatim, never recomputed.
type AnalysisMetrics struct {
	Complexity    ComplexityMetrics    `json:"complexity"`
	Fragility     FragilityMetrics     `json:"fragility"`
	Documentation DocumentationMetrics `json:"documentation"`
}

// ComplexityMetrics is the upstream complexity score with its components
type ComplexityMetrics struct {
	Score     float64 `json:"score"` // 0-100
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
	MaxDepth  int     `json:"max_depth"`
	MaxFanOut int     `json:"max_fan_out"`
}

// FragilityMetrics is the upstream fragility score with its components
type FragilityMetrics struct {
	Score           float64 `json:"score"` // 0-100
	SecretCount     int     `json:"secret_count"`
	CrossTriggers   int     `json:"cross_triggers"`
	UnpinnedImages  int     `json:"unpinned_images"`
	MissingDocTypes int     `json:"missing_doc_types"`
}

// DocumentationMetrics is the upstream documentation coverage report
type DocumentationMetrics struct {
	CoveragePercent float64  `json:"coverage_percent"` // 0-100
	DocumentedTypes []string `json:"documented_types,omitempty"`
	MissingTypes    []string `json:"missing_types,omitempty"`
}

// RulePayload is the wire shape returned by the rule-engine collaborator
type RulePayload struct {
	RunID    string           `json:"run_id"`
	Findings []RuleFinding    `json:"findings"`
	Metrics  *AnalysisMetrics `json:"metrics,omitempty"`
}

// AIPayload is the wire shape returned by the AI query collaborator
type AIPayload struct {
	RunID    string      `json:"run_id"`
	Insights []AIInsight `json:"insights"`
}
