package model

// EvidenceItem is the normalized union of one graph fragment, rule finding,
// or AI insight. The id is a pure function of (RunID, source kind, natural
// key of the raw item), so re-fetching the same data yields identical ids.
// Exactly one of Node, Edge, Finding, Insight is set.
type EvidenceItem struct {
	ID      string     `json:"id"`
	Source  SourceKind `json:"source"`
	Subject string     `json:"subject,omitempty"` // normalized subject reference

	Node    *GraphNode   `json:"node,omitempty"`
	Edge    *GraphEdge   `json:"edge,omitempty"`
	Finding *RuleFinding `json:"finding,omitempty"`
	Insight *AIInsight   `json:"insight,omitempty"`
}

// EvidenceCluster groups evidence items sharing a subject reference.
// Members has set semantics and is kept sorted; the cluster id is derived
// from the sorted member ids, so identical inputs cluster identically.
type EvidenceCluster struct {
	ID      string   `json:"id"`
	Subject string   `json:"subject"`
	Members []string `json:"members"` // evidence ids, sorted, non-empty
}

// ImprovementItem is one ranked recommendation derived from a cluster
type ImprovementItem struct {
	Rank       int      `json:"rank"` // 1-based, dense
	Title      string   `json:"title"`
	ClusterID  string   `json:"cluster_id"`
	Confidence float64  `json:"confidence"` // 0.0-1.0, combined rule/AI score
	Evidence   []string `json:"evidence"`   // supporting evidence ids, non-empty
}
