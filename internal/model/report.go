package model

import (
	"sort"
	"time"
)

// ReportStatus distinguishes complete reports from best-effort ones
type ReportStatus string

const (
	ReportComplete ReportStatus = "complete" // all three inputs present
	ReportDegraded ReportStatus = "degraded" // emitted after a timeout with partial inputs
)

// SectionTitles is the fixed order of the eight report sections. Both
// renderers walk sections in exactly this order.
var SectionTitles = []string{
	"Structure Map",
	"Dependency Graph",
	"Complexity Score",
	"Fragility Score",
	"Documentation Coverage",
	"Improvement List",
	"Modernization Roadmap",
	"Evidence Index",
}

// Report is the final artifact for one run version. Once emitted it is
// immutable; a re-run for the same RunID produces a new Report with an
// incremented version.
type Report struct {
	RunID       string       `json:"run_id"`
	Version     int          `json:"version"` // monotonic per RunID, starts at 1
	Status      ReportStatus `json:"status"`
	GeneratedAt time.Time    `json:"generated_at"`
	Meta        ReportMeta   `json:"meta"`
	Sections    Sections     `json:"sections"`
}

// ReportMeta summarizes input volumes for the report header
type ReportMeta struct {
	NodeCount    int `json:"node_count"`
	EdgeCount    int `json:"edge_count"`
	FindingCount int `json:"finding_count"`
	InsightCount int `json:"insight_count"`
}

// Sections holds the eight report sections in their fixed order
type Sections struct {
	StructureMap    StructureMapSection    `json:"structure_map"`
	DependencyGraph DependencyGraphSection `json:"dependency_graph"`
	Complexity      ComplexitySection      `json:"complexity_score"`
	Fragility       FragilitySection       `json:"fragility_score"`
	Documentation   DocumentationSection   `json:"documentation_coverage"`
	Improvements    ImprovementSection     `json:"improvement_list"`
	Roadmap         RoadmapSection         `json:"modernization_roadmap"`
	EvidenceIndex   EvidenceIndexSection   `json:"evidence_index"`
}

// StructureMapSection lists graph nodes grouped by kind
type StructureMapSection struct {
	Groups []NodeGroup `json:"groups"`
}

// NodeGroup is one kind bucket of the structure map, sorted by name
type NodeGroup struct {
	Kind    string      `json:"kind"`
	Entries []NodeEntry `json:"entries"`
}

// NodeEntry is one structure-map row backed by a graph evidence item
type NodeEntry struct {
	Name       string `json:"name"`
	Path       string `json:"path,omitempty"`
	EvidenceID string `json:"evidence_id"`
}

// DependencyGraphSection lists dependency edges only
type DependencyGraphSection struct {
	Edges []EdgeEntry `json:"edges"`
}

// EdgeEntry is one dependency row backed by a graph evidence item
type EdgeEntry struct {
	Source     string `json:"source"`
	Target     string `json:"target"`
	Kind       string `json:"kind"`
	EvidenceID string `json:"evidence_id"`
}

// ComplexitySection passes through the upstream complexity metrics.
// Available is false when the rule input never arrived.
type ComplexitySection struct {
	Available bool              `json:"available"`
	Metrics   ComplexityMetrics `json:"metrics"`
}

// FragilitySection passes through the upstream fragility metrics
type FragilitySection struct {
	Available bool             `json:"available"`
	Metrics   FragilityMetrics `json:"metrics"`
}

// DocumentationSection passes through the upstream coverage report
type DocumentationSection struct {
	Available bool                 `json:"available"`
	Metrics   DocumentationMetrics `json:"metrics"`
}

// ImprovementSection holds the ranked improvement list
type ImprovementSection struct {
	Items []ImprovementItem `json:"items"`
}

// RoadmapSection holds modernization insights ordered by confidence
// descending, plus an optional LLM-generated narrative. The narrative never
// affects ranking and is clearly separated from the insight entries.
type RoadmapSection struct {
	Entries []RoadmapEntry `json:"entries"`
	Notes   string         `json:"notes,omitempty"`
}

// RoadmapEntry is one modernization suggestion backed by an AI evidence item
type RoadmapEntry struct {
	Subject    string  `json:"subject"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence"`
	EvidenceID string  `json:"evidence_id"`
}

// EvidenceIndexSection inlines every evidence item referenced by any earlier
// section, keyed by evidence id. No section may reference an id absent here.
type EvidenceIndexSection struct {
	Items map[string]EvidenceItem `json:"items"`
}

// ReferencedEvidenceIDs walks every section and collects the evidence ids it
// cites, sorted and deduplicated. This is the input to the post-assembly
// index-completeness check.
func (r *Report) ReferencedEvidenceIDs() []string {
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" {
			seen[id] = true
		}
	}

	for _, g := range r.Sections.StructureMap.Groups {
		for _, e := range g.Entries {
			add(e.EvidenceID)
		}
	}
	for _, e := range r.Sections.DependencyGraph.Edges {
		add(e.EvidenceID)
	}
	for _, item := range r.Sections.Improvements.Items {
		for _, id := range item.Evidence {
			add(id)
		}
	}
	for _, e := range r.Sections.Roadmap.Entries {
		add(e.EvidenceID)
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
