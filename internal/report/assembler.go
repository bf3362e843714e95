package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atlasci/coalesce/internal/model"
)

// IncompleteEvidenceError is an assembly-time invariant violation: a section
// references an evidence id that is not in the fetched set. It indicates a
// linker or assembler bug, not a degraded-input condition, and is never
// retried automatically.
type IncompleteEvidenceError struct {
	RunID   string
	Missing []string
}

func (e *IncompleteEvidenceError) Error() string {
	return fmt.Sprintf("report for run %s references evidence absent from the fetched set: %s",
		e.RunID, strings.Join(e.Missing, ", "))
}

// Input carries everything one assembly pass needs
type Input struct {
	RunID        string
	Version      int
	Status       model.ReportStatus
	Graph        *model.GraphSnapshot // nil when the graph input is missing
	Metrics      *model.AnalysisMetrics
	Insights     []model.AIInsight
	Items        []model.EvidenceItem // the full fetched evidence set
	Improvements []model.ImprovementItem
	RoadmapNotes string // optional LLM narrative, never affects ranking
}

// Assembler builds the abstract report document tree
type Assembler struct {
	clock func() time.Time
}

// NewAssembler creates an assembler
func NewAssembler() *Assembler {
	return &Assembler{clock: time.Now}
}

// Assemble builds the 8 sections in fixed order, stamps version and
// generation timestamp, and validates the evidence-index invariant: every
// evidence id referenced anywhere must resolve against the fetched set.
func (a *Assembler) Assemble(in Input) (*model.Report, error) {
	fetched := make(map[string]model.EvidenceItem, len(in.Items))
	for _, item := range in.Items {
		fetched[item.ID] = item
	}

	r := &model.Report{
		RunID:       in.RunID,
		Version:     in.Version,
		Status:      in.Status,
		GeneratedAt: a.clock().UTC(),
		Meta:        buildMeta(in),
		Sections: model.Sections{
			StructureMap:    buildStructureMap(in.Graph, in.Items),
			DependencyGraph: buildDependencyGraph(in.Items),
			Complexity:      buildComplexity(in.Metrics),
			Fragility:       buildFragility(in.Metrics),
			Documentation:   buildDocumentation(in.Metrics),
			Improvements:    model.ImprovementSection{Items: in.Improvements},
			Roadmap:         buildRoadmap(in.Items, in.RoadmapNotes),
		},
	}

	// Centralized invariant check: collect every referenced id, diff
	// against the fetched set, and inline the survivors into the index.
	referenced := r.ReferencedEvidenceIDs()
	index := make(map[string]model.EvidenceItem, len(referenced))
	var missing []string
	for _, id := range referenced {
		item, ok := fetched[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		index[id] = item
	}
	if len(missing) > 0 {
		return nil, &IncompleteEvidenceError{RunID: in.RunID, Missing: missing}
	}
	r.Sections.EvidenceIndex = model.EvidenceIndexSection{Items: index}

	return r, nil
}

func buildMeta(in Input) model.ReportMeta {
	meta := model.ReportMeta{InsightCount: len(in.Insights)}
	if in.Graph != nil {
		meta.NodeCount = len(in.Graph.Nodes)
		meta.EdgeCount = len(in.Graph.Edges)
	}
	for _, item := range in.Items {
		if item.Finding != nil {
			meta.FindingCount++
		}
	}
	return meta
}

// buildStructureMap groups graph nodes by kind, sorted for determinism
func buildStructureMap(graph *model.GraphSnapshot, items []model.EvidenceItem) model.StructureMapSection {
	if graph == nil {
		return model.StructureMapSection{}
	}

	byKind := make(map[string][]model.NodeEntry)
	for _, item := range items {
		if item.Node == nil {
			continue
		}
		byKind[item.Node.Kind] = append(byKind[item.Node.Kind], model.NodeEntry{
			Name:       item.Node.Name,
			Path:       item.Node.Path,
			EvidenceID: item.ID,
		})
	}

	kinds := make([]string, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	groups := make([]model.NodeGroup, 0, len(kinds))
	for _, kind := range kinds {
		entries := byKind[kind]
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].Name != entries[j].Name {
				return entries[i].Name < entries[j].Name
			}
			return entries[i].Path < entries[j].Path
		})
		groups = append(groups, model.NodeGroup{Kind: kind, Entries: entries})
	}
	return model.StructureMapSection{Groups: groups}
}

// buildDependencyGraph lists edges only, sorted for determinism
func buildDependencyGraph(items []model.EvidenceItem) model.DependencyGraphSection {
	var edges []model.EdgeEntry
	for _, item := range items {
		if item.Edge == nil {
			continue
		}
		edges = append(edges, model.EdgeEntry{
			Source:     item.Edge.Source,
			Target:     item.Edge.Target,
			Kind:       item.Edge.Kind,
			EvidenceID: item.ID,
		})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Kind < edges[j].Kind
	})
	return model.DependencyGraphSection{Edges: edges}
}

// The three score sections pass through upstream values, never recomputed here.

func buildComplexity(metrics *model.AnalysisMetrics) model.ComplexitySection {
	if metrics == nil {
		return model.ComplexitySection{}
	}
	return model.ComplexitySection{Available: true, Metrics: metrics.Complexity}
}

func buildFragility(metrics *model.AnalysisMetrics) model.FragilitySection {
	if metrics == nil {
		return model.FragilitySection{}
	}
	return model.FragilitySection{Available: true, Metrics: metrics.Fragility}
}

func buildDocumentation(metrics *model.AnalysisMetrics) model.DocumentationSection {
	if metrics == nil {
		return model.DocumentationSection{}
	}
	return model.DocumentationSection{Available: true, Metrics: metrics.Documentation}
}

// buildRoadmap lists modernization-tagged insights by confidence descending.
// Entries are built from the evidence items themselves, so every entry cites
// the item wrapping its own insight even when upstream insight ids are empty
// or duplicated.
func buildRoadmap(items []model.EvidenceItem, notes string) model.RoadmapSection {
	var entries []model.RoadmapEntry
	for _, item := range items {
		if item.Insight == nil || item.Insight.Category != model.CategoryModernization {
			continue
		}
		entries = append(entries, model.RoadmapEntry{
			Subject:    item.Insight.Subject,
			Rationale:  item.Insight.Rationale,
			Confidence: item.Insight.Confidence,
			EvidenceID: item.ID,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Confidence != entries[j].Confidence {
			return entries[i].Confidence > entries[j].Confidence
		}
		return entries[i].EvidenceID < entries[j].EvidenceID
	})

	return model.RoadmapSection{Entries: entries, Notes: notes}
}
