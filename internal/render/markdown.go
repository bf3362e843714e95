package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atlasci/coalesce/internal/model"
)

// Markdown renders the report as a Markdown document. Heading levels and
// list ordering are stable and mirror the tree's sequences exactly.
func (r *Renderer) Markdown(report *model.Report) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# Analysis Report: %s v%d\n\n", report.RunID, report.Version)
	fmt.Fprintf(&b, "- **Status**: %s\n", report.Status)
	fmt.Fprintf(&b, "- **Generated**: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Inputs**: %d nodes, %d edges, %d findings, %d insights\n\n",
		report.Meta.NodeCount, report.Meta.EdgeCount, report.Meta.FindingCount, report.Meta.InsightCount)

	if report.Status == model.ReportDegraded {
		b.WriteString("> Best-effort report: one or more inputs did not arrive before the correlation deadline.\n\n")
	}

	writeStructureMap(&b, report.Sections.StructureMap)
	writeDependencyGraph(&b, report.Sections.DependencyGraph)
	writeComplexity(&b, report.Sections.Complexity)
	writeFragility(&b, report.Sections.Fragility)
	writeDocumentation(&b, report.Sections.Documentation)
	writeImprovements(&b, report.Sections.Improvements)
	writeRoadmap(&b, report.Sections.Roadmap)
	writeEvidenceIndex(&b, report.Sections.EvidenceIndex)

	if r.includeFooter {
		b.WriteString("---\n\nGenerated by coalesce, the report aggregation engine.\n")
	}

	return []byte(b.String()), nil
}

func heading(b *strings.Builder, index int) {
	fmt.Fprintf(b, "## %d. %s\n\n", index+1, model.SectionTitles[index])
}

func writeStructureMap(b *strings.Builder, s model.StructureMapSection) {
	heading(b, 0)
	if len(s.Groups) == 0 {
		b.WriteString("No structure data available.\n\n")
		return
	}
	for _, g := range s.Groups {
		fmt.Fprintf(b, "### %s\n\n", g.Kind)
		for _, e := range g.Entries {
			if e.Path != "" {
				fmt.Fprintf(b, "- %s (`%s`) [evidence:%s]\n", e.Name, e.Path, e.EvidenceID)
			} else {
				fmt.Fprintf(b, "- %s [evidence:%s]\n", e.Name, e.EvidenceID)
			}
		}
		b.WriteString("\n")
	}
}

func writeDependencyGraph(b *strings.Builder, s model.DependencyGraphSection) {
	heading(b, 1)
	if len(s.Edges) == 0 {
		b.WriteString("No dependency edges.\n\n")
		return
	}
	for _, e := range s.Edges {
		fmt.Fprintf(b, "- `%s` -> `%s` (%s) [evidence:%s]\n", e.Source, e.Target, e.Kind, e.EvidenceID)
	}
	b.WriteString("\n")
}

func writeComplexity(b *strings.Builder, s model.ComplexitySection) {
	heading(b, 2)
	if !s.Available {
		b.WriteString("Not available: the rule-engine input did not arrive.\n\n")
		return
	}
	m := s.Metrics
	fmt.Fprintf(b, "**Score: %.1f / 100**\n\n", m.Score)
	fmt.Fprintf(b, "- Nodes: %d\n- Edges: %d\n- Max depth: %d\n- Max fan-out: %d\n\n",
		m.NodeCount, m.EdgeCount, m.MaxDepth, m.MaxFanOut)
}

func writeFragility(b *strings.Builder, s model.FragilitySection) {
	heading(b, 3)
	if !s.Available {
		b.WriteString("Not available: the rule-engine input did not arrive.\n\n")
		return
	}
	m := s.Metrics
	fmt.Fprintf(b, "**Score: %.1f / 100**\n\n", m.Score)
	fmt.Fprintf(b, "- Secret references: %d\n- Cross-triggers: %d\n- Unpinned images: %d\n- Missing doc types: %d\n\n",
		m.SecretCount, m.CrossTriggers, m.UnpinnedImages, m.MissingDocTypes)
}

func writeDocumentation(b *strings.Builder, s model.DocumentationSection) {
	heading(b, 4)
	if !s.Available {
		b.WriteString("Not available: the rule-engine input did not arrive.\n\n")
		return
	}
	m := s.Metrics
	fmt.Fprintf(b, "**Coverage: %.1f%%**\n\n", m.CoveragePercent)
	if len(m.MissingTypes) > 0 {
		fmt.Fprintf(b, "Missing: %s\n\n", strings.Join(m.MissingTypes, ", "))
	}
}

func writeImprovements(b *strings.Builder, s model.ImprovementSection) {
	heading(b, 5)
	if len(s.Items) == 0 {
		b.WriteString("No improvements identified.\n\n")
		return
	}
	for _, item := range s.Items {
		fmt.Fprintf(b, "%d. **%s** (confidence %.2f) [evidence:%s]\n",
			item.Rank, item.Title, item.Confidence, strings.Join(item.Evidence, ","))
	}
	b.WriteString("\n")
}

func writeRoadmap(b *strings.Builder, s model.RoadmapSection) {
	heading(b, 6)
	if len(s.Entries) == 0 && s.Notes == "" {
		b.WriteString("No modernization insights available.\n\n")
		return
	}
	for _, e := range s.Entries {
		fmt.Fprintf(b, "- `%s` (confidence %.2f): %s [evidence:%s]\n",
			e.Subject, e.Confidence, e.Rationale, e.EvidenceID)
	}
	if len(s.Entries) > 0 {
		b.WriteString("\n")
	}
	if s.Notes != "" {
		b.WriteString("### Notes\n\n")
		b.WriteString(s.Notes)
		b.WriteString("\n\n")
	}
}

func writeEvidenceIndex(b *strings.Builder, s model.EvidenceIndexSection) {
	heading(b, 7)
	if len(s.Items) == 0 {
		b.WriteString("Empty.\n\n")
		return
	}

	ids := make([]string, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Fprintf(b, "- `%s`: %s\n", id, describeEvidence(s.Items[id]))
	}
	b.WriteString("\n")
}

// describeEvidence inlines the payload of one evidence item
func describeEvidence(item model.EvidenceItem) string {
	switch {
	case item.Node != nil:
		return fmt.Sprintf("[graph node] %s kind=%s path=%s", item.Node.Name, item.Node.Kind, item.Node.Path)
	case item.Edge != nil:
		return fmt.Sprintf("[graph edge] %s -> %s kind=%s", item.Edge.Source, item.Edge.Target, item.Edge.Kind)
	case item.Finding != nil:
		return fmt.Sprintf("[rule %s] severity=%s subject=%s: %s",
			item.Finding.RuleID, item.Finding.Severity, item.Finding.Subject, item.Finding.Message)
	case item.Insight != nil:
		return fmt.Sprintf("[ai %s] confidence=%.2f subject=%s: %s",
			item.Insight.Category, item.Insight.Confidence, item.Insight.Subject, item.Insight.Rationale)
	default:
		return "[unknown]"
	}
}
