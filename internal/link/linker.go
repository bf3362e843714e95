package link

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/atlasci/coalesce/internal/evidence"
	"github.com/atlasci/coalesce/internal/model"
)

// Linker cross-references evidence items that share a subject into
// clusters. Exact matches on the normalized subject come first; when
// containment is enabled, a finding on a function inside a file falls back
// to the nearest enclosing graph node. Items with no resolvable subject
// become singleton clusters, never dropped: the evidence index must stay
// complete.
type Linker struct {
	containment bool
}

// NewLinker creates a linker with the given policy
func NewLinker(cfg model.LinkingConfig) *Linker {
	return &Linker{containment: cfg.Containment}
}

// Link groups evidence items into clusters. The result is deterministic:
// identical input sets produce identical clusters regardless of item order.
// Every input item lands in exactly one cluster.
func (l *Linker) Link(items []model.EvidenceItem, graph *model.GraphSnapshot) []model.EvidenceCluster {
	nodeSubjects := l.nodeSubjects(graph)

	groups := make(map[string][]string) // resolved subject key -> member evidence ids
	subjects := make(map[string]string) // resolved subject key -> display subject

	for _, item := range items {
		key, display := l.resolve(item, nodeSubjects)
		groups[key] = append(groups[key], item.ID)
		subjects[key] = display
	}

	clusters := make([]model.EvidenceCluster, 0, len(groups))
	for key, members := range groups {
		sort.Strings(members)
		members = dedupe(members)
		clusters = append(clusters, model.EvidenceCluster{
			ID:      clusterID(members),
			Subject: subjects[key],
			Members: members,
		})
	}

	// Stable output order: by subject, then id for singleton tie-breaks
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Subject != clusters[j].Subject {
			return clusters[i].Subject < clusters[j].Subject
		}
		return clusters[i].ID < clusters[j].ID
	})

	return clusters
}

// resolve maps an item to its grouping key and display subject
func (l *Linker) resolve(item model.EvidenceItem, nodeSubjects []string) (key, display string) {
	subject := item.Subject
	if subject == "" {
		// No resolvable subject: singleton cluster keyed by the item itself
		return "item:" + item.ID, ""
	}

	// Exact subject match groups directly
	for _, ns := range nodeSubjects {
		if ns == subject {
			return "subject:" + subject, subject
		}
	}

	// Containment: link to the nearest enclosing graph node. Only findings
	// and insights carry sub-node subjects; graph items already are nodes.
	if l.containment && item.Source != model.SourceGraph {
		if enclosing, ok := nearestEnclosing(subject, nodeSubjects); ok {
			return "subject:" + enclosing, enclosing
		}
	}

	return "subject:" + subject, subject
}

// nodeSubjects collects the normalized subjects of all graph nodes,
// longest first so containment resolution finds the nearest enclosure
func (l *Linker) nodeSubjects(graph *model.GraphSnapshot) []string {
	if graph == nil {
		return nil
	}
	subjects := make([]string, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		s := evidence.NormalizeSubject(n.Path)
		if s == "" {
			s = evidence.NormalizeSubject(n.ID)
		}
		if s != "" {
			subjects = append(subjects, s)
		}
	}
	sort.Slice(subjects, func(i, j int) bool {
		if len(subjects[i]) != len(subjects[j]) {
			return len(subjects[i]) > len(subjects[j])
		}
		return subjects[i] < subjects[j]
	})
	return subjects
}

// nearestEnclosing finds the longest node subject that encloses the given
// subject on a path-segment or fragment boundary
func nearestEnclosing(subject string, nodeSubjects []string) (string, bool) {
	for _, ns := range nodeSubjects {
		if strings.HasPrefix(subject, ns+"/") || strings.HasPrefix(subject, ns+"#") {
			return ns, true
		}
	}
	return "", false
}

// clusterID derives the cluster id from its sorted member evidence ids, so
// identical member sets always produce the same cluster id
func clusterID(sortedMembers []string) string {
	hash := sha256.Sum256([]byte("cluster:" + strings.Join(sortedMembers, ",")))
	return hex.EncodeToString(hash[:])[:16]
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	var prev string
	for i, s := range sorted {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}
