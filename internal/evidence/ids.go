package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"github.com/atlasci/coalesce/internal/model"
)

// ID computes the deterministic evidence id for one raw item. It is a pure
// function of (RunID, sourceKind, natural key), never of arrival order or
// internal counters, so re-fetching the same data yields identical ids and
// re-generated report versions cite stable evidence.
func ID(runID string, kind model.SourceKind, naturalKey string) string {
	hash := sha256.Sum256([]byte("coalesce:v1|" + runID + "|" + string(kind) + "|" + naturalKey))
	return hex.EncodeToString(hash[:])[:16]
}

// Natural keys per raw item type. Graph nodes and edges key on their
// structural identity; findings and insights key on their upstream ids.

func nodeKey(n model.GraphNode) string {
	return "node:" + n.ID
}

func edgeKey(e model.GraphEdge) string {
	return "edge:" + e.Source + "->" + e.Target + ":" + e.Kind
}

func findingKey(f model.RuleFinding) string {
	if f.ID != "" {
		return "finding:" + f.ID
	}
	return "finding:" + f.RuleID + ":" + f.Subject
}

func insightKey(i model.AIInsight) string {
	if i.ID != "" {
		return "insight:" + i.ID
	}
	return "insight:" + i.Category + ":" + i.Subject
}

// NormalizeSubject canonicalizes a subject reference (file or module path)
// so that the same subject written differently still links together.
func NormalizeSubject(subject string) string {
	s := strings.TrimSpace(subject)
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\\", "/")
	s = path.Clean(s)
	s = strings.TrimPrefix(s, "./")
	s = strings.TrimPrefix(s, "/")
	if s == "." {
		return ""
	}
	return s
}
