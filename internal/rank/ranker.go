package rank

import (
	"fmt"
	"sort"

	"github.com/atlasci/coalesce/internal/model"
)

// Ranker derives the ordered improvement list from linked evidence,
// combining rule severity and AI confidence into a single score:
//
//	score = max(severityWeight * ruleConfidence) * ruleWeight
//	      + max(aiConfidence) * aiWeight
//
// An absent category contributes 0. A rule finding with no raw confidence
// gets a severity-derived default, never a zero-skip. Ordering is fully
// deterministic: ties break on the smallest supporting evidence id.
type Ranker struct {
	cfg model.RankingConfig
}

// NewRanker creates a ranker with the given scoring policy
func NewRanker(cfg model.RankingConfig) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rank scores each cluster and returns improvement items with dense,
// 1-based ranks. Pure-graph clusters produce no item; they stay in the
// evidence index but are not improvements.
func (r *Ranker) Rank(clusters []model.EvidenceCluster, index map[string]model.EvidenceItem) []model.ImprovementItem {
	items := make([]model.ImprovementItem, 0, len(clusters))

	for _, cluster := range clusters {
		item, ok := r.scoreCluster(cluster, index)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Confidence != items[j].Confidence {
			return items[i].Confidence > items[j].Confidence
		}
		return items[i].Evidence[0] < items[j].Evidence[0]
	})

	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}

// scoreCluster computes one improvement item; ok is false for pure-graph clusters
func (r *Ranker) scoreCluster(cluster model.EvidenceCluster, index map[string]model.EvidenceItem) (model.ImprovementItem, bool) {
	var ruleScore, aiScore float64
	var supporting []string
	var topFinding *model.RuleFinding
	var topInsight *model.AIInsight

	// Members are sorted, so supporting stays a sorted subsequence and the
	// tie-break id is reproducible.
	for _, id := range cluster.Members {
		ev, ok := index[id]
		if !ok {
			continue
		}
		switch {
		case ev.Finding != nil:
			supporting = append(supporting, id)
			ruleScore = maxFloat(ruleScore, r.findingScore(ev.Finding))
			if topFinding == nil || r.severityWeight(ev.Finding.Severity) > r.severityWeight(topFinding.Severity) {
				topFinding = ev.Finding
			}
		case ev.Insight != nil:
			supporting = append(supporting, id)
			if ev.Insight.Confidence > aiScore {
				aiScore = ev.Insight.Confidence
			}
			if topInsight == nil || ev.Insight.Confidence > topInsight.Confidence {
				topInsight = ev.Insight
			}
		}
	}

	if len(supporting) == 0 {
		return model.ImprovementItem{}, false
	}

	score := ruleScore*r.cfg.RuleWeight + aiScore*r.cfg.AIWeight
	score = clamp01(score)

	return model.ImprovementItem{
		Title:      improvementTitle(cluster, topFinding, topInsight),
		ClusterID:  cluster.ID,
		Confidence: score,
		Evidence:   supporting,
	}, true
}

// findingScore is the rule component of one finding: normalized severity
// weighted by its confidence (severity-derived default when unscored)
func (r *Ranker) findingScore(f *model.RuleFinding) float64 {
	conf := r.cfg.DefaultConfidence[f.Severity]
	if f.Confidence != nil {
		conf = *f.Confidence
	}
	if conf <= 0 {
		conf = 0.5
	}
	return r.severityWeight(f.Severity) * conf
}

func (r *Ranker) severityWeight(s model.Severity) float64 {
	if w, ok := r.cfg.SeverityWeights[s]; ok {
		return w
	}
	return 0.5
}

// improvementTitle derives a human-readable recommendation title
func improvementTitle(cluster model.EvidenceCluster, finding *model.RuleFinding, insight *model.AIInsight) string {
	subject := cluster.Subject
	if subject == "" {
		subject = "unlocated evidence"
	}
	switch {
	case finding != nil && finding.Message != "":
		return fmt.Sprintf("%s: %s", subject, finding.Message)
	case insight != nil:
		return fmt.Sprintf("%s: %s suggestion", subject, insight.Category)
	default:
		return "Improve " + subject
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
