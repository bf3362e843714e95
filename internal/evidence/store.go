package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atlasci/coalesce/internal/cache"
	"github.com/atlasci/coalesce/internal/model"
	"github.com/atlasci/coalesce/internal/source"
)

// Payload is the result of fetching and normalizing one source input.
// Items are the normalized evidence records; the typed fields retain the
// raw payload for sections that pass it through (graph, metrics, insights).
type Payload struct {
	Kind     model.SourceKind
	Items    []model.EvidenceItem
	Graph    *model.GraphSnapshot
	Findings []model.RuleFinding
	Metrics  *model.AnalysisMetrics
	Insights []model.AIInsight
}

// Store fetches raw payloads and normalizes them into evidence items.
// A read-through cache keyed by (RunID, sourceKind) absorbs duplicate
// notifications for the lifetime of one aggregation pass; entries are
// evicted once the run reaches a terminal state.
type Store struct {
	client   source.Client
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewStore creates a store backed by the given transport client.
// A nil cache disables caching.
func NewStore(client source.Client, c cache.Cache, cacheTTL time.Duration) *Store {
	return &Store{
		client:   client,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// Fetch retrieves and normalizes the payload for one (RunID, sourceKind).
// Failures are returned as *source.FetchError carrying the failed kind.
func (s *Store) Fetch(ctx context.Context, runID string, kind model.SourceKind) (*Payload, error) {
	raw, err := s.fetchRaw(ctx, runID, kind)
	if err != nil {
		return nil, err
	}

	payload, err := DecodePayload(runID, kind, raw)
	if err != nil {
		return nil, &source.FetchError{RunID: runID, Kind: kind, Err: err}
	}
	return payload, nil
}

// Evict drops cached payloads for a run once it reaches emitted or failed
func (s *Store) Evict(runID string) {
	if s.cache == nil {
		return
	}
	for _, kind := range model.AllSourceKinds() {
		_ = s.cache.Delete(cache.PayloadKey(runID, kind))
	}
}

func (s *Store) fetchRaw(ctx context.Context, runID string, kind model.SourceKind) ([]byte, error) {
	key := cache.PayloadKey(runID, kind)
	if s.cache != nil {
		if raw, found := s.cache.Get(key); found {
			return raw, nil
		}
	}

	raw, err := s.client.Fetch(ctx, runID, kind)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(key, raw, s.cacheTTL)
	}
	return raw, nil
}

// DecodePayload decodes one raw JSON payload and normalizes it into
// evidence items. The one-shot aggregate command uses it directly on local
// files; the store uses it on fetched bodies.
func DecodePayload(runID string, kind model.SourceKind, raw []byte) (*Payload, error) {
	switch kind {
	case model.SourceGraph:
		var graph model.GraphSnapshot
		if err := json.Unmarshal(raw, &graph); err != nil {
			return nil, fmt.Errorf("decode graph payload: %w", err)
		}
		return &Payload{
			Kind:  kind,
			Graph: &graph,
			Items: NormalizeGraph(runID, &graph),
		}, nil

	case model.SourceRule:
		var rp model.RulePayload
		if err := json.Unmarshal(raw, &rp); err != nil {
			return nil, fmt.Errorf("decode rule payload: %w", err)
		}
		return &Payload{
			Kind:     kind,
			Findings: rp.Findings,
			Metrics:  rp.Metrics,
			Items:    NormalizeFindings(runID, rp.Findings),
		}, nil

	case model.SourceAI:
		var ap model.AIPayload
		if err := json.Unmarshal(raw, &ap); err != nil {
			return nil, fmt.Errorf("decode ai payload: %w", err)
		}
		return &Payload{
			Kind:     kind,
			Insights: ap.Insights,
			Items:    NormalizeInsights(runID, ap.Insights),
		}, nil

	default:
		return nil, fmt.Errorf("unknown source kind: %s", kind)
	}
}

// NormalizeGraph converts a graph snapshot into evidence items, one per
// node and one per edge
func NormalizeGraph(runID string, graph *model.GraphSnapshot) []model.EvidenceItem {
	items := make([]model.EvidenceItem, 0, len(graph.Nodes)+len(graph.Edges))

	for i := range graph.Nodes {
		node := graph.Nodes[i]
		subject := NormalizeSubject(node.Path)
		if subject == "" {
			subject = NormalizeSubject(node.ID)
		}
		items = append(items, model.EvidenceItem{
			ID:      ID(runID, model.SourceGraph, nodeKey(node)),
			Source:  model.SourceGraph,
			Subject: subject,
			Node:    &node,
		})
	}

	for i := range graph.Edges {
		edge := graph.Edges[i]
		items = append(items, model.EvidenceItem{
			ID:      ID(runID, model.SourceGraph, edgeKey(edge)),
			Source:  model.SourceGraph,
			Subject: edge.Source + " -> " + edge.Target,
			Edge:    &edge,
		})
	}

	return items
}

// NormalizeFindings converts rule findings into evidence items
func NormalizeFindings(runID string, findings []model.RuleFinding) []model.EvidenceItem {
	items := make([]model.EvidenceItem, 0, len(findings))
	for i := range findings {
		finding := findings[i]
		items = append(items, model.EvidenceItem{
			ID:      ID(runID, model.SourceRule, findingKey(finding)),
			Source:  model.SourceRule,
			Subject: NormalizeSubject(finding.Subject),
			Finding: &finding,
		})
	}
	return items
}

// NormalizeInsights converts AI insights into evidence items
func NormalizeInsights(runID string, insights []model.AIInsight) []model.EvidenceItem {
	items := make([]model.EvidenceItem, 0, len(insights))
	for i := range insights {
		insight := insights[i]
		items = append(items, model.EvidenceItem{
			ID:      ID(runID, model.SourceAI, insightKey(insight)),
			Source:  model.SourceAI,
			Subject: NormalizeSubject(insight.Subject),
			Insight: &insight,
		})
	}
	return items
}
