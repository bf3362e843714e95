package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/atlasci/coalesce/internal/cache"
	"github.com/atlasci/coalesce/internal/correlate"
	"github.com/atlasci/coalesce/internal/evidence"
	"github.com/atlasci/coalesce/internal/link"
	"github.com/atlasci/coalesce/internal/llm"
	"github.com/atlasci/coalesce/internal/model"
	"github.com/atlasci/coalesce/internal/publish"
	"github.com/atlasci/coalesce/internal/rank"
	"github.com/atlasci/coalesce/internal/render"
	"github.com/atlasci/coalesce/internal/report"
	"github.com/atlasci/coalesce/internal/source"
	"github.com/atlasci/coalesce/internal/worker"
)

// Engine wires the full aggregation path: correlate notifications, fetch
// the arrived inputs concurrently, link evidence, rank improvements,
// assemble the document tree, render both formats, and publish.
type Engine struct {
	cfg        *model.Config
	store      *evidence.Store
	linker     *link.Linker
	ranker     *rank.Ranker
	assembler  *report.Assembler
	renderer   *render.Renderer
	publisher  *publish.Publisher
	narrator   *llm.Narrator
	correlator *correlate.Correlator
	pool       *worker.Pool
	verbose    bool
}

// New creates an engine from configuration
func New(cfg *model.Config) *Engine {
	var payloadCache cache.Cache
	if cfg.Cache.Enabled {
		payloadCache = cache.NewMemoryCache(cfg.Cache.TTL, 10*time.Minute)
	}

	limiter := newSourceLimiter(cfg.Sources)
	client := source.NewHTTPClient(cfg.Sources, limiter)

	var narrator *llm.Narrator
	if cfg.LLM.Provider != "" {
		n, err := llm.NewNarrator(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize LLM provider: %v\n", err)
		} else {
			narrator = n
		}
	}

	e := &Engine{
		cfg:       cfg,
		store:     evidence.NewStore(client, payloadCache, cfg.Cache.TTL),
		linker:    link.NewLinker(cfg.Linking),
		ranker:    rank.NewRanker(cfg.Ranking),
		assembler: report.NewAssembler(),
		renderer:  render.NewRenderer(cfg.Output.IncludeFooter),
		publisher: publish.NewPublisher(cfg.Output.ArtifactDir, cfg.Output.Verbose),
		narrator:  narrator,
		pool:      worker.NewPool(cfg.Concurrency.FetchWorkers),
		verbose:   cfg.Output.Verbose,
	}
	e.correlator = correlate.New(cfg.Correlation.Window, cfg.Correlation.SweepInterval, e.handleDecision)
	return e
}

// newSourceLimiter builds the shared outbound limiter with each configured
// endpoint's own rate budget, so one throttled collaborator never constrains
// the others
func newSourceLimiter(sources model.SourcesConfig) *worker.Limiter {
	limiter := worker.NewLimiter(sources.Graph.RatePerSec, sources.Graph.RateBurst)
	for _, kind := range model.AllSourceKinds() {
		sc := sources.ByKind(kind)
		if sc.Endpoint == "" || sc.RatePerSec <= 0 {
			continue
		}
		if err := limiter.SetEndpointRate(sc.Endpoint, sc.RatePerSec, sc.RateBurst); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: invalid %s endpoint %q: %v\n", kind, sc.Endpoint, err)
		}
	}
	return limiter
}

// Start launches the deadline sweep
func (e *Engine) Start() { e.correlator.Start() }

// Stop halts the sweep and waits for in-flight aggregation passes
func (e *Engine) Stop() { e.correlator.Stop() }

// Notify feeds one inbound notification into the correlator
func (e *Engine) Notify(n model.Notification) { e.correlator.Notify(n) }

// Correlator exposes run state for inspection
func (e *Engine) Correlator() *correlate.Correlator { return e.correlator }

// handleDecision runs one aggregation pass for a run version that left pending
func (e *Engine) handleDecision(d correlate.Decision) {
	ctx := context.Background()

	if d.Status == model.RunFailed {
		e.publishFailure(d, "no inputs arrived before the correlation deadline")
		e.store.Evict(d.RunID)
		return
	}

	payloads := e.fetchAll(ctx, d.RunID, d.Arrived)
	if len(payloads) == 0 {
		if e.correlator.Fail(d.RunID, d.Version) {
			e.publishFailure(d, "all input fetches failed")
		}
		e.store.Evict(d.RunID)
		return
	}

	status := model.ReportComplete
	if len(payloads) < len(model.AllSourceKinds()) {
		// Either the deadline hit with a partial set, or an arrived input
		// failed to fetch: both degrade the report.
		status = model.ReportDegraded
	}

	rep, markdown, jsonBody, err := e.BuildReport(ctx, d.RunID, d.Version, status, payloads)
	if err != nil {
		// IncompleteEvidenceError and render failures are fatal for this
		// generation attempt; surfaced, never retried automatically.
		fmt.Fprintf(os.Stderr, "Error: report generation for run %s v%d: %v\n", d.RunID, d.Version, err)
		if e.correlator.Fail(d.RunID, d.Version) {
			e.publishFailure(d, err.Error())
		}
		e.store.Evict(d.RunID)
		return
	}

	// The run may have moved on (a later version started) while we were
	// fetching; in that case the results are discarded.
	if !e.correlator.Complete(d.RunID, d.Version) {
		if e.verbose {
			fmt.Fprintf(os.Stderr, "Discarding stale aggregation results for run %s v%d\n", d.RunID, d.Version)
		}
		return
	}

	if err := e.publisher.Publish(rep, markdown, jsonBody); err != nil {
		fmt.Fprintf(os.Stderr, "Error: publish run %s v%d: %v\n", d.RunID, d.Version, err)
	}
	e.store.Evict(d.RunID)
}

// fetchAll fetches the arrived kinds concurrently. A failed fetch drops the
// kind (reported as "input not arrived"), it never aborts the pass.
func (e *Engine) fetchAll(ctx context.Context, runID string, kinds []model.SourceKind) map[model.SourceKind]*evidence.Payload {
	jobs := make([]worker.Job, len(kinds))
	for i, kind := range kinds {
		jobs[i] = &fetchJob{store: e.store, runID: runID, kind: kind}
	}

	payloads := make(map[model.SourceKind]*evidence.Payload)
	for i, res := range e.pool.Run(ctx, jobs) {
		fr, ok := res.(*fetchResult)
		if !ok || fr.err != nil {
			if e.verbose {
				fmt.Fprintf(os.Stderr, "Warning: %s input dropped for run %s: %v\n", kinds[i], runID, res.GetError())
			}
			continue
		}
		payloads[fr.payload.Kind] = fr.payload
	}
	return payloads
}

// BuildReport runs the pure half of the pass: link, rank, assemble, render.
// Shared by the serve path and the one-shot aggregate command.
func (e *Engine) BuildReport(ctx context.Context, runID string, version int, status model.ReportStatus, payloads map[model.SourceKind]*evidence.Payload) (*model.Report, []byte, []byte, error) {
	var items []model.EvidenceItem
	var graph *model.GraphSnapshot
	var metrics *model.AnalysisMetrics
	var insights []model.AIInsight

	for _, kind := range model.AllSourceKinds() {
		p, ok := payloads[kind]
		if !ok {
			continue
		}
		items = append(items, p.Items...)
		if p.Graph != nil {
			graph = p.Graph
		}
		if p.Metrics != nil {
			metrics = p.Metrics
		}
		insights = append(insights, p.Insights...)
	}

	index := make(map[string]model.EvidenceItem, len(items))
	for _, item := range items {
		index[item.ID] = item
	}

	clusters := e.linker.Link(items, graph)
	improvements := e.ranker.Rank(clusters, index)

	in := report.Input{
		RunID:        runID,
		Version:      version,
		Status:       status,
		Graph:        graph,
		Metrics:      metrics,
		Insights:     insights,
		Items:        items,
		Improvements: improvements,
	}

	rep, err := e.assembler.Assemble(in)
	if err != nil {
		return nil, nil, nil, err
	}

	// Optional LLM narrative for the roadmap; generated after assembly so
	// it can never influence ranking, then assembled in as plain notes.
	if e.narrator != nil && len(rep.Sections.Roadmap.Entries) > 0 {
		notes, err := e.narrator.Narrate(ctx, llm.NarrateRequest{
			RunID:        runID,
			Entries:      rep.Sections.Roadmap.Entries,
			Improvements: improvements,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: roadmap narrative generation failed: %v\n", err)
		} else if notes != "" {
			in.RoadmapNotes = notes
			rep, err = e.assembler.Assemble(in)
			if err != nil {
				return nil, nil, nil, err
			}
		}
	}

	markdown, err := e.renderer.Render(rep, render.FormatMarkdown)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("render markdown: %w", err)
	}
	jsonBody, err := e.renderer.Render(rep, render.FormatJSON)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("render JSON: %w", err)
	}

	return rep, markdown, jsonBody, nil
}

func (e *Engine) publishFailure(d correlate.Decision, reason string) {
	rec := model.FailureRecord{
		RunID:    d.RunID,
		Version:  d.Version,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}
	if err := e.publisher.PublishFailure(rec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: record failure for run %s v%d: %v\n", d.RunID, d.Version, err)
	}
}

// fetchJob adapts one store fetch to the worker pool
type fetchJob struct {
	store *evidence.Store
	runID string
	kind  model.SourceKind
}

func (j *fetchJob) Execute(ctx context.Context) worker.Result {
	payload, err := j.store.Fetch(ctx, j.runID, j.kind)
	return &fetchResult{payload: payload, err: err}
}

// fetchResult carries one fetch outcome through the pool
type fetchResult struct {
	payload *evidence.Payload
	err     error
}

func (r *fetchResult) GetError() error { return r.err }
