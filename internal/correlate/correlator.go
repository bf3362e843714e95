package correlate

import (
	"sync"
	"time"

	"github.com/atlasci/coalesce/internal/model"
)

// Decision is emitted when a run version leaves pending: either all three
// inputs arrived (ready), the deadline hit with a partial set (degraded),
// or the deadline hit with nothing (failed).
type Decision struct {
	RunID   string
	Version int
	Status  model.RunStatus
	Arrived []model.SourceKind
}

// Handler consumes decisions. It is invoked on its own goroutine; the
// correlator never blocks on it.
type Handler func(Decision)

// Correlator tracks per-RunID correlation state. Updates to one run are
// serialized by a per-entry mutex; different runs proceed independently.
// Deadlines are enforced by a periodic sweep, never by blocking a caller.
type Correlator struct {
	mu   sync.Mutex
	runs map[string]*runEntry

	window  time.Duration
	sweep   time.Duration
	handler Handler
	clock   func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type runEntry struct {
	mu    sync.Mutex
	state model.RunState
}

// New creates a correlator with the given correlation window and sweep interval
func New(window, sweepInterval time.Duration, handler Handler) *Correlator {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if sweepInterval <= 0 {
		sweepInterval = 10 * time.Second
	}
	return &Correlator{
		runs:    make(map[string]*runEntry),
		window:  window,
		sweep:   sweepInterval,
		handler: handler,
		clock:   time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the deadline sweep goroutine
func (c *Correlator) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-c.stopCh:
				return
			case <-ticker.C:
				c.SweepOnce()
			}
		}
	}()
}

// Stop halts the sweep goroutine and waits for it to exit
func (c *Correlator) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
}

// Notify records an "input available" event. Duplicate notifications for an
// already-arrived kind are no-ops. A notification for a run whose current
// version is terminal starts a new version in pending.
func (c *Correlator) Notify(n model.Notification) {
	if !n.Source.Valid() {
		return
	}

	entry := c.entry(n.RunID)
	entry.mu.Lock()

	if entry.state.Status.Terminal() {
		c.resetLocked(entry)
	}

	if entry.state.Status != model.RunPending {
		// ready/degraded: the aggregation pass for this version is already
		// underway; late inputs wait for the next version.
		entry.mu.Unlock()
		return
	}

	if _, seen := entry.state.Arrived[n.Source]; seen {
		entry.mu.Unlock()
		return
	}
	entry.state.Arrived[n.Source] = n.AvailableAt

	var decision *Decision
	if len(entry.state.Arrived) == len(model.AllSourceKinds()) {
		entry.state.Status = model.RunReady
		decision = c.decisionLocked(entry)
	}
	entry.mu.Unlock()

	if decision != nil {
		c.dispatch(*decision)
	}
}

// SweepOnce force-transitions every run stuck past its deadline. Exported
// so tests and the engine can drive deadlines without waiting on the ticker.
func (c *Correlator) SweepOnce() {
	now := c.clock()

	c.mu.Lock()
	entries := make([]*runEntry, 0, len(c.runs))
	for _, e := range c.runs {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	for _, entry := range entries {
		entry.mu.Lock()
		if entry.state.Status != model.RunPending || now.Before(entry.state.Deadline) {
			entry.mu.Unlock()
			continue
		}
		if len(entry.state.Arrived) > 0 {
			entry.state.Status = model.RunDegraded
		} else {
			entry.state.Status = model.RunFailed
		}
		decision := c.decisionLocked(entry)
		entry.mu.Unlock()

		c.dispatch(*decision)
	}
}

// Complete marks a run version emitted after its report was produced.
// Returns false when the state moved on (a later version started or the
// version already terminated); callers must then discard their results.
func (c *Correlator) Complete(runID string, version int) bool {
	entry := c.entry(runID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.state.Version != version {
		return false
	}
	if entry.state.Status != model.RunReady && entry.state.Status != model.RunDegraded {
		return false
	}
	entry.state.Status = model.RunEmitted
	return true
}

// Fail marks a run version failed after its aggregation pass could not
// produce a report (all fetches failed, or an assembly invariant tripped)
func (c *Correlator) Fail(runID string, version int) bool {
	entry := c.entry(runID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.state.Version != version || entry.state.Status.Terminal() {
		return false
	}
	entry.state.Status = model.RunFailed
	return true
}

// PendingCount reports how many tracked runs are still waiting on inputs
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	entries := make([]*runEntry, 0, len(c.runs))
	for _, e := range c.runs {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	count := 0
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.state.Status == model.RunPending {
			count++
		}
		entry.mu.Unlock()
	}
	return count
}

// State returns a copy of the current state for one run, if tracked
func (c *Correlator) State(runID string) (model.RunState, bool) {
	c.mu.Lock()
	entry, ok := c.runs[runID]
	c.mu.Unlock()
	if !ok {
		return model.RunState{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	state := entry.state
	state.Arrived = make(map[model.SourceKind]time.Time, len(entry.state.Arrived))
	for k, v := range entry.state.Arrived {
		state.Arrived[k] = v
	}
	return state, true
}

func (c *Correlator) entry(runID string) *runEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.runs[runID]; ok {
		return entry
	}

	now := c.clock()
	entry := &runEntry{
		state: model.RunState{
			RunID:     runID,
			Version:   1,
			Status:    model.RunPending,
			Arrived:   make(map[model.SourceKind]time.Time),
			FirstSeen: now,
			Deadline:  now.Add(c.window),
		},
	}
	c.runs[runID] = entry
	return entry
}

// resetLocked starts the next report version for a run whose current
// version is terminal. Caller holds entry.mu.
func (c *Correlator) resetLocked(entry *runEntry) {
	now := c.clock()
	entry.state.Version++
	entry.state.Status = model.RunPending
	entry.state.Arrived = make(map[model.SourceKind]time.Time)
	entry.state.FirstSeen = now
	entry.state.Deadline = now.Add(c.window)
}

func (c *Correlator) decisionLocked(entry *runEntry) *Decision {
	return &Decision{
		RunID:   entry.state.RunID,
		Version: entry.state.Version,
		Status:  entry.state.Status,
		Arrived: entry.state.ArrivedKinds(),
	}
}

func (c *Correlator) dispatch(d Decision) {
	if c.handler == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.handler(d)
	}()
}
