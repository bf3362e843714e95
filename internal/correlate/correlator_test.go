package correlate

import (
	"sync"
	"testing"
	"time"

	"github.com/atlasci/coalesce/internal/model"
)

// decisionRecorder collects dispatched decisions
type decisionRecorder struct {
	mu        sync.Mutex
	decisions []Decision
}

func (r *decisionRecorder) handle(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, d)
}

func (r *decisionRecorder) wait(t *testing.T, n int) []Decision {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		if len(r.decisions) >= n {
			out := append([]Decision(nil), r.decisions...)
			r.mu.Unlock()
			return out
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d decisions", n)
	return nil
}

func notify(c *Correlator, runID string, kind model.SourceKind) {
	c.Notify(model.Notification{RunID: runID, Source: kind, AvailableAt: time.Now()})
}

func TestCorrelator_AllInputsReady(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	notify(c, "R1", model.SourceGraph)
	notify(c, "R1", model.SourceRule)
	notify(c, "R1", model.SourceAI)

	decisions := rec.wait(t, 1)
	d := decisions[0]
	if d.Status != model.RunReady {
		t.Errorf("expected ready, got %s", d.Status)
	}
	if d.RunID != "R1" || d.Version != 1 {
		t.Errorf("unexpected decision identity: %+v", d)
	}
	if len(d.Arrived) != 3 {
		t.Errorf("expected 3 arrived kinds, got %v", d.Arrived)
	}
}

func TestCorrelator_DuplicateNotificationsAreNoOps(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	notify(c, "R1", model.SourceGraph)
	notify(c, "R1", model.SourceGraph)
	notify(c, "R1", model.SourceGraph)

	state, ok := c.State("R1")
	if !ok {
		t.Fatal("expected run state to exist")
	}
	if len(state.Arrived) != 1 {
		t.Errorf("expected 1 arrived kind after duplicates, got %d", len(state.Arrived))
	}
	if state.Status != model.RunPending {
		t.Errorf("expected pending, got %s", state.Status)
	}
}

func TestCorrelator_DeadlineDegrades(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	notify(c, "R2", model.SourceGraph)
	notify(c, "R2", model.SourceRule)

	// Deadline not reached: sweep is a no-op
	c.SweepOnce()
	if state, _ := c.State("R2"); state.Status != model.RunPending {
		t.Fatalf("expected pending before deadline, got %s", state.Status)
	}

	// Move the clock past the deadline
	c.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	c.SweepOnce()

	decisions := rec.wait(t, 1)
	if decisions[0].Status != model.RunDegraded {
		t.Errorf("expected degraded, got %s", decisions[0].Status)
	}
	if len(decisions[0].Arrived) != 2 {
		t.Errorf("expected 2 arrived kinds, got %v", decisions[0].Arrived)
	}
}

func TestCorrelator_DeadlineWithNoInputsFails(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	// A run is normally only tracked once something arrives; create the
	// entry directly so the empty-arrival branch can be exercised.
	entry := c.entry("R3")
	entry.mu.Lock()
	entry.state.Deadline = time.Now().Add(-time.Second)
	entry.mu.Unlock()

	c.SweepOnce()

	decisions := rec.wait(t, 1)
	if decisions[0].Status != model.RunFailed {
		t.Errorf("expected failed, got %s", decisions[0].Status)
	}
	if len(decisions[0].Arrived) != 0 {
		t.Errorf("expected no arrived kinds, got %v", decisions[0].Arrived)
	}

	// Terminal: a fresh notification starts version 2 in pending
	notify(c, "R3", model.SourceGraph)
	state, _ := c.State("R3")
	if state.Version != 2 {
		t.Errorf("expected version 2 after failure, got %d", state.Version)
	}
	if state.Status != model.RunPending {
		t.Errorf("expected pending, got %s", state.Status)
	}
}

func TestCorrelator_CompleteMarksEmitted(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	notify(c, "R1", model.SourceGraph)
	notify(c, "R1", model.SourceRule)
	notify(c, "R1", model.SourceAI)
	rec.wait(t, 1)

	if !c.Complete("R1", 1) {
		t.Fatal("expected Complete to succeed for the ready version")
	}
	if state, _ := c.State("R1"); state.Status != model.RunEmitted {
		t.Errorf("expected emitted, got %s", state.Status)
	}

	// Completing again is rejected
	if c.Complete("R1", 1) {
		t.Error("expected second Complete to be rejected")
	}
}

func TestCorrelator_ReGenerationIncrementsVersion(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	for _, k := range model.AllSourceKinds() {
		notify(c, "R1", k)
	}
	rec.wait(t, 1)
	c.Complete("R1", 1)

	// Second generation for the same RunID
	for _, k := range model.AllSourceKinds() {
		notify(c, "R1", k)
	}
	decisions := rec.wait(t, 2)

	if decisions[1].Version != 2 {
		t.Errorf("expected version 2, got %d", decisions[1].Version)
	}
	if decisions[1].Status != model.RunReady {
		t.Errorf("expected ready, got %s", decisions[1].Status)
	}
}

func TestCorrelator_StaleCompletionDiscarded(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	for _, k := range model.AllSourceKinds() {
		notify(c, "R1", k)
	}
	rec.wait(t, 1)
	c.Complete("R1", 1)

	// Version 2 starts; completing version 1 again must be rejected
	notify(c, "R1", model.SourceGraph)
	if c.Complete("R1", 1) {
		t.Error("expected stale Complete for version 1 to be rejected")
	}
	if state, _ := c.State("R1"); state.Version != 2 || state.Status != model.RunPending {
		t.Errorf("version 2 state disturbed: %+v", state)
	}
}

func TestCorrelator_FailAfterDecision(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	for _, k := range model.AllSourceKinds() {
		notify(c, "R1", k)
	}
	rec.wait(t, 1)

	if !c.Fail("R1", 1) {
		t.Fatal("expected Fail to succeed for the ready version")
	}
	if state, _ := c.State("R1"); state.Status != model.RunFailed {
		t.Errorf("expected failed, got %s", state.Status)
	}
}

func TestCorrelator_LateInputAfterDecisionIgnored(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	notify(c, "R2", model.SourceGraph)
	c.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	c.SweepOnce()
	rec.wait(t, 1)

	// Degraded (non-terminal): a late input waits for the next version
	notify(c, "R2", model.SourceAI)
	state, _ := c.State("R2")
	if state.Status != model.RunDegraded {
		t.Errorf("expected degraded, got %s", state.Status)
	}
	if len(state.Arrived) != 1 {
		t.Errorf("late input should not join the in-flight version, arrived=%v", state.Arrived)
	}
}

func TestCorrelator_PendingCount(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	if c.PendingCount() != 0 {
		t.Errorf("expected 0 pending with no runs, got %d", c.PendingCount())
	}

	notify(c, "R1", model.SourceGraph)
	notify(c, "R2", model.SourceGraph)
	if c.PendingCount() != 2 {
		t.Errorf("expected 2 pending runs, got %d", c.PendingCount())
	}

	// R1 completes its input set and leaves pending
	notify(c, "R1", model.SourceRule)
	notify(c, "R1", model.SourceAI)
	if c.PendingCount() != 1 {
		t.Errorf("expected 1 pending run after R1 became ready, got %d", c.PendingCount())
	}

	// R2 degrades past its deadline
	c.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	c.SweepOnce()
	if c.PendingCount() != 0 {
		t.Errorf("expected 0 pending runs after the sweep, got %d", c.PendingCount())
	}
}

func TestCorrelator_ConcurrentNotifications(t *testing.T) {
	rec := &decisionRecorder{}
	c := New(time.Minute, time.Second, rec.handle)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		for _, k := range model.AllSourceKinds() {
			wg.Add(1)
			go func(kind model.SourceKind) {
				defer wg.Done()
				notify(c, "R1", kind)
			}(k)
		}
	}
	wg.Wait()

	// Exactly one ready decision for version 1, no matter the interleaving
	decisions := rec.wait(t, 1)
	time.Sleep(20 * time.Millisecond)
	rec.mu.Lock()
	total := len(rec.decisions)
	rec.mu.Unlock()
	if total != 1 {
		t.Errorf("expected exactly 1 decision, got %d", total)
	}
	if decisions[0].Status != model.RunReady {
		t.Errorf("expected ready, got %s", decisions[0].Status)
	}
}
