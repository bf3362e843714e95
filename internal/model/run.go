package model

import "time"

// SourceKind identifies one of the three upstream inputs of a pipeline run
type SourceKind string

const (
	SourceGraph SourceKind = "graph" // structure/dependency graph snapshot
	SourceRule  SourceKind = "rule"  // rule-engine findings + analysis metrics
	SourceAI    SourceKind = "ai"    // AI-generated insights
)

// AllSourceKinds lists the inputs required for a complete report, in canonical order
func AllSourceKinds() []SourceKind {
	return []SourceKind{SourceGraph, SourceRule, SourceAI}
}

// Valid reports whether k is a known source kind
func (k SourceKind) Valid() bool {
	switch k {
	case SourceGraph, SourceRule, SourceAI:
		return true
	}
	return false
}

// RunStatus tracks the correlation state of one report generation
type RunStatus string

const (
	RunPending  RunStatus = "pending"  // waiting for inputs, deadline not reached
	RunReady    RunStatus = "ready"    // all three inputs available
	RunDegraded RunStatus = "degraded" // deadline hit with a partial input set
	RunEmitted  RunStatus = "emitted"  // report produced (terminal for this version)
	RunFailed   RunStatus = "failed"   // deadline hit with no inputs (terminal)
)

// Terminal reports whether the status admits no further transitions for this version
func (s RunStatus) Terminal() bool {
	return s == RunEmitted || s == RunFailed
}

// Notification is one inbound "input available" event from the stream collaborator.
// Delivery is at-least-once; duplicates for an already-arrived kind are no-ops.
type Notification struct {
	RunID       string     `json:"run_id"`
	Source      SourceKind `json:"source"`
	AvailableAt time.Time  `json:"available_at"`
}

// RunState is the per-version correlation record for one RunID
type RunState struct {
	RunID     string                       `json:"run_id"`
	Version   int                          `json:"version"`            // 1-based, monotonic per RunID
	Status    RunStatus                    `json:"status"`
	Arrived   map[SourceKind]time.Time     `json:"arrived"`            // when each input was reported available
	FirstSeen time.Time                    `json:"first_seen"`
	Deadline  time.Time                    `json:"deadline"`           // first_seen + correlation window
}

// ArrivedKinds returns the arrived-input set in canonical order
func (s *RunState) ArrivedKinds() []SourceKind {
	var kinds []SourceKind
	for _, k := range AllSourceKinds() {
		if _, ok := s.Arrived[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// FailureRecord is the explicit artifact surfaced when no report can be
// generated for a run version (ReportGenerationFailed). It is published to
// the downstream consumer instead of being silently dropped.
type FailureRecord struct {
	ID        string    `json:"id"`       // delivery identifier
	RunID     string    `json:"run_id"`
	Version   int       `json:"version"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}
