// Package workflowengine is the reference implementation behind C6's
// adapter interface (spec.md §4.6): start/signal/query/cancel/status. No
// concrete external durable-workflow runtime is in scope (spec.md §9 open
// question), so this package also ships the one implementation the rest
// of the system runs against — a Postgres-durable, in-process saga
// stepper generalized from the teacher's DAG execution primitives
// (pkg/engine/dag_executor.go, execution_state.go, retry_policy.go):
// instead of executing a static DAG in topological waves, it advances a
// named-state saga one transition at a time, persisting state and
// suspending at signal/timer boundaries between transitions.
package workflowengine

import (
	"encoding/json"
	"time"

	domain "github.com/smilemakc/mbflow/pkg/models"
)

// Run is the engine's in-memory view of one workflow instance. It is
// loaded from and persisted to workflow_runs; WorkflowID equals CaseID
// per spec.md §4.6's 1:1 mapping.
type Run struct {
	WorkflowID     string
	RunID          string
	CaseID         string
	WorkflowType   string
	Status         domain.WorkflowRuntimeStatus
	CurrentStep    string
	Input          map[string]interface{}
	State          map[string]interface{}
	PendingSignals map[string][]json.RawMessage // signal name -> queued payloads, oldest first
	AwaitStep      string
	AwaitSignals   []string // signal names the current AwaitStep is waiting on
	AwaitStartedAt *time.Time
	EscalationTier int
	CloseReason    string
	StartTime      time.Time
	CloseTime      *time.Time
	Version        int
}

// Thread projects a Run into the public status shape spec.md §3/§4.6
// promises callers (the same shape internal/httpapi's status/query
// handlers return).
func (r *Run) Thread() domain.WorkflowThread {
	pending := make([]string, 0, len(r.PendingSignals))
	for name, queue := range r.PendingSignals {
		if len(queue) > 0 {
			pending = append(pending, name)
		}
	}
	return domain.WorkflowThread{
		WorkflowID:     r.WorkflowID,
		CaseID:         r.CaseID,
		CurrentStep:    r.CurrentStep,
		PendingSignals: pending,
		LastActivityAt: r.lastActivityAt(),
		Status:         r.Status,
		StartTime:      r.StartTime,
		CloseTime:      r.CloseTime,
	}
}

func (r *Run) lastActivityAt() time.Time {
	if r.AwaitStartedAt != nil {
		return *r.AwaitStartedAt
	}
	return r.StartTime
}

// StepOutcome is what a registered StepFunc returns to tell the engine
// how to continue (spec.md §4.7's saga: each state is "the currently
// executing or awaited activity").
type StepOutcome struct {
	// NextStep, if non-empty, advances the run immediately to NextStep
	// and invokes it in the same Advance call (used for synchronous
	// activity steps with no human-in-the-loop wait).
	NextStep string

	// AwaitSignals, if non-empty, suspends the run in CurrentStep,
	// persists AwaitStartedAt = now, and returns control to the caller.
	// The run resumes when one of these signal names is delivered (or a
	// queued payload for one already exists).
	AwaitSignals []string

	// Done, if set, marks the run terminal with the given status/reason.
	Done        bool
	FinalStatus domain.WorkflowRuntimeStatus
	CloseReason string
}

// Continue is a convenience constructor for "advance straight to the next
// step" outcomes.
func Continue(nextStep string) StepOutcome { return StepOutcome{NextStep: nextStep} }

// AwaitSignal suspends the run awaiting one or more named signals.
func AwaitSignal(names ...string) StepOutcome { return StepOutcome{AwaitSignals: names} }

// Completed marks the run successfully finished.
func Completed() StepOutcome {
	return StepOutcome{Done: true, FinalStatus: domain.RuntimeStatusCompleted}
}

// Failed marks the run terminally failed with reason.
func Failed(reason string) StepOutcome {
	return StepOutcome{Done: true, FinalStatus: domain.RuntimeStatusFailed, CloseReason: reason}
}

// Cancelled marks the run cancelled with reason.
func Cancelled(reason string) StepOutcome {
	return StepOutcome{Done: true, FinalStatus: domain.RuntimeStatusCancelled, CloseReason: reason}
}
