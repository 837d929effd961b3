package workflowengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/uptrace/bun"
)

var (
	errNoProgress = errors.New("workflow run has nothing ready to advance")
	errNotRunning = errors.New("workflow run is not running")
)

// Engine is C6's adapter implementation
// (start/signal/query/cancel/status, spec.md §4.6), backed by the
// in-process, Postgres-durable run store.
type Engine struct {
	store    *store
	registry *Registry
	log      *logger.Logger
}

// NewEngine builds an Engine over an existing database connection and a
// registry of workflow types (internal/orderworkflow registers its
// "order-intake" type against it at composition time).
func NewEngine(db *bun.DB, registry *Registry, log *logger.Logger) *Engine {
	return &Engine{store: newStore(db), registry: registry, log: log}
}

// Start begins a new run of workflowType identified by workflowId
// (= caseId, spec.md §4.6's 1:1 mapping), runs it synchronously through
// every step up to its first suspend point, and returns the runId.
func (e *Engine) Start(ctx context.Context, workflowType, workflowID string, input map[string]interface{}) (string, error) {
	wt, ok := e.registry.lookup(workflowType)
	if !ok {
		return "", fmt.Errorf("unknown workflow type %q", workflowType)
	}
	run := &Run{
		WorkflowID:     workflowID,
		RunID:          uuid.New().String(),
		CaseID:         workflowID,
		WorkflowType:   workflowType,
		Status:         domain.RuntimeStatusRunning,
		CurrentStep:    wt.StartStep,
		Input:          input,
		State:          map[string]interface{}{},
		PendingSignals: map[string][]json.RawMessage{},
		StartTime:      time.Now(),
		Version:        1,
	}
	if err := e.store.create(ctx, run); err != nil {
		return "", err
	}
	if err := e.runToSuspend(ctx, workflowID); err != nil {
		return run.RunID, err
	}
	return run.RunID, nil
}

// Signal delivers a named, typed payload to a run (spec.md §4.6/§4.7).
// A run that is no longer running rejects it with ErrSignalRejected;
// otherwise it is queued, then the run is driven forward if it was
// waiting on exactly this signal name.
func (e *Engine) Signal(ctx context.Context, workflowID, name string, payload json.RawMessage) error {
	run, err := e.store.mutate(ctx, workflowID, func(run *Run) error {
		if run.Status != domain.RuntimeStatusRunning {
			return fmt.Errorf("%w: %s", domain.ErrSignalRejected, workflowID)
		}
		if run.PendingSignals == nil {
			run.PendingSignals = map[string][]json.RawMessage{}
		}
		run.PendingSignals[name] = append(run.PendingSignals[name], payload)
		return nil
	})
	if err != nil {
		return err
	}
	if run.AwaitStep != "" && containsString(run.AwaitSignals, name) {
		return e.runToSuspend(ctx, workflowID)
	}
	return nil
}

// Query answers a synchronous read-only snapshot (spec.md §4.6). The
// built-in "getState" query needs no workflow-type registration; any
// other name is looked up in the run's workflow type.
func (e *Engine) Query(ctx context.Context, workflowID, name string) (interface{}, error) {
	run, err := e.store.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if name == "" || name == "getState" {
		return run.Thread(), nil
	}
	wt, ok := e.registry.lookup(run.WorkflowType)
	if !ok {
		return nil, fmt.Errorf("unknown workflow type %q", run.WorkflowType)
	}
	qf, ok := wt.Queries[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %q for workflow type %q", name, run.WorkflowType)
	}
	return qf(run)
}

// Cancel accepts cancellation at any awaiting-* state (spec.md §4.7) and
// runs the workflow type's registered compensation, if any.
func (e *Engine) Cancel(ctx context.Context, workflowID, reason string) error {
	run, err := e.store.mutate(ctx, workflowID, func(run *Run) error {
		if run.Status != domain.RuntimeStatusRunning {
			return fmt.Errorf("%w: %s", errNotRunning, workflowID)
		}
		now := time.Now()
		run.Status = domain.RuntimeStatusCancelled
		run.CloseReason = reason
		run.CloseTime = &now
		run.AwaitStep = ""
		run.AwaitSignals = nil
		return nil
	})
	if err != nil {
		return err
	}
	wt, ok := e.registry.lookup(run.WorkflowType)
	if ok && wt.Compensate != nil {
		if cerr := wt.Compensate(ctx, run); cerr != nil {
			e.log.Error("workflow compensation failed", "error", cerr, "workflowId", workflowID)
		}
	}
	return nil
}

// Status returns the run's public snapshot (spec.md §4.6
// "status(workflowId) → {runtimeStatus, currentStep, startedAt, closedAt?}").
func (e *Engine) Status(ctx context.Context, workflowID string) (domain.WorkflowThread, error) {
	run, err := e.store.load(ctx, workflowID)
	if err != nil {
		return domain.WorkflowThread{}, err
	}
	return run.Thread(), nil
}

// runToSuspend repeatedly steps the run until it suspends on a signal,
// reaches a terminal status, or has nothing ready to advance.
func (e *Engine) runToSuspend(ctx context.Context, workflowID string) error {
	for {
		advanced, err := e.stepOnce(ctx, workflowID)
		if err != nil {
			return err
		}
		if !advanced {
			return nil
		}
	}
}

// stepOnce loads the run, executes at most one step transactionally
// under optimistic concurrency, and persists the result. It is the unit
// of "checkpointed" progress the durable-orchestration contract promises:
// a crash between two stepOnce calls resumes cleanly from the last
// persisted CurrentStep.
func (e *Engine) stepOnce(ctx context.Context, workflowID string) (bool, error) {
	var outcome StepOutcome
	var stepErr error
	_, err := e.store.mutate(ctx, workflowID, func(run *Run) error {
		if run.Status != domain.RuntimeStatusRunning {
			return errNoProgress
		}

		var payload json.RawMessage
		if run.AwaitStep != "" {
			name, p, ok := popQueuedSignal(run)
			if !ok {
				return errNoProgress
			}
			payload = p
			clearAwaitedSignals(run, run.AwaitSignals)
			run.AwaitStep = ""
			run.AwaitSignals = nil
			run.AwaitStartedAt = nil
			run.EscalationTier = 0
			_ = name
		}

		wt, ok := e.registry.lookup(run.WorkflowType)
		if !ok {
			return fmt.Errorf("unknown workflow type %q", run.WorkflowType)
		}
		step, ok := wt.Steps[run.CurrentStep]
		if !ok {
			return fmt.Errorf("unknown step %q for workflow type %q", run.CurrentStep, run.WorkflowType)
		}

		outcome, stepErr = step(ctx, run, payload)
		if stepErr != nil {
			return stepErr
		}
		applyOutcome(run, outcome)
		return nil
	})
	if errors.Is(err, errNoProgress) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func applyOutcome(run *Run, outcome StepOutcome) {
	now := time.Now()
	switch {
	case outcome.Done:
		run.Status = outcome.FinalStatus
		run.CloseReason = outcome.CloseReason
		run.CloseTime = &now
		run.AwaitStep = ""
		run.AwaitSignals = nil
	case len(outcome.AwaitSignals) > 0:
		run.AwaitStep = run.CurrentStep
		run.AwaitSignals = outcome.AwaitSignals
		run.AwaitStartedAt = &now
		run.EscalationTier = 0
	case outcome.NextStep != "":
		run.CurrentStep = outcome.NextStep
		run.AwaitStep = ""
		run.AwaitSignals = nil
		run.AwaitStartedAt = nil
	}
}

// popQueuedSignal returns the oldest queued payload for the first
// awaited signal name that has one, dequeuing it.
func popQueuedSignal(run *Run) (string, json.RawMessage, bool) {
	for _, name := range run.AwaitSignals {
		queue := run.PendingSignals[name]
		if len(queue) > 0 {
			payload := queue[0]
			run.PendingSignals[name] = queue[1:]
			return name, payload, true
		}
	}
	return "", nil, false
}

// clearAwaitedSignals drops any signals still queued for names the run
// is about to leave — spec.md §4.7: "duplicates for a state the workflow
// has already left are dropped (at-most-once effective)".
func clearAwaitedSignals(run *Run, names []string) {
	for _, name := range names {
		delete(run.PendingSignals, name)
	}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
