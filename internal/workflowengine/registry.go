package workflowengine

import (
	"context"
	"encoding/json"
)

// StepFunc implements one saga state's behavior: it runs whatever
// activities that state owns, then tells the engine how to continue
// (internal/orderworkflow registers one StepFunc per state in its
// "stored → parsed → … → completed" machine, spec.md §4.7).
//
// signal carries the payload that resumed this step when it was entered
// via Signal (nil when entered via NextStep chaining or at Start).
type StepFunc func(ctx context.Context, run *Run, signal json.RawMessage) (StepOutcome, error)

// QueryFunc answers a synchronous, read-only query against a run's state
// (spec.md §4.6 "query(workflowId, name) → value"). The default
// "getState" query is answered by Engine.Query itself without a
// registration; workflow types may register additional named queries.
type QueryFunc func(run *Run) (interface{}, error)

// WorkflowType is one registered workflow definition: its steps, its
// queries, and the step a fresh run starts in.
type WorkflowType struct {
	Name       string
	StartStep  string
	Steps      map[string]StepFunc
	Queries    map[string]QueryFunc

	// Compensate, if set, runs when a run is cancelled mid-flight
	// (spec.md §4.7: "accepts cancellation ... runs compensation").
	Compensate func(ctx context.Context, run *Run) error
}

// Registry collects WorkflowTypes by name. The order-intake service
// registers exactly one ("order-intake"), but the shape supports more
// without changing the engine.
type Registry struct {
	types map[string]*WorkflowType
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*WorkflowType)}
}

// Register adds a WorkflowType, giving it an empty query set if the
// caller supplied none (the built-in "getState" query needs no entry).
func (r *Registry) Register(wt *WorkflowType) {
	if wt.Queries == nil {
		wt.Queries = make(map[string]QueryFunc)
	}
	r.types[wt.Name] = wt
}

func (r *Registry) lookup(name string) (*WorkflowType, bool) {
	wt, ok := r.types[name]
	return wt, ok
}
