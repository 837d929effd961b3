package workflowengine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/mbflow/internal/config"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/smilemakc/mbflow/testutil"
)

func testEngineLogger() *logger.Logger {
	return logger.New(config.LoggingConfig{Level: "error", Format: "text"})
}

// twoStepAwaitType registers a trivial workflow: "start" runs straight
// through to "awaiting", which suspends on signal "go"; receiving "go"
// finishes the run.
func twoStepAwaitType() *WorkflowType {
	return &WorkflowType{
		Name:      "two-step",
		StartStep: "start",
		Steps: map[string]StepFunc{
			"start": func(ctx context.Context, run *Run, signal json.RawMessage) (StepOutcome, error) {
				return Continue("awaiting"), nil
			},
			"awaiting": func(ctx context.Context, run *Run, signal json.RawMessage) (StepOutcome, error) {
				if signal == nil {
					return AwaitSignal("go"), nil
				}
				run.State["received"] = string(signal)
				return Completed(), nil
			},
		},
		Queries: map[string]QueryFunc{
			"received": func(run *Run) (interface{}, error) {
				return run.State["received"], nil
			},
		},
	}
}

func setupEngineTest(t *testing.T) (*Engine, func()) {
	testDB := testutil.SetupTestDB(t)
	registry := NewRegistry()
	registry.Register(twoStepAwaitType())
	log := testEngineLogger()
	engine := NewEngine(testDB.DB, registry, log)
	return engine, func() { testDB.Cleanup(t) }
}

func TestEngine_StartSuspendsAtAwaitStep(t *testing.T) {
	engine, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	runID, err := engine.Start(ctx, "two-step", "wf-1", map[string]interface{}{})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	thread, err := engine.Status(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeStatusRunning, thread.Status)
	assert.Equal(t, "awaiting", thread.CurrentStep)
}

func TestEngine_SignalResumesAndCompletes(t *testing.T) {
	engine, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := engine.Start(ctx, "two-step", "wf-2", map[string]interface{}{})
	require.NoError(t, err)

	require.NoError(t, engine.Signal(ctx, "wf-2", "go", json.RawMessage(`"hello"`)))

	thread, err := engine.Status(ctx, "wf-2")
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeStatusCompleted, thread.Status)

	val, err := engine.Query(ctx, "wf-2", "received")
	require.NoError(t, err)
	assert.Equal(t, `"hello"`, val)
}

func TestEngine_SignalBeforeAwaitIsQueuedThenConsumed(t *testing.T) {
	// Queue the signal via a direct store mutate before Start runs the
	// first step, to exercise the "signal arrives before the workflow
	// reaches the awaiting state" queuing path (spec.md §4.7/§5).
	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)

	registry := NewRegistry()
	registry.Register(twoStepAwaitType())
	engine := NewEngine(testDB.DB, registry, testEngineLogger())
	ctx := context.Background()

	run := &Run{
		WorkflowID:     "wf-3",
		RunID:          "run-3",
		CaseID:         "wf-3",
		WorkflowType:   "two-step",
		Status:         domain.RuntimeStatusRunning,
		CurrentStep:    "start",
		Input:          map[string]interface{}{},
		State:          map[string]interface{}{},
		PendingSignals: map[string][]json.RawMessage{"go": {json.RawMessage(`"early"`)}},
		Version:        1,
	}
	st := newStore(testDB.DB)
	require.NoError(t, st.create(ctx, run))

	require.NoError(t, engine.runToSuspend(ctx, "wf-3"))

	thread, err := engine.Status(ctx, "wf-3")
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeStatusCompleted, thread.Status)

	val, err := engine.Query(ctx, "wf-3", "received")
	require.NoError(t, err)
	assert.Equal(t, `"early"`, val)
}

func TestEngine_CancelRunsCompensation(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)

	var compensated bool
	wt := twoStepAwaitType()
	wt.Compensate = func(ctx context.Context, run *Run) error {
		compensated = true
		return nil
	}
	registry := NewRegistry()
	registry.Register(wt)
	engine := NewEngine(testDB.DB, registry, testEngineLogger())
	ctx := context.Background()

	_, err := engine.Start(ctx, "two-step", "wf-4", map[string]interface{}{})
	require.NoError(t, err)

	require.NoError(t, engine.Cancel(ctx, "wf-4", "user requested cancellation"))
	assert.True(t, compensated)

	thread, err := engine.Status(ctx, "wf-4")
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeStatusCancelled, thread.Status)
}

func TestEngine_DuplicateSignalAfterStepLeftIsDropped(t *testing.T) {
	engine, cleanup := setupEngineTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := engine.Start(ctx, "two-step", "wf-5", map[string]interface{}{})
	require.NoError(t, err)
	require.NoError(t, engine.Signal(ctx, "wf-5", "go", json.RawMessage(`"first"`)))

	// The run is now COMPLETED; a duplicate "go" signal must not error
	// the whole system and must not resurrect the run.
	err = engine.Signal(ctx, "wf-5", "go", json.RawMessage(`"second"`))
	require.Error(t, err)

	thread, err := engine.Status(ctx, "wf-5")
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeStatusCompleted, thread.Status)
}
