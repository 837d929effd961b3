package workflowengine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/smilemakc/mbflow/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []EscalationEvent
}

func (r *recordingNotifier) Notify(ctx context.Context, event EscalationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) recorded() []EscalationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EscalationEvent, len(r.events))
	copy(out, r.events)
	return out
}

func newAwaitingRun(workflowID string, startedAt time.Time, tier int) *Run {
	return &Run{
		WorkflowID:     workflowID,
		RunID:          "run-" + workflowID,
		CaseID:         workflowID,
		WorkflowType:   "two-step",
		Status:         domain.RuntimeStatusRunning,
		CurrentStep:    "awaiting",
		Input:          map[string]interface{}{},
		State:          map[string]interface{}{},
		PendingSignals: map[string][]json.RawMessage{},
		AwaitStep:      "awaiting",
		AwaitSignals:   []string{"go"},
		AwaitStartedAt: &startedAt,
		EscalationTier: tier,
		Version:        1,
	}
}

func TestEscalationSweeper_FiresReminderAfterReminderThreshold(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()
	st := newStore(testDB.DB)

	notifier := &recordingNotifier{}
	sweeper := NewEscalationSweeper(testDB.DB, notifier, testEngineLogger(), EscalationConfig{
		ReminderAfter: time.Hour,
		EscalateAfter: 2 * time.Hour,
		MaxWait:       3 * time.Hour,
	})

	run := newAwaitingRun("wf-escalation", time.Now().Add(-90*time.Minute), EscalationTierNone)
	require.NoError(t, st.create(ctx, run))

	require.NoError(t, sweeper.SweepOnce(ctx))
	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, EscalationTierReminder, events[0].Tier)

	reloaded, err := st.load(ctx, "wf-escalation")
	require.NoError(t, err)
	assert.Equal(t, EscalationTierReminder, reloaded.EscalationTier)
	assert.Equal(t, domain.RuntimeStatusRunning, reloaded.Status)
}

func TestEscalationSweeper_TimeoutFailsTheRun(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()
	st := newStore(testDB.DB)

	notifier := &recordingNotifier{}
	sweeper := NewEscalationSweeper(testDB.DB, notifier, testEngineLogger(), EscalationConfig{
		ReminderAfter: time.Hour,
		EscalateAfter: 2 * time.Hour,
		MaxWait:       3 * time.Hour,
	})

	run := newAwaitingRun("wf-timeout", time.Now().Add(-4*time.Hour), EscalationTierEscalated)
	require.NoError(t, st.create(ctx, run))

	require.NoError(t, sweeper.SweepOnce(ctx))
	events := notifier.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, EscalationTierTimedOut, events[0].Tier)

	reloaded, err := st.load(ctx, "wf-timeout")
	require.NoError(t, err)
	assert.Equal(t, domain.RuntimeStatusFailed, reloaded.Status)
	assert.Equal(t, HumanResponseTimeout, reloaded.CloseReason)
	assert.Empty(t, reloaded.AwaitStep)
}

func TestEscalationSweeper_SkipsRunsAlreadyAtTier(t *testing.T) {
	testDB := testutil.SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()
	st := newStore(testDB.DB)

	notifier := &recordingNotifier{}
	sweeper := NewEscalationSweeper(testDB.DB, notifier, testEngineLogger(), EscalationConfig{
		ReminderAfter: time.Hour,
		EscalateAfter: 2 * time.Hour,
		MaxWait:       3 * time.Hour,
	})

	run := newAwaitingRun("wf-already-reminded", time.Now().Add(-90*time.Minute), EscalationTierReminder)
	require.NoError(t, st.create(ctx, run))

	require.NoError(t, sweeper.SweepOnce(ctx))
	assert.Empty(t, notifier.recorded())
}
