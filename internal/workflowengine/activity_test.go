package workflowengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivity_SucceedsFirstTry(t *testing.T) {
	calls := 0
	act := Activity[int, int]{
		Name:   "double",
		Policy: Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2},
		Run: func(ctx context.Context, in int, heartbeat func()) (int, error) {
			calls++
			return in * 2, nil
		},
	}

	out, err := act.Execute(context.Background(), testEngineLogger(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
	assert.Equal(t, 1, calls)
}

func TestActivity_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	act := Activity[string, string]{
		Name:   "flaky",
		Policy: Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2, MaxDelay: 5 * time.Millisecond},
		Run: func(ctx context.Context, in string, heartbeat func()) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok:" + in, nil
		},
	}

	out, err := act.Execute(context.Background(), testEngineLogger(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok:x", out)
	assert.Equal(t, 3, calls)
}

func TestActivity_ExhaustsRetriesAndFails(t *testing.T) {
	calls := 0
	act := Activity[struct{}, struct{}]{
		Name:   "always-fails",
		Policy: Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 2},
		Run: func(ctx context.Context, in struct{}, heartbeat func()) (struct{}, error) {
			calls++
			return struct{}{}, errors.New("boom")
		},
	}

	_, err := act.Execute(context.Background(), testEngineLogger(), struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "always-fails")
	assert.Equal(t, 2, calls)
}

func TestActivity_NoRetryPolicyRunsOnce(t *testing.T) {
	calls := 0
	act := Activity[struct{}, struct{}]{
		Name:   "create-draft",
		Policy: CreateDraftPolicy,
		Run: func(ctx context.Context, in struct{}, heartbeat func()) (struct{}, error) {
			calls++
			return struct{}{}, errors.New("conflict")
		},
	}

	_, err := act.Execute(context.Background(), testEngineLogger(), struct{}{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestActivity_HeartbeatKeepsRunAlive(t *testing.T) {
	act := Activity[struct{}, string]{
		Name:      "heartbeating",
		Policy:    Policy{MaxAttempts: 1},
		Heartbeat: true,
		Run: func(ctx context.Context, in struct{}, heartbeat func()) (string, error) {
			heartbeat()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(20 * time.Millisecond):
			}
			return "done", nil
		},
	}

	out, err := act.Execute(context.Background(), testEngineLogger(), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
}
