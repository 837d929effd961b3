package retryqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/mbflow/internal/config"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	domain "github.com/smilemakc/mbflow/pkg/models"
)

type fakeRetrier struct {
	mu        sync.Mutex
	calls     []string
	failUntil map[string]int
	attempts  map[string]int
}

func newFakeRetrier() *fakeRetrier {
	return &fakeRetrier{failUntil: map[string]int{}, attempts: map[string]int{}}
}

func (f *fakeRetrier) Retry(ctx context.Context, item domain.RetryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, item.CaseID)
	f.attempts[item.CaseID]++
	if f.attempts[item.CaseID] <= f.failUntil[item.CaseID] {
		return errors.New("accounting system unavailable")
	}
	return nil
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeEmitter) CreateEvent(ctx context.Context, eventType domain.OutboxEventType, caseID, payload string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, string(eventType)+":"+caseID)
	return "event-id", nil
}

func testLogger() *logger.Logger {
	return logger.New(config.LoggingConfig{Level: "error", Format: "text"})
}

func TestSweeper_SweepOnce_SucceedsAndEmitsEvent(t *testing.T) {
	q, cleanup := setupQueueTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "case-sweep-1", `{}`, "fp-1", nil))
	time.Sleep(2 * time.Millisecond)

	retrier := newFakeRetrier()
	emitter := &fakeEmitter{}
	sweeper := NewSweeper(q, retrier, emitter, testLogger())

	require.NoError(t, sweeper.SweepOnce(ctx))

	items, err := q.GetReady(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 0, "succeeded item should no longer be ready")
	assert.Contains(t, emitter.events, "created:case-sweep-1")
}

func TestSweeper_SweepOnce_AbandonsAfterMaxRetries(t *testing.T) {
	q, cleanup := setupQueueTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "case-sweep-2", `{}`, "fp-2", nil))
	time.Sleep(2 * time.Millisecond)

	retrier := newFakeRetrier()
	retrier.failUntil["case-sweep-2"] = 100 // always fails
	emitter := &fakeEmitter{}
	sweeper := NewSweeper(q, retrier, emitter, testLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, sweeper.SweepOnce(ctx))
		time.Sleep(15 * time.Millisecond)
	}

	assert.Contains(t, emitter.events, "retry-exhausted:case-sweep-2")
}

func TestSweeper_SweepOnce_ProcessesDifferentCasesConcurrently(t *testing.T) {
	q, cleanup := setupQueueTest(t)
	defer cleanup()
	ctx := context.Background()

	for _, c := range []string{"case-a", "case-b", "case-c"} {
		require.NoError(t, q.Enqueue(ctx, c, `{}`, "fp", nil))
	}
	time.Sleep(2 * time.Millisecond)

	retrier := newFakeRetrier()
	emitter := &fakeEmitter{}
	sweeper := NewSweeper(q, retrier, emitter, testLogger())
	sweeper.Concurrency = 3

	require.NoError(t, sweeper.SweepOnce(ctx))
	assert.Len(t, retrier.calls, 3)
}
