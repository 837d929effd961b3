package retryqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/smilemakc/mbflow/testutil"
)

func setupQueueTest(t *testing.T) (*Queue, func()) {
	testDB := testutil.SetupTestDB(t)
	q := New(testDB.DB).WithPolicy(BackoffPolicy{
		Initial:    time.Millisecond,
		Multiplier: 2,
		MaxDelay:   10 * time.Millisecond,
		MaxRetries: 3,
	})
	return q, func() { testDB.Cleanup(t) }
}

func TestQueue_EnqueueAndGetReady(t *testing.T) {
	q, cleanup := setupQueueTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "case-1", `{"customerId":"c1"}`, "fp-1", nil))

	time.Sleep(5 * time.Millisecond)
	items, err := q.GetReady(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "case-1", items[0].CaseID)
	assert.Equal(t, domain.RetryStatusPending, items[0].Status)
}

func TestQueue_MarkFailed_RescheduleThenAbandon(t *testing.T) {
	q, cleanup := setupQueueTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "case-2", `{}`, "fp-2", nil))
	time.Sleep(2 * time.Millisecond)
	items, err := q.GetReady(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	id := items[0].ID

	var lastNextRetry time.Time
	for i := 0; i < 3; i++ {
		require.NoError(t, q.MarkInProgress(ctx, id))
		require.NoError(t, q.MarkFailed(ctx, id, errors.New("boom")))

		var rows []domain.RetryItem
		rows, err = q.GetReady(ctx, 10)
		require.NoError(t, err)
		if i < 2 {
			// each reschedule moves nextRetryAt into the future, so the
			// item is not ready right after MarkFailed.
			require.Len(t, rows, 0, "item should not be ready immediately after reschedule")
			time.Sleep(15 * time.Millisecond)
			continue
		}
		_ = lastNextRetry
	}

	// After MaxRetries attempts the item is abandoned, never returned again.
	time.Sleep(15 * time.Millisecond)
	items, err = q.GetReady(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 0, "abandoned item should not be returned by GetReady")
}

func TestQueue_MarkSucceeded(t *testing.T) {
	q, cleanup := setupQueueTest(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "case-3", `{}`, "fp-3", nil))
	time.Sleep(2 * time.Millisecond)
	items, err := q.GetReady(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, q.MarkInProgress(ctx, items[0].ID))
	require.NoError(t, q.MarkSucceeded(ctx, items[0].ID))

	items, err = q.GetReady(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, items, 0)
}

func TestBackoffPolicy_Delay(t *testing.T) {
	p := DefaultBackoffPolicy()
	assert.Equal(t, p.Initial, p.Delay(0))
	assert.True(t, p.Delay(3) > p.Delay(1))
	assert.Equal(t, p.MaxDelay, p.Delay(20))
}
