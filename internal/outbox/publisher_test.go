package outbox

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

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []Delivery
	failFor   map[string]bool
}

func (f *fakeNotifier) Deliver(ctx context.Context, d Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[d.CaseID] {
		return errors.New("bot collaborator unreachable")
	}
	f.delivered = append(f.delivered, d)
	return nil
}

func testPublisherLogger() *logger.Logger {
	return logger.New(config.LoggingConfig{Level: "error", Format: "text"})
}

func TestPublisher_PublishOnce_DeliversAndMarksProcessed(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateEvent(ctx, domain.OutboxEventCreated, "case-1", `{"msg":"hi"}`)
	require.NoError(t, err)

	notifier := &fakeNotifier{failFor: map[string]bool{}}
	pub := NewPublisher(s, notifier, testPublisherLogger())
	require.NoError(t, pub.PublishOnce(ctx))

	require.Len(t, notifier.delivered, 1)
	assert.Equal(t, "case-1", notifier.delivered[0].CaseID)

	pending, err := s.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 0)
}

func TestPublisher_PublishOnce_FailedDeliveryStaysPendingForRetry(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.CreateEvent(ctx, domain.OutboxEventCreated, "case-2", `{}`)
	require.NoError(t, err)

	notifier := &fakeNotifier{failFor: map[string]bool{"case-2": true}}
	pub := NewPublisher(s, notifier, testPublisherLogger())
	require.NoError(t, pub.PublishOnce(ctx))

	pending, err := s.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].DeliveryTries)
}

func TestPublisher_Run_StopsOnContextCancel(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()

	notifier := &fakeNotifier{failFor: map[string]bool{}}
	pub := NewPublisher(s, notifier, testPublisherLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
