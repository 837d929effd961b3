package outbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/smilemakc/mbflow/testutil"
)

func setupStoreTest(t *testing.T) (*Store, func()) {
	testDB := testutil.SetupTestDB(t)
	return New(testDB.DB), func() { testDB.Cleanup(t) }
}

func TestStore_CreateEventAndGetPending(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.CreateEvent(ctx, domain.OutboxEventCreated, "case-1", `{"status":"ready"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	pending, err := s.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "case-1", pending[0].CaseID)
	assert.Equal(t, domain.OutboxStatusPending, pending[0].Status)
}

func TestStore_MarkProcessed_RemovesFromPending(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.CreateEvent(ctx, domain.OutboxEventCreated, "case-2", `{}`)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(ctx, id))

	pending, err := s.GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 0)
}

func TestStore_MarkFailed_IncrementsDeliveryTriesAndStaysPending(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.CreateEvent(ctx, domain.OutboxEventRetryExhausted, "case-3", `{}`)
	require.NoError(t, err)
	require.NoError(t, s.MarkFailed(ctx, id))

	pending, err := s.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].DeliveryTries)
}

func TestStore_MarkProcessed_UnknownIDReturnsNotFound(t *testing.T) {
	s, cleanup := setupStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	err := s.MarkProcessed(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, domain.ErrOutboxEventNotFound)
}
