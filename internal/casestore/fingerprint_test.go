package casestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/smilemakc/mbflow/testutil"
)

func setupFingerprintStoreTest(t *testing.T) (*FingerprintStore, func()) {
	testDB := testutil.SetupTestDB(t)
	return NewFingerprintStore(testDB.DB), func() { testDB.Cleanup(t) }
}

func TestFingerprintStore_Reserve_FirstCallerWins(t *testing.T) {
	f, cleanup := setupFingerprintStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	fp, reserved, err := f.Reserve(ctx, "hash-1", "case-1")
	require.NoError(t, err)
	assert.True(t, reserved)
	assert.Equal(t, domain.FingerprintInFlight, fp.Status)
}

func TestFingerprintStore_Reserve_SecondCallerLoses(t *testing.T) {
	f, cleanup := setupFingerprintStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	_, reserved1, err := f.Reserve(ctx, "hash-2", "case-1")
	require.NoError(t, err)
	require.True(t, reserved1)

	// spec §8 idempotency: a concurrent/duplicate request for the same
	// fingerprint must not reserve a second time; it reads back the
	// winner's row instead.
	existing, reserved2, err := f.Reserve(ctx, "hash-2", "case-2")
	require.NoError(t, err)
	assert.False(t, reserved2)
	assert.Equal(t, "case-1", existing.CaseID)
}

func TestFingerprintStore_MarkCreated_ThenReserveReturnsCreatedRow(t *testing.T) {
	f, cleanup := setupFingerprintStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	_, _, err := f.Reserve(ctx, "hash-3", "case-1")
	require.NoError(t, err)
	require.NoError(t, f.MarkCreated(ctx, "hash-3", "order-1", "SO-1001"))

	fp, reserved, err := f.Reserve(ctx, "hash-3", "case-9")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, domain.FingerprintCreated, fp.Status)
	assert.Equal(t, "order-1", fp.OrderID)
	assert.Equal(t, "SO-1001", fp.OrderNo)
}

func TestFingerprintStore_MarkFailed(t *testing.T) {
	f, cleanup := setupFingerprintStoreTest(t)
	defer cleanup()
	ctx := context.Background()

	_, _, err := f.Reserve(ctx, "hash-4", "case-1")
	require.NoError(t, err)
	require.NoError(t, f.MarkFailed(ctx, "hash-4"))

	fp, reserved, err := f.Reserve(ctx, "hash-4", "case-1")
	require.NoError(t, err)
	assert.False(t, reserved)
	assert.Equal(t, domain.FingerprintFailed, fp.Status)
}
