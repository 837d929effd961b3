package casestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/smilemakc/mbflow/internal/infrastructure/storage/models"
	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/uptrace/bun"
)

// FingerprintStore implements internal/accounting.FingerprintStore: the
// idempotency seam around draft creation (spec §4.3, §8). It shares the
// case store's database handle rather than Store itself, since draft
// creation only needs the fingerprint table, not the case document.
type FingerprintStore struct {
	db *bun.DB
}

// NewFingerprintStore builds a FingerprintStore.
func NewFingerprintStore(db *bun.DB) *FingerprintStore {
	return &FingerprintStore{db: db}
}

// Reserve inserts an in-flight fingerprint row. hash carries a unique
// index (order_fingerprints.hash is the primary key), so when two
// concurrent callers race to create the same order, exactly one insert
// wins and a loser from a different case reads back the winner's row with
// reserved=false. A caller whose caseID matches an existing in-flight row
// (a replay of the same case) gets that row back with reserved=true.
func (f *FingerprintStore) Reserve(ctx context.Context, hash, caseID string) (domain.OrderFingerprint, bool, error) {
	row := models.FingerprintToStorage(domain.OrderFingerprint{
		Hash:   hash,
		CaseID: caseID,
		Status: domain.FingerprintInFlight,
	})
	_, err := f.db.NewInsert().Model(row).On("CONFLICT (hash) DO NOTHING").Exec(ctx)
	if err != nil {
		return domain.OrderFingerprint{}, false, fmt.Errorf("reserve fingerprint: %w", err)
	}

	existing := new(models.FingerprintModel)
	err = f.db.NewSelect().Model(existing).Where("hash = ?", hash).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.OrderFingerprint{}, false, fmt.Errorf("read back fingerprint after reserve: %w", domain.ErrFingerprintConflict)
		}
		return domain.OrderFingerprint{}, false, fmt.Errorf("read back fingerprint: %w", err)
	}

	fp := models.FingerprintFromStorage(existing)
	reserved := fp.CaseID == caseID && fp.Status == domain.FingerprintInFlight
	return fp, reserved, nil
}

// MarkCreated terminates a reservation successfully, recording the order
// that was created against it so retried requests with the same
// fingerprint become no-ops (spec §8 idempotency property).
func (f *FingerprintStore) MarkCreated(ctx context.Context, hash, orderID, orderNo string) error {
	res, err := f.db.NewUpdate().
		Model((*models.FingerprintModel)(nil)).
		Set("status = ?", string(domain.FingerprintCreated)).
		Set("order_id = ?", orderID).
		Set("order_number = ?", orderNo).
		Where("hash = ?", hash).
		Exec(ctx)
	return checkFingerprintRows(res, err)
}

// MarkFailed terminates a reservation unsuccessfully. The row keeps its
// hash: a later Reserve of the same hash reads it back with reserved=false
// and status failed, and the draft path then retries under that same
// fingerprint.
func (f *FingerprintStore) MarkFailed(ctx context.Context, hash string) error {
	res, err := f.db.NewUpdate().
		Model((*models.FingerprintModel)(nil)).
		Set("status = ?", string(domain.FingerprintFailed)).
		Where("hash = ?", hash).
		Exec(ctx)
	return checkFingerprintRows(res, err)
}

func checkFingerprintRows(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("update fingerprint: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrFingerprintConflict
	}
	return nil
}
