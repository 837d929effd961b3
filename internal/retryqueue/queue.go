// Package retryqueue implements C4's persistent backoff queue for failed
// outbound accounting-system calls (spec.md §4.4). Items are partitioned
// by caseId; a background sweeper (sweeper.go) drains ready items,
// serially per case, in parallel across cases.
package retryqueue

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/smilemakc/mbflow/internal/infrastructure/storage/models"
	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/uptrace/bun"
)

// BackoffPolicy is the retry queue's documented reschedule schedule
// (spec §4.4): min(initial * multiplier^attempt, maxDelay), abandon at
// attempt >= max.
type BackoffPolicy struct {
	Initial    time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	MaxRetries int
}

// DefaultBackoffPolicy matches spec §4.4's stated defaults.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		Initial:    60 * time.Second,
		Multiplier: 2,
		MaxDelay:   time.Hour,
		MaxRetries: 8,
	}
}

// Delay returns the backoff delay after attempt failed attempts,
// Initial*Multiplier^attempt capped at MaxDelay; attempt <= 0 gives Initial.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.Initial
	}
	d := float64(p.Initial) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Queue is the retry queue's storage-backed implementation.
type Queue struct {
	db     *bun.DB
	policy BackoffPolicy
}

// New builds a Queue with the default backoff policy.
func New(db *bun.DB) *Queue {
	return &Queue{db: db, policy: DefaultBackoffPolicy()}
}

// WithPolicy overrides the default backoff policy (used by tests to avoid
// minute/hour-scale sleeps).
func (q *Queue) WithPolicy(p BackoffPolicy) *Queue {
	q.policy = p
	return q
}

// Enqueue inserts a pending retry item, implementing
// internal/accounting.RetryEnqueuer so the accounting client's draft
// state machine can hand off an exhausted attempt without depending on
// this package's storage type directly.
func (q *Queue) Enqueue(ctx context.Context, caseID, payload, fingerprint string, lastErr error) error {
	item := domain.RetryItem{
		ID:          uuid.New().String(),
		CaseID:      caseID,
		Payload:     payload,
		Fingerprint: fingerprint,
		MaxRetries:  q.policy.MaxRetries,
		NextRetryAt: time.Now().Add(q.policy.Delay(0)),
		Status:      domain.RetryStatusPending,
	}
	if lastErr != nil {
		item.ErrorHistory = []domain.RetryAttemptError{{AttemptedAt: time.Now(), Message: lastErr.Error()}}
	}
	row, err := models.RetryItemToStorage(item)
	if err != nil {
		return fmt.Errorf("encode retry item: %w", err)
	}
	_, err = q.db.NewInsert().Model(row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert retry item: %w", err)
	}
	return nil
}

// GetReady returns up to limit pending items whose nextRetryAt has
// elapsed, ordered ascending by nextRetryAt (spec §4.4).
func (q *Queue) GetReady(ctx context.Context, limit int) ([]domain.RetryItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*models.RetryItemModel
	err := q.db.NewSelect().
		Model(&rows).
		Where("status = ? AND next_retry_at <= ?", string(domain.RetryStatusPending), time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ready retry items: %w", err)
	}
	out := make([]domain.RetryItem, 0, len(rows))
	for _, row := range rows {
		item, err := models.RetryItemFromStorage(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// MarkInProgress increments attemptCount and flips status before a
// sweeper invokes the retried call.
func (q *Queue) MarkInProgress(ctx context.Context, id string) error {
	rid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid retry item id", domain.ErrRetryItemNotFound)
	}
	res, err := q.db.NewUpdate().
		Model((*models.RetryItemModel)(nil)).
		Set("status = ?", string(domain.RetryStatusInProgress)).
		Set("attempt_count = attempt_count + 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", rid).
		Exec(ctx)
	return checkRowsAffected(res, err)
}

// MarkSucceeded terminates a retry item successfully. The row stays in
// retry_items; no TTL column or expiry job removes succeeded items.
func (q *Queue) MarkSucceeded(ctx context.Context, id string) error {
	rid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid retry item id", domain.ErrRetryItemNotFound)
	}
	res, err := q.db.NewUpdate().
		Model((*models.RetryItemModel)(nil)).
		Set("status = ?", string(domain.RetryStatusSucceeded)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", rid).
		Exec(ctx)
	return checkRowsAffected(res, err)
}

// MarkFailed appends to the item's error history and either reschedules
// with backoff or abandons it once attemptCount reaches MaxRetries
// (spec §4.4, §8 "retry-queue monotonicity" property: nextRetryAt
// strictly increases after each failure until the cap).
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) error {
	rid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid retry item id", domain.ErrRetryItemNotFound)
	}

	row := new(models.RetryItemModel)
	if err := q.db.NewSelect().Model(row).Where("id = ?", rid).Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return domain.ErrRetryItemNotFound
		}
		return fmt.Errorf("read retry item: %w", err)
	}
	item, err := models.RetryItemFromStorage(row)
	if err != nil {
		return err
	}

	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}
	item.ErrorHistory = append(item.ErrorHistory, domain.RetryAttemptError{AttemptedAt: time.Now(), Message: message})

	if item.AttemptCount >= item.MaxRetries {
		item.Status = domain.RetryStatusAbandoned
	} else {
		item.Status = domain.RetryStatusPending
		item.NextRetryAt = time.Now().Add(q.policy.Delay(item.AttemptCount))
	}
	item.UpdatedAt = time.Now()

	updated, err := models.RetryItemToStorage(item)
	if err != nil {
		return err
	}
	_, err = q.db.NewUpdate().
		Model(updated).
		Column("status", "next_retry_at", "error_history", "updated_at").
		Where("id = ?", rid).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update retry item after failure: %w", err)
	}
	return nil
}

func checkRowsAffected(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("update retry item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRetryItemNotFound
	}
	return nil
}
