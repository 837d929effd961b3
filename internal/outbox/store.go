// Package outbox implements the append-only outbox table that guarantees
// at-least-once delivery of case-lifecycle events to the bot collaborator
// surface (spec.md §3, §4.4). CreateEvent is the write side, used by the
// accounting client's draft path and the retry sweeper; Publisher (publisher.go) is the read side,
// a background process that drains pending events oldest-first.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smilemakc/mbflow/internal/infrastructure/storage/models"
	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/uptrace/bun"
)

// Store is the outbox's storage-backed implementation.
type Store struct {
	db *bun.DB
}

// New builds a Store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// CreateEvent appends a pending event. It never fails silently: the insert
// error is returned. It writes through the store's own connection, not
// inside a caller's transaction.
func (s *Store) CreateEvent(ctx context.Context, eventType domain.OutboxEventType, caseID, payload string) (string, error) {
	event := domain.OutboxEvent{
		ID:        uuid.New().String(),
		CaseID:    caseID,
		EventType: eventType,
		Payload:   payload,
		Status:    domain.OutboxStatusPending,
		CreatedAt: time.Now(),
	}
	row := models.OutboxEventToStorage(event)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", fmt.Errorf("insert outbox event: %w", err)
	}
	return event.ID, nil
}

// GetPending returns up to limit pending events ordered oldest-first
// (spec §4.4: "delivered oldest-first").
func (s *Store) GetPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []*models.OutboxEventModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("status = ?", string(domain.OutboxStatusPending)).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending outbox events: %w", err)
	}
	out := make([]domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.OutboxEventFromStorage(row))
	}
	return out, nil
}

// MarkProcessed terminates an event successfully.
func (s *Store) MarkProcessed(ctx context.Context, id string) error {
	eid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid outbox event id", domain.ErrOutboxEventNotFound)
	}
	now := time.Now()
	res, err := s.db.NewUpdate().
		Model((*models.OutboxEventModel)(nil)).
		Set("status = ?", string(domain.OutboxStatusProcessed)).
		Set("processed_at = ?", now).
		Where("id = ?", eid).
		Exec(ctx)
	return checkRowsAffected(res, err)
}

// MarkFailed increments the delivery-tries counter and leaves the event
// pending so the next publisher sweep retries it; delivery tries are not
// capped, so the event stays pending until a delivery succeeds.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	eid, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: invalid outbox event id", domain.ErrOutboxEventNotFound)
	}
	res, err := s.db.NewUpdate().
		Model((*models.OutboxEventModel)(nil)).
		Set("delivery_tries = delivery_tries + 1").
		Where("id = ?", eid).
		Exec(ctx)
	return checkRowsAffected(res, err)
}

func checkRowsAffected(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("update outbox event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrOutboxEventNotFound
	}
	return nil
}
