// Package casestore implements C5: the persistent, per-tenant store of
// intake cases. Writes are transactional per document with optimistic
// concurrency (a version column), following the teacher's
// internal/infrastructure/storage/workflow_repository.go pattern. Every
// mutation also appends an audit record to an append-only container
// (spec.md §4.5).
package casestore

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

// Store is C5's bun-backed repository.
type Store struct {
	db *bun.DB
}

// New builds a Store over an existing database connection.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new case row and its creation audit record in one
// transaction.
func (s *Store) Create(ctx context.Context, c *domain.Case, actor string) (*domain.Case, error) {
	id := uuid.New()
	if c.CaseID != "" {
		if parsed, err := uuid.Parse(c.CaseID); err == nil {
			id = parsed
		}
	}
	c.CaseID = id.String()
	if c.Status == "" {
		c.Status = domain.CaseStatusProcessing
	}

	row, err := models.CaseToStorage(c, id)
	if err != nil {
		return nil, fmt.Errorf("encode case: %w", err)
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		audit, err := models.AuditRecordToStorage(domain.AuditRecord{
			CaseID:    c.CaseID,
			Timestamp: time.Now(),
			Actor:     actor,
			Action:    "case.created",
			Diff:      "",
		}, id)
		if err != nil {
			return err
		}
		_, err = tx.NewInsert().Model(audit).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return models.CaseFromStorage(row)
}

// Read fetches a case by id, scoped to a tenant.
func (s *Store) Read(ctx context.Context, tenant, caseID string) (*domain.Case, error) {
	id, err := uuid.Parse(caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid case id", domain.ErrCaseNotFound)
	}
	row := new(models.CaseModel)
	err = s.db.NewSelect().Model(row).Where("id = ? AND tenant = ?", id, tenant).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("read case: %w", err)
	}
	return models.CaseFromStorage(row)
}

// ReadAny fetches a case by id without a tenant filter. CaseID is a
// globally unique UUID, so this is safe for internal callers that only
// have the id (e.g. the workflow engine's escalation sweep, which never
// carries tenant through WorkflowID == CaseID).
func (s *Store) ReadAny(ctx context.Context, caseID string) (*domain.Case, error) {
	id, err := uuid.Parse(caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid case id", domain.ErrCaseNotFound)
	}
	row := new(models.CaseModel)
	err = s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("read case: %w", err)
	}
	return models.CaseFromStorage(row)
}

// ChatRefForCase returns the chat reference a case's notifications
// should target, the lookup internal/notifier's escalation adapter uses.
func (s *Store) ChatRefForCase(ctx context.Context, caseID string) (string, error) {
	c, err := s.ReadAny(ctx, caseID)
	if err != nil {
		return "", err
	}
	return c.Source.ChatRef, nil
}

// Patch is a mutation the caller wants applied to a case inside the
// Update transaction; it receives the loaded case and must mutate it in
// place (or return an error to abort).
type Patch func(c *domain.Case) error

// Update loads a case, applies mutate under optimistic concurrency
// (WHERE version = ?), bumps the version, and appends an audit record
// describing the action. Returns domain.ErrPatchConflict if another
// writer updated the case first.
func (s *Store) Update(ctx context.Context, tenant, caseID, actor, action, diff string, mutate Patch) (*domain.Case, error) {
	id, err := uuid.Parse(caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid case id", domain.ErrCaseNotFound)
	}

	var result *domain.Case
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(models.CaseModel)
		if err := tx.NewSelect().Model(row).Where("id = ? AND tenant = ?", id, tenant).Scan(ctx); err != nil {
			if err == sql.ErrNoRows {
				return domain.ErrCaseNotFound
			}
			return fmt.Errorf("read case for update: %w", err)
		}
		c, err := models.CaseFromStorage(row)
		if err != nil {
			return err
		}

		if mutate != nil {
			if err := mutate(c); err != nil {
				return err
			}
		}

		expectedVersion := row.Version
		c.Version = expectedVersion + 1
		c.UpdatedAt = time.Now()

		updated, err := models.CaseToStorage(c, id)
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model(updated).
			Column("status", "order_data", "issues", "workflow_id", "version", "updated_at").
			Where("id = ? AND tenant = ? AND version = ?", id, tenant, expectedVersion).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update case: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrPatchConflict
		}

		audit, err := models.AuditRecordToStorage(domain.AuditRecord{
			CaseID:    caseID,
			Timestamp: c.UpdatedAt,
			Actor:     actor,
			Action:    action,
			Diff:      diff,
		}, id)
		if err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(audit).Exec(ctx); err != nil {
			return err
		}

		result = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListFilters narrows ListByUser results.
type ListFilters struct {
	Status domain.CaseStatus
	Limit  int
	Offset int
}

// ListByUser returns cases uploaded by user within tenant, newest first.
func (s *Store) ListByUser(ctx context.Context, tenant, user string, filters ListFilters) ([]*domain.Case, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.NewSelect().
		Model((*models.CaseModel)(nil)).
		Where("tenant = ? AND uploader = ?", tenant, user).
		Order("created_at DESC").
		Limit(limit).
		Offset(filters.Offset)
	if filters.Status != "" {
		q = q.Where("status = ?", string(filters.Status))
	}

	var rows []*models.CaseModel
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}

	out := make([]*domain.Case, 0, len(rows))
	for _, row := range rows {
		c, err := models.CaseFromStorage(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// AuditTrail returns every audit record for a case, oldest first.
func (s *Store) AuditTrail(ctx context.Context, caseID string) ([]domain.AuditRecord, error) {
	id, err := uuid.Parse(caseID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid case id", domain.ErrCaseNotFound)
	}
	var rows []*models.AuditLogModel
	err = s.db.NewSelect().Model(&rows).Where("case_id = ?", id).Order("timestamp ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	out := make([]domain.AuditRecord, 0, len(rows))
	for _, row := range rows {
		var diff string
		if len(row.Diff) > 0 {
			diff = string(row.Diff)
		}
		out = append(out, domain.AuditRecord{
			CaseID:    caseID,
			Timestamp: row.Timestamp,
			Actor:     row.Actor,
			Action:    row.Action,
			Diff:      diff,
		})
	}
	return out, nil
}
