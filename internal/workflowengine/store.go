package workflowengine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/smilemakc/mbflow/internal/infrastructure/storage/models"
	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/uptrace/bun"
)

type store struct {
	db *bun.DB
}

func newStore(db *bun.DB) *store {
	return &store{db: db}
}

func (s *store) create(ctx context.Context, run *Run) error {
	row, err := runToRow(run)
	if err != nil {
		return fmt.Errorf("encode workflow run: %w", err)
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert workflow run: %w", err)
	}
	return nil
}

func (s *store) load(ctx context.Context, workflowID string) (*Run, error) {
	row := new(models.WorkflowRunModel)
	err := s.db.NewSelect().Model(row).Where("workflow_id = ?", workflowID).Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrWorkflowThreadMissing
		}
		return nil, fmt.Errorf("read workflow run: %w", err)
	}
	return rowToRun(row)
}

// mutate loads the run for update, applies fn, and persists the result
// under optimistic concurrency (WHERE version = ?), mirroring
// internal/casestore.Store.Update's pattern.
func (s *store) mutate(ctx context.Context, workflowID string, fn func(run *Run) error) (*Run, error) {
	var result *Run
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(models.WorkflowRunModel)
		if err := tx.NewSelect().Model(row).Where("workflow_id = ?", workflowID).Scan(ctx); err != nil {
			if err == sql.ErrNoRows {
				return domain.ErrWorkflowThreadMissing
			}
			return fmt.Errorf("read workflow run for update: %w", err)
		}
		run, err := rowToRun(row)
		if err != nil {
			return err
		}

		if fn != nil {
			if err := fn(run); err != nil {
				return err
			}
		}

		expectedVersion := row.Version
		run.Version = expectedVersion + 1
		updated, err := runToRow(run)
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model(updated).
			Column("status", "current_step", "state", "pending_signals", "await_step", "await_signals",
				"await_started_at", "escalation_tier", "close_reason", "close_time", "version", "updated_at").
			Where("workflow_id = ? AND version = ?", workflowID, expectedVersion).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update workflow run: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrPatchConflict
		}

		result = run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// listAwaiting returns every RUNNING run currently suspended at an
// awaiting-* step, for the escalation sweep (spec.md §4.7 "Timers and
// escalation").
func (s *store) listAwaiting(ctx context.Context) ([]*Run, error) {
	var rows []*models.WorkflowRunModel
	err := s.db.NewSelect().
		Model(&rows).
		Where("status = ? AND await_step != ''", string(domain.RuntimeStatusRunning)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list awaiting workflow runs: %w", err)
	}
	out := make([]*Run, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(row)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

func runToRow(run *Run) (*models.WorkflowRunModel, error) {
	input, err := models.NewRawJSON(run.Input)
	if err != nil {
		return nil, err
	}
	state, err := models.NewRawJSON(run.State)
	if err != nil {
		return nil, err
	}
	pending, err := models.NewRawJSON(run.PendingSignals)
	if err != nil {
		return nil, err
	}
	awaitSignals, err := models.NewRawJSON(run.AwaitSignals)
	if err != nil {
		return nil, err
	}
	return &models.WorkflowRunModel{
		WorkflowID:     run.WorkflowID,
		RunID:          run.RunID,
		CaseID:         run.CaseID,
		WorkflowType:   run.WorkflowType,
		Status:         string(run.Status),
		CurrentStep:    run.CurrentStep,
		Input:          input,
		State:          state,
		PendingSignals: pending,
		AwaitStep:      run.AwaitStep,
		AwaitSignals:   awaitSignals,
		AwaitStartedAt: run.AwaitStartedAt,
		EscalationTier: run.EscalationTier,
		CloseReason:    run.CloseReason,
		StartTime:      run.StartTime,
		CloseTime:      run.CloseTime,
		Version:        run.Version,
	}, nil
}

func rowToRun(row *models.WorkflowRunModel) (*Run, error) {
	var input map[string]interface{}
	if len(row.Input) > 0 {
		if err := row.Input.MarshalInto(&input); err != nil {
			return nil, err
		}
	}
	var state map[string]interface{}
	if len(row.State) > 0 {
		if err := row.State.MarshalInto(&state); err != nil {
			return nil, err
		}
	}
	pending := map[string][]json.RawMessage{}
	if len(row.PendingSignals) > 0 {
		if err := row.PendingSignals.MarshalInto(&pending); err != nil {
			return nil, err
		}
	}
	if input == nil {
		input = map[string]interface{}{}
	}
	if state == nil {
		state = map[string]interface{}{}
	}
	var awaitSignals []string
	if len(row.AwaitSignals) > 0 {
		if err := row.AwaitSignals.MarshalInto(&awaitSignals); err != nil {
			return nil, err
		}
	}
	return &Run{
		WorkflowID:     row.WorkflowID,
		RunID:          row.RunID,
		CaseID:         row.CaseID,
		WorkflowType:   row.WorkflowType,
		Status:         domain.WorkflowRuntimeStatus(row.Status),
		CurrentStep:    row.CurrentStep,
		Input:          input,
		State:          state,
		PendingSignals: pending,
		AwaitStep:      row.AwaitStep,
		AwaitSignals:   awaitSignals,
		AwaitStartedAt: row.AwaitStartedAt,
		EscalationTier: row.EscalationTier,
		CloseReason:    row.CloseReason,
		StartTime:      row.StartTime,
		CloseTime:      row.CloseTime,
		Version:        row.Version,
	}, nil
}
