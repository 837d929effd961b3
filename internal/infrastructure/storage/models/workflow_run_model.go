package models

import (
	"time"

	"github.com/uptrace/bun"
)

// WorkflowRunModel persists one order-intake saga run for the in-process
// reference workflow engine (spec.md §4.6/§4.7). WorkflowID equals CaseID
// for the 1:1 mapping the spec requires; Version drives optimistic
// concurrency the same way CaseModel does.
type WorkflowRunModel struct {
	bun.BaseModel `bun:"table:workflow_runs,alias:wr"`

	WorkflowID      string     `bun:"workflow_id,pk" json:"workflowId"`
	RunID           string     `bun:"run_id,notnull" json:"runId"`
	CaseID          string     `bun:"case_id,notnull" json:"caseId"`
	WorkflowType    string     `bun:"workflow_type,notnull" json:"workflowType"`
	Status          string     `bun:"status,notnull,default:'RUNNING'" json:"status"`
	CurrentStep     string     `bun:"current_step,notnull" json:"currentStep"`
	Input           RawJSON    `bun:"input,type:jsonb" json:"input,omitempty"`
	State           RawJSON    `bun:"state,type:jsonb" json:"state,omitempty"`
	PendingSignals  RawJSON    `bun:"pending_signals,type:jsonb" json:"pendingSignals,omitempty"`
	AwaitStep       string     `bun:"await_step" json:"awaitStep,omitempty"`
	AwaitSignals    RawJSON    `bun:"await_signals,type:jsonb" json:"awaitSignals,omitempty"`
	AwaitStartedAt  *time.Time `bun:"await_started_at" json:"awaitStartedAt,omitempty"`
	EscalationTier  int        `bun:"escalation_tier,notnull,default:0" json:"escalationTier"`
	CloseReason     string     `bun:"close_reason" json:"closeReason,omitempty"`
	StartTime       time.Time  `bun:"start_time,notnull,default:current_timestamp" json:"startTime"`
	CloseTime       *time.Time `bun:"close_time" json:"closeTime,omitempty"`
	Version         int        `bun:"version,notnull,default:1" json:"version"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (WorkflowRunModel) TableName() string { return "workflow_runs" }

func (w *WorkflowRunModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	w.CreatedAt = now
	w.UpdatedAt = now
	if w.StartTime.IsZero() {
		w.StartTime = now
	}
	if w.Version == 0 {
		w.Version = 1
	}
	return nil
}

func (w *WorkflowRunModel) BeforeUpdate(ctx interface{}) error {
	w.UpdatedAt = time.Now()
	return nil
}
