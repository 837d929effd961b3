package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CaseModel is the persisted row for an intake case (spec.md §3 Case).
// The canonical order and issues are stored as JSONB blobs (the workflow
// linkage is a plain workflow_id column) and mapped to/from pkg/models.Case
// by CaseToStorage/CaseFromStorage in case_mappers.go — the domain type
// never embeds bun.BaseModel.
type CaseModel struct {
	bun.BaseModel `bun:"table:cases,alias:c"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	Tenant     string    `bun:"tenant,notnull" json:"tenant"`
	Filename   string    `bun:"filename,notnull" json:"filename"`
	SourceSHA  string    `bun:"source_sha256,notnull" json:"sourceSha256"`
	Uploader   string    `bun:"uploader" json:"uploader,omitempty"`
	ChatRef    string    `bun:"chat_ref" json:"chatRef,omitempty"`
	BlobURL    string    `bun:"blob_url" json:"blobUrl,omitempty"`
	Status     string    `bun:"status,notnull,default:'processing'" json:"status"`
	Order      RawJSON   `bun:"order_data,type:jsonb" json:"order"`
	Issues     RawJSON   `bun:"issues,type:jsonb" json:"issues"`
	WorkflowID string    `bun:"workflow_id" json:"workflowId,omitempty"`
	Version    int       `bun:"version,notnull,default:1" json:"version"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (CaseModel) TableName() string { return "cases" }

func (c *CaseModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}

func (c *CaseModel) BeforeUpdate(ctx interface{}) error {
	c.UpdatedAt = time.Now()
	return nil
}

// AuditLogModel is an append-only audit trail row for a case mutation
// (spec.md §3 AuditRecord). Never updated after insert.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:case_audit_log,alias:cal"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	CaseID    uuid.UUID `bun:"case_id,notnull,type:uuid" json:"caseId"`
	Actor     string    `bun:"actor,notnull" json:"actor"`
	Action    string    `bun:"action,notnull" json:"action"`
	Diff      RawJSON   `bun:"diff,type:jsonb" json:"diff,omitempty"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp" json:"timestamp"`
}

func (AuditLogModel) TableName() string { return "case_audit_log" }

func (a *AuditLogModel) BeforeInsert(ctx interface{}) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return nil
}
