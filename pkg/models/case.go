package models

import "time"

// CaseStatus is the closed set of case lifecycle states (spec §3).
type CaseStatus string

const (
	CaseStatusProcessing    CaseStatus = "processing"
	CaseStatusAwaitingInput CaseStatus = "awaiting-input"
	CaseStatusReady         CaseStatus = "ready"
	CaseStatusDraftCreated  CaseStatus = "draft-created"
	CaseStatusCancelled     CaseStatus = "cancelled"
	CaseStatusFailed        CaseStatus = "failed"
)

// SourceRef records where the source file came from.
type SourceRef struct {
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
	Uploader string `json:"uploader"`
	ChatRef  string `json:"chatRef"`
	BlobURL  string `json:"blobUrl"`
}

// Case is the unit of work: a single user-submitted order tracked
// end-to-end. It holds only caseId/workflowId indirection toward the
// workflow, never an embedded workflow object (spec §9 "cyclic
// references" note).
type Case struct {
	CaseID     string          `json:"caseId"`
	Tenant     string          `json:"tenant"`
	Source     SourceRef       `json:"source"`
	Status     CaseStatus      `json:"status"`
	Order      *CanonicalOrder `json:"order,omitempty"`
	Issues     []Issue         `json:"issues,omitempty"`
	WorkflowID string          `json:"workflowId"`
	Version    int             `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// AuditRecord is an append-only entry describing one mutation of a case.
type AuditRecord struct {
	CaseID    string    `json:"caseId"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Diff      string    `json:"diff"` // JSON-encoded patch or free-form description
}
