package models

import (
	"github.com/google/uuid"
	domain "github.com/smilemakc/mbflow/pkg/models"
)

// CaseToStorage converts a domain Case into its row representation. The
// canonical order and issue list are stored as JSONB so the case table
// doesn't need a migration every time the order schema grows a field.
func CaseToStorage(c *domain.Case, id uuid.UUID) (*CaseModel, error) {
	orderJSON, err := NewRawJSON(c.Order)
	if err != nil {
		return nil, err
	}
	issuesJSON, err := NewRawJSON(c.Issues)
	if err != nil {
		return nil, err
	}

	return &CaseModel{
		ID:         id,
		Tenant:     c.Tenant,
		Filename:   c.Source.Filename,
		SourceSHA:  c.Source.SHA256,
		Uploader:   c.Source.Uploader,
		ChatRef:    c.Source.ChatRef,
		BlobURL:    c.Source.BlobURL,
		Status:     string(c.Status),
		Order:      orderJSON,
		Issues:     issuesJSON,
		WorkflowID: c.WorkflowID,
		Version:    c.Version,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}, nil
}

// CaseFromStorage reconstructs a domain Case from its row representation.
func CaseFromStorage(row *CaseModel) (*domain.Case, error) {
	var order domain.CanonicalOrder
	if err := row.Order.MarshalInto(&order); err != nil {
		return nil, err
	}
	var issues []domain.Issue
	if err := row.Issues.MarshalInto(&issues); err != nil {
		return nil, err
	}

	return &domain.Case{
		CaseID: row.ID.String(),
		Tenant: row.Tenant,
		Source: domain.SourceRef{
			Filename: row.Filename,
			SHA256:   row.SourceSHA,
			Uploader: row.Uploader,
			ChatRef:  row.ChatRef,
			BlobURL:  row.BlobURL,
		},
		Status:     domain.CaseStatus(row.Status),
		Order:      order,
		Issues:     issues,
		WorkflowID: row.WorkflowID,
		Version:    row.Version,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}, nil
}

// AuditRecordToStorage converts a domain AuditRecord into its row.
func AuditRecordToStorage(a domain.AuditRecord, caseID uuid.UUID) (*AuditLogModel, error) {
	diffJSON, err := NewRawJSON(a.Diff)
	if err != nil {
		return nil, err
	}
	return &AuditLogModel{
		CaseID:    caseID,
		Actor:     a.Actor,
		Action:    a.Action,
		Diff:      diffJSON,
		Timestamp: a.Timestamp,
	}, nil
}

// FingerprintToStorage/FingerprintFromStorage convert OrderFingerprint rows.
func FingerprintToStorage(f domain.OrderFingerprint) *FingerprintModel {
	return &FingerprintModel{
		Hash:    f.Hash,
		CaseID:  f.CaseID,
		Status:  string(f.Status),
		OrderID: f.OrderID,
		OrderNo: f.OrderNo,
	}
}

func FingerprintFromStorage(row *FingerprintModel) domain.OrderFingerprint {
	return domain.OrderFingerprint{
		Hash:    row.Hash,
		CaseID:  row.CaseID,
		Status:  domain.FingerprintStatus(row.Status),
		OrderID: row.OrderID,
		OrderNo: row.OrderNo,
	}
}

// RetryItemToStorage/RetryItemFromStorage convert RetryItem rows.
func RetryItemToStorage(r domain.RetryItem) (*RetryItemModel, error) {
	history, err := NewRawJSON(r.ErrorHistory)
	if err != nil {
		return nil, err
	}
	id := uuid.Nil
	if r.ID != "" {
		if parsed, err := uuid.Parse(r.ID); err == nil {
			id = parsed
		}
	}
	return &RetryItemModel{
		ID:           id,
		CaseID:       r.CaseID,
		Payload:      r.Payload,
		Fingerprint:  r.Fingerprint,
		AttemptCount: r.AttemptCount,
		MaxRetries:   r.MaxRetries,
		NextRetryAt:  r.NextRetryAt,
		ErrorHistory: history,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

func RetryItemFromStorage(row *RetryItemModel) (domain.RetryItem, error) {
	var history []domain.RetryAttemptError
	if err := row.ErrorHistory.MarshalInto(&history); err != nil {
		return domain.RetryItem{}, err
	}
	return domain.RetryItem{
		ID:           row.ID.String(),
		CaseID:       row.CaseID,
		Payload:      row.Payload,
		Fingerprint:  row.Fingerprint,
		AttemptCount: row.AttemptCount,
		MaxRetries:   row.MaxRetries,
		NextRetryAt:  row.NextRetryAt,
		ErrorHistory: history,
		Status:       domain.RetryStatus(row.Status),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

// OutboxEventToStorage/OutboxEventFromStorage convert OutboxEvent rows.
func OutboxEventToStorage(e domain.OutboxEvent) *OutboxEventModel {
	id := uuid.Nil
	if e.ID != "" {
		if parsed, err := uuid.Parse(e.ID); err == nil {
			id = parsed
		}
	}
	return &OutboxEventModel{
		ID:            id,
		CaseID:        e.CaseID,
		EventType:     string(e.EventType),
		Payload:       e.Payload,
		Status:        string(e.Status),
		DeliveryTries: e.DeliveryTries,
		CreatedAt:     e.CreatedAt,
		ProcessedAt:   e.ProcessedAt,
	}
}

func OutboxEventFromStorage(row *OutboxEventModel) domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:            row.ID.String(),
		CaseID:        row.CaseID,
		EventType:     domain.OutboxEventType(row.EventType),
		Payload:       row.Payload,
		Status:        domain.OutboxStatus(row.Status),
		DeliveryTries: row.DeliveryTries,
		CreatedAt:     row.CreatedAt,
		ProcessedAt:   row.ProcessedAt,
	}
}

// CatalogEntryToStorage/CatalogEntryFromStorage convert CatalogEntry rows.
func CatalogEntryToStorage(e domain.CatalogEntry) *CatalogEntryModel {
	return &CatalogEntryModel{
		ID:             e.ID,
		Kind:           string(e.Kind),
		Name:           e.Name,
		NormalizedName: e.NormalizedName,
		SKU:            e.SKU,
		GTIN:           e.GTIN,
		Rate:           e.Rate,
		LastRefreshed:  e.LastRefreshed,
	}
}

func CatalogEntryFromStorage(row *CatalogEntryModel) domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:             row.ID,
		Kind:           domain.CatalogEntryKind(row.Kind),
		Name:           row.Name,
		NormalizedName: row.NormalizedName,
		SKU:            row.SKU,
		GTIN:           row.GTIN,
		Rate:           row.Rate,
		LastRefreshed:  row.LastRefreshed,
	}
}
