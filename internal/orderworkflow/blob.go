// Package orderworkflow is C7: the sales-order intake saga registered
// against internal/workflowengine's registry under the name
// "order-intake" (spec.md §4.7).
package orderworkflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/smilemakc/mbflow/internal/application/filestorage"
	"github.com/smilemakc/mbflow/pkg/models"
)

// blobStorageID namespaces every case file under one filestorage.Provider
// instance; the provider itself may be local disk or (per BLOB_CONNECTION_STRING,
// spec.md §6) a remote blob store in a deployment that swaps the provider.
const blobStorageID = "order-intake"

// Blobs stores and retrieves case source files through the teacher's
// pluggable filestorage.Provider, keyed deterministically by caseId so
// re-running the Store-file activity for the same case is an idempotent
// overwrite rather than a new blob each attempt (spec.md §4.7 "activities
// must be deterministic or keyed by caseId/fingerprint").
type Blobs struct {
	provider filestorage.Provider
}

// NewBlobs wraps a filestorage.Provider for case-file storage.
func NewBlobs(provider filestorage.Provider) *Blobs {
	return &Blobs{provider: provider}
}

// pathForCase is the deterministic storage key for a case's current
// source file; re-uploads (the FileReuploaded signal) overwrite it.
func pathForCase(caseID string) string {
	return "incoming/" + caseID + ".xlsx"
}

// Store persists data as case's current source file and returns the
// storage path, which internal/casestore records on the case's SourceRef.
func (b *Blobs) Store(ctx context.Context, caseID string, data []byte) (string, error) {
	entry := &models.FileEntry{
		ID:          caseID,
		StorageID:   blobStorageID,
		Name:        caseID + ".xlsx",
		Path:        pathForCase(caseID),
		MimeType:    "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		AccessScope: models.ScopeResource,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	path, err := b.provider.Store(ctx, entry, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("store case file: %w", err)
	}
	return path, nil
}

// Fetch reads back a previously stored case file in full; source
// spreadsheets are parsed in one pass so streaming isn't needed here (the
// parser itself streams rows out of the decoded bytes).
func (b *Blobs) Fetch(ctx context.Context, path string) ([]byte, error) {
	rc, err := b.provider.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch case file: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}
	return data, nil
}
