package accounting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/smilemakc/mbflow/pkg/models"
)

// Retrier implements internal/retryqueue.Retrier against this client: it
// decodes a previously-queued draft request and re-invokes CreateDraft
// (which still applies the client's in-process retry policy to each
// call), marking the fingerprint created on
// success. The sweeper (internal/retryqueue.Sweeper) owns attempt
// counting and backoff; by the time an item reaches Retry, the fingerprint
// is already "failed" from the original attempt, so success here is a
// fresh write rather than a duplicate-guard path.
type Retrier struct {
	client       *Client
	fingerprints FingerprintStore
}

// NewRetrier builds a Retrier over client's CreateDraft.
func NewRetrier(client *Client, fingerprints FingerprintStore) *Retrier {
	return &Retrier{client: client, fingerprints: fingerprints}
}

// Retry implements retryqueue.Retrier.
func (r *Retrier) Retry(ctx context.Context, item models.RetryItem) error {
	var req DraftRequest
	if err := json.Unmarshal([]byte(item.Payload), &req); err != nil {
		return fmt.Errorf("decode queued draft request: %w", err)
	}

	resp, err := r.client.CreateDraft(ctx, req)
	if err != nil {
		return err
	}
	if markErr := r.fingerprints.MarkCreated(ctx, req.Fingerprint, resp.OrderID, resp.OrderNo); markErr != nil {
		return fmt.Errorf("mark fingerprint created after retry: %w", markErr)
	}
	return nil
}
