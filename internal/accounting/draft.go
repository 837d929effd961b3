package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/smilemakc/mbflow/pkg/models"
)

// FingerprintStore is the persistence seam draft creation needs: a
// conditional insert that reserves a fingerprint for in-flight work, and a
// terminal update once the upstream call resolves. The real implementation
// lives in the case store (internal/casestore), backed by a unique index
// on the fingerprint column so concurrent callers cannot both reserve the
// same hash (spec §4.3, §8 idempotency property).
type FingerprintStore interface {
	// Reserve inserts an in-flight fingerprint row, or returns the existing
	// row (with reserved=false) if one is already present.
	Reserve(ctx context.Context, hash, caseID string) (existing models.OrderFingerprint, reserved bool, err error)
	MarkCreated(ctx context.Context, hash, orderID, orderNo string) error
	MarkFailed(ctx context.Context, hash string) error
}

// RetryEnqueuer is the seam into the retry queue (internal/retryqueue) for
// draft attempts that exhaust the accounting client's immediate retries.
type RetryEnqueuer interface {
	Enqueue(ctx context.Context, caseID, payload, fingerprint string, lastErr error) error
}

// OutboxEmitter is the seam into the durable event outbox
// (internal/outbox) for the "created"/"failed" events spec §4.3 step 5/8
// requires alongside a draft-creation attempt's terminal state.
type OutboxEmitter interface {
	CreateEvent(ctx context.Context, eventType models.OutboxEventType, caseID, payload string) (string, error)
}

// DraftOutcome describes how CreateDraftIdempotent resolved.
type DraftOutcome string

const (
	DraftOutcomeCreated   DraftOutcome = "created"
	DraftOutcomeDuplicate DraftOutcome = "duplicate"
	DraftOutcomeQueued    DraftOutcome = "queued-for-retry"
)

// DraftResult is the result of an idempotent draft-creation attempt.
type DraftResult struct {
	Outcome DraftOutcome
	OrderID string
	OrderNo string
}

// CreateDraftIdempotent implements spec §4.3's draft-creation state
// machine: new -> fingerprint-checked -> {duplicate-return |
// in-flight-reserved} -> api-invoked -> {success->created event |
// rate-limited->retry | transient-error->retry |
// retries-exhausted->queued for the retry sweeper + failed event |
// non-transient-error->failed event, error returned (not queued)}.
//
// fingerprints and retryQueue are injected so this package stays free of a
// storage dependency; callers wire in the case store and retry queue.
func (c *Client) CreateDraftIdempotent(ctx context.Context, caseID string, req DraftRequest, fingerprints FingerprintStore, retryQueue RetryEnqueuer, outbox OutboxEmitter) (DraftResult, error) {
	existing, reserved, err := fingerprints.Reserve(ctx, req.Fingerprint, caseID)
	if err != nil {
		return DraftResult{}, fmt.Errorf("reserve fingerprint: %w", err)
	}
	if !reserved {
		switch existing.Status {
		case models.FingerprintCreated:
			return DraftResult{Outcome: DraftOutcomeDuplicate, OrderID: existing.OrderID, OrderNo: existing.OrderNo}, nil
		case models.FingerprintInFlight:
			return DraftResult{}, fmt.Errorf("%w: another attempt is in flight for this order", models.ErrFingerprintConflict)
		default:
			// A prior attempt failed outright; fall through and retry under
			// the same fingerprint rather than leaving it permanently stuck.
		}
	}

	payload, marshalErr := marshalDraftRequest(req)
	if marshalErr != nil {
		return DraftResult{}, fmt.Errorf("marshal draft payload for retry queue: %w", marshalErr)
	}

	resp, err := c.CreateDraft(ctx, req)
	if err == nil {
		if markErr := fingerprints.MarkCreated(ctx, req.Fingerprint, resp.OrderID, resp.OrderNo); markErr != nil {
			c.log.Error("mark fingerprint created failed", "error", markErr, "caseId", caseID)
		}
		if outbox != nil {
			if _, evErr := outbox.CreateEvent(ctx, models.OutboxEventCreated, caseID, payload); evErr != nil {
				c.log.Error("emit created event failed", "error", evErr, "caseId", caseID)
			}
		}
		return DraftResult{Outcome: DraftOutcomeCreated, OrderID: resp.OrderID, OrderNo: resp.OrderNo}, nil
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) && !apiErr.Transient {
		if markErr := fingerprints.MarkFailed(ctx, req.Fingerprint); markErr != nil {
			c.log.Error("mark fingerprint failed failed", "error", markErr, "caseId", caseID)
		}
		if outbox != nil {
			if _, evErr := outbox.CreateEvent(ctx, models.OutboxEventFailed, caseID, payload); evErr != nil {
				c.log.Error("emit failed event failed", "error", evErr, "caseId", caseID)
			}
		}
		return DraftResult{}, fmt.Errorf("non-transient accounting error: %w", err)
	}

	if enqueueErr := retryQueue.Enqueue(ctx, caseID, payload, req.Fingerprint, err); enqueueErr != nil {
		return DraftResult{}, fmt.Errorf("enqueue exhausted draft attempt: %w", enqueueErr)
	}
	if markErr := fingerprints.MarkFailed(ctx, req.Fingerprint); markErr != nil {
		c.log.Error("mark fingerprint failed failed", "error", markErr, "caseId", caseID)
	}
	if outbox != nil {
		if _, evErr := outbox.CreateEvent(ctx, models.OutboxEventFailed, caseID, payload); evErr != nil {
			c.log.Error("emit failed event failed", "error", evErr, "caseId", caseID)
		}
	}

	c.log.Warn("draft creation exhausted retries, queued", "caseId", caseID, "error", err)
	return DraftResult{Outcome: DraftOutcomeQueued}, nil
}

func marshalDraftRequest(req DraftRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
