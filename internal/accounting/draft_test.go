package accounting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smilemakc/mbflow/pkg/models"
)

type fakeFingerprintStore struct {
	rows map[string]models.OrderFingerprint
}

func newFakeFingerprintStore() *fakeFingerprintStore {
	return &fakeFingerprintStore{rows: map[string]models.OrderFingerprint{}}
}

func (s *fakeFingerprintStore) Reserve(ctx context.Context, hash, caseID string) (models.OrderFingerprint, bool, error) {
	if existing, ok := s.rows[hash]; ok {
		return existing, false, nil
	}
	s.rows[hash] = models.OrderFingerprint{Hash: hash, CaseID: caseID, Status: models.FingerprintInFlight}
	return models.OrderFingerprint{}, true, nil
}

func (s *fakeFingerprintStore) MarkCreated(ctx context.Context, hash, orderID, orderNo string) error {
	row := s.rows[hash]
	row.Status = models.FingerprintCreated
	row.OrderID = orderID
	row.OrderNo = orderNo
	s.rows[hash] = row
	return nil
}

func (s *fakeFingerprintStore) MarkFailed(ctx context.Context, hash string) error {
	row := s.rows[hash]
	row.Status = models.FingerprintFailed
	s.rows[hash] = row
	return nil
}

type fakeRetryEnqueuer struct {
	enqueued []string
}

func (e *fakeRetryEnqueuer) Enqueue(ctx context.Context, caseID, payload, fingerprint string, lastErr error) error {
	e.enqueued = append(e.enqueued, fingerprint)
	return nil
}

type fakeOutbox struct {
	events []models.OutboxEventType
}

func (o *fakeOutbox) CreateEvent(ctx context.Context, eventType models.OutboxEventType, caseID, payload string) (string, error) {
	o.events = append(o.events, eventType)
	return "ev-" + string(eventType), nil
}

func TestCreateDraftIdempotent_SecondCallWithSameFingerprintIsDuplicate(t *testing.T) {
	ts := tokenServer(t)
	defer ts.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DraftResponse{OrderID: "ord-1", OrderNo: "SO-100"})
	}))
	defer api.Close()

	tokens := NewTokenProvider(ts.URL, "id", "secret", nil)
	client := NewClient(api.URL, tokens, nil, testLogger())
	store := newFakeFingerprintStore()
	retryQ := &fakeRetryEnqueuer{}
	outboxFake := &fakeOutbox{}

	req := DraftRequest{Fingerprint: "fp-same", CustomerID: "c1"}

	first, err := client.CreateDraftIdempotent(context.Background(), "case-1", req, store, retryQ, outboxFake)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Outcome != DraftOutcomeCreated {
		t.Fatalf("first outcome = %v, want created", first.Outcome)
	}

	second, err := client.CreateDraftIdempotent(context.Background(), "case-1", req, store, retryQ, outboxFake)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.Outcome != DraftOutcomeDuplicate || second.OrderID != "ord-1" {
		t.Fatalf("second = %+v, want duplicate of ord-1", second)
	}
	if len(outboxFake.events) != 1 || outboxFake.events[0] != models.OutboxEventCreated {
		t.Fatalf("expected exactly one created outbox event, got %+v", outboxFake.events)
	}
}

func TestCreateDraftIdempotent_ExhaustedRetriesQueuesForLater(t *testing.T) {
	ts := tokenServer(t)
	defer ts.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer api.Close()

	tokens := NewTokenProvider(ts.URL, "id", "secret", nil)
	client := NewClient(api.URL, tokens, nil, testLogger())
	client.retry = &RetryPolicy{MaxAttempts: 2, InitialDelay: 0, MaxDelay: 0}
	store := newFakeFingerprintStore()
	retryQ := &fakeRetryEnqueuer{}
	outboxFake := &fakeOutbox{}

	req := DraftRequest{Fingerprint: "fp-queued", CustomerID: "c1"}
	result, err := client.CreateDraftIdempotent(context.Background(), "case-2", req, store, retryQ, outboxFake)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != DraftOutcomeQueued {
		t.Fatalf("outcome = %v, want queued", result.Outcome)
	}
	if len(retryQ.enqueued) != 1 || retryQ.enqueued[0] != "fp-queued" {
		t.Fatalf("retry queue = %+v", retryQ.enqueued)
	}
	if store.rows["fp-queued"].Status != models.FingerprintFailed {
		t.Fatalf("fingerprint status = %v, want failed", store.rows["fp-queued"].Status)
	}
}

func TestCreateDraftIdempotent_NonTransientErrorIsNotQueued(t *testing.T) {
	ts := tokenServer(t)
	defer ts.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer api.Close()

	tokens := NewTokenProvider(ts.URL, "id", "secret", nil)
	client := NewClient(api.URL, tokens, nil, testLogger())
	store := newFakeFingerprintStore()
	retryQ := &fakeRetryEnqueuer{}

	_, err := client.CreateDraftIdempotent(context.Background(), "case-3", DraftRequest{Fingerprint: "fp-bad"}, store, retryQ, &fakeOutbox{})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(retryQ.enqueued) != 0 {
		t.Fatalf("non-transient errors must not be queued, got %+v", retryQ.enqueued)
	}
}
