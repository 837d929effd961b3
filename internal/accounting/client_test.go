package accounting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smilemakc/mbflow/internal/config"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
)

func testLogger() *logger.Logger {
	return logger.New(config.LoggingConfig{Level: "error", Format: "text"})
}

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
}

func TestClient_RefreshCatalogs(t *testing.T) {
	ts := tokenServer(t)
	defer ts.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/customers":
			_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "c1", "name": "Acme Co."}})
		case "/items":
			_ = json.NewEncoder(w).Encode([]map[string]string{{"id": "i1", "name": "Widget", "sku": "WID-1"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer api.Close()

	tokens := NewTokenProvider(ts.URL, "id", "secret", nil)
	client := NewClient(api.URL, tokens, nil, testLogger())

	if err := client.RefreshCatalogs(context.Background()); err != nil {
		t.Fatalf("RefreshCatalogs: %v", err)
	}
	if len(client.Customers.Entries()) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(client.Customers.Entries()))
	}
	if _, ok := client.Items.ByID("i1"); !ok {
		t.Fatalf("expected item i1 cached")
	}
}

func TestClient_CreateDraft_RetriesOn429ThenSucceeds(t *testing.T) {
	ts := tokenServer(t)
	defer ts.Close()

	attempts := 0
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(DraftResponse{OrderID: "ord-1", OrderNo: "SO-100"})
	}))
	defer api.Close()

	tokens := NewTokenProvider(ts.URL, "id", "secret", nil)
	client := NewClient(api.URL, tokens, nil, testLogger())

	resp, err := client.CreateDraft(context.Background(), DraftRequest{Fingerprint: "fp1", CustomerID: "c1"})
	if err != nil {
		t.Fatalf("CreateDraft: %v", err)
	}
	if resp.OrderID != "ord-1" || attempts != 2 {
		t.Fatalf("resp=%+v attempts=%d", resp, attempts)
	}
}

func TestClient_CreateDraft_NonTransientDoesNotRetry(t *testing.T) {
	ts := tokenServer(t)
	defer ts.Close()

	attempts := 0
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer api.Close()

	tokens := NewTokenProvider(ts.URL, "id", "secret", nil)
	client := NewClient(api.URL, tokens, nil, testLogger())

	_, err := client.CreateDraft(context.Background(), DraftRequest{Fingerprint: "fp1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-transient error, got %d", attempts)
	}
}
