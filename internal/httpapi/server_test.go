package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/mbflow/internal/config"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	"github.com/smilemakc/mbflow/internal/workflowengine"
	"github.com/smilemakc/mbflow/testutil"
)

func testLogger() *logger.Logger {
	return logger.New(config.LoggingConfig{Level: "error", Format: "text"})
}

// orderIntakeStandIn registers under orderworkflow.WorkflowTypeName so
// /workflow/start exercises the real handler without pulling in the full
// saga's accounting/committee/notifier collaborators.
func orderIntakeStandIn() *workflowengine.WorkflowType {
	return &workflowengine.WorkflowType{
		Name:      "order-intake",
		StartStep: "awaiting",
		Steps: map[string]workflowengine.StepFunc{
			"awaiting": func(ctx context.Context, run *workflowengine.Run, signal json.RawMessage) (workflowengine.StepOutcome, error) {
				if signal == nil {
					return workflowengine.AwaitSignal("FileReuploaded"), nil
				}
				run.State["received"] = string(signal)
				return workflowengine.Completed(), nil
			},
		},
		Queries: map[string]workflowengine.QueryFunc{
			"received": func(run *workflowengine.Run) (interface{}, error) {
				return run.State["received"], nil
			},
		},
	}
}

func setupRouterTest(t *testing.T) (*testing.T, func() (*workflowengine.Engine, func())) {
	return t, func() (*workflowengine.Engine, func()) {
		testDB := testutil.SetupTestDB(t)
		registry := workflowengine.NewRegistry()
		registry.Register(orderIntakeStandIn())
		engine := workflowengine.NewEngine(testDB.DB, registry, testLogger())
		return engine, func() { testDB.Cleanup(t) }
	}
}

func TestHealth_OK(t *testing.T) {
	_, setup := setupRouterTest(t)
	engine, cleanup := setup()
	defer cleanup()

	router := Router(engine, func() error { return nil }, testLogger(), 1<<20)
	w := testutil.MakeRequest(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["engine"])
}

func TestHealth_PingFailureReturnsUnavailable(t *testing.T) {
	_, setup := setupRouterTest(t)
	engine, cleanup := setup()
	defer cleanup()

	router := Router(engine, func() error { return assert.AnError }, testLogger(), 1<<20)
	w := testutil.MakeRequest(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "disconnected", body["engine"])
}

func TestWorkflow_StartSignalStatusQueryLifecycle(t *testing.T) {
	_, setup := setupRouterTest(t)
	engine, cleanup := setup()
	defer cleanup()

	router := Router(engine, func() error { return nil }, testLogger(), 1<<20)

	startReq := map[string]interface{}{
		"caseId":   "case-1",
		"blobUrl":  "https://blob.example.com/upload.xlsx",
		"tenantId": "tenant-1",
		"userId":   "user-1",
	}
	w := testutil.MakeRequest(t, router, http.MethodPost, "/workflow/start", startReq)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = testutil.MakeRequest(t, router, http.MethodGet, "/workflow/case-1/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "awaiting", status["currentStep"])

	w = testutil.MakeRequest(t, router, http.MethodPost, "/workflow/case-1/signal/FileReuploaded", json.RawMessage(`"replacement.xlsx"`))
	require.Equal(t, http.StatusAccepted, w.Code)

	w = testutil.MakeRequest(t, router, http.MethodGet, "/workflow/case-1/query/received", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "replacement.xlsx")
}

func TestWorkflow_StatusUnknownWorkflowReturnsNotFound(t *testing.T) {
	_, setup := setupRouterTest(t)
	engine, cleanup := setup()
	defer cleanup()

	router := Router(engine, func() error { return nil }, testLogger(), 1<<20)
	w := testutil.MakeRequest(t, router, http.MethodGet, "/workflow/does-not-exist/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflow_CancelAndTerminate(t *testing.T) {
	_, setup := setupRouterTest(t)
	engine, cleanup := setup()
	defer cleanup()

	router := Router(engine, func() error { return nil }, testLogger(), 1<<20)

	startReq := map[string]interface{}{
		"caseId":   "case-2",
		"blobUrl":  "https://blob.example.com/upload.xlsx",
		"tenantId": "tenant-1",
		"userId":   "user-1",
	}
	w := testutil.MakeRequest(t, router, http.MethodPost, "/workflow/start", startReq)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = testutil.MakeRequest(t, router, http.MethodPost, "/workflow/case-2/cancel", map[string]string{"reason": "bad upload"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bad upload")

	w = testutil.MakeRequest(t, router, http.MethodPost, "/workflow/case-2/terminate", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMessages_ReceiveStartsNewCase(t *testing.T) {
	_, setup := setupRouterTest(t)
	engine, cleanup := setup()
	defer cleanup()

	router := Router(engine, func() error { return nil }, testLogger(), 1<<20)

	inbound := map[string]interface{}{
		"tenantId":      "tenant-1",
		"userId":        "user-1",
		"attachmentUrl": "https://blob.example.com/orders/sales-order.xlsx",
	}
	w := testutil.MakeRequest(t, router, http.MethodPost, "/messages", inbound)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["caseId"])
	assert.Equal(t, "started", resp["status"])
}

func TestMessages_ReceiveMissingFieldRejected(t *testing.T) {
	_, setup := setupRouterTest(t)
	engine, cleanup := setup()
	defer cleanup()

	router := Router(engine, func() error { return nil }, testLogger(), 1<<20)
	w := testutil.MakeRequest(t, router, http.MethodPost, "/messages", map[string]string{"tenantId": "tenant-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
