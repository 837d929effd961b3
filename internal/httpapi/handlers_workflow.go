package httpapi

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smilemakc/mbflow/internal/orderworkflow"
	"github.com/smilemakc/mbflow/internal/workflowengine"
)

// WorkflowHandlers implements C8's six workflow endpoints over a single
// internal/workflowengine.Engine instance (spec.md §4.8/§6).
type WorkflowHandlers struct {
	engine *workflowengine.Engine
}

func NewWorkflowHandlers(engine *workflowengine.Engine) *WorkflowHandlers {
	return &WorkflowHandlers{engine: engine}
}

// teamsRef mirrors spec.md §6's start-body "teams" block: the bot
// collaborator's own chat/message identifiers, passed through untouched
// for correlation.
type teamsRef struct {
	ChatID     string `json:"chatId"`
	MessageID  string `json:"messageId"`
	ActivityID string `json:"activityId"`
}

type startRequest struct {
	CaseID        string   `json:"caseId" binding:"required"`
	BlobURL       string   `json:"blobUrl" binding:"required"`
	TenantID      string   `json:"tenantId" binding:"required"`
	UserID        string   `json:"userId" binding:"required"`
	CorrelationID string   `json:"correlationId"`
	Teams         teamsRef `json:"teams"`
}

type startResponse struct {
	WorkflowID string `json:"workflowId"`
	RunID      string `json:"runId"`
	CaseID     string `json:"caseId"`
	Status     string `json:"status"`
}

// Start handles POST /workflow/start.
func (h *WorkflowHandlers) Start(c *gin.Context) {
	var req startRequest
	if !bindJSON(c, &req) {
		return
	}

	in := orderworkflow.StartInput{
		CaseID:   req.CaseID,
		Tenant:   req.TenantID,
		BlobURL:  req.BlobURL,
		Filename: filenameFromURL(req.BlobURL),
		Uploader: req.UserID,
		ChatRef:  req.Teams.ChatID,
	}
	input, err := toInputMap(in)
	if err != nil {
		respondAPIError(c, errInvalidJSON)
		return
	}

	runID, err := h.engine.Start(c.Request.Context(), orderworkflow.WorkflowTypeName, req.CaseID, input)
	if err != nil {
		respondAPIError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, startResponse{
		WorkflowID: req.CaseID,
		RunID:      runID,
		CaseID:     req.CaseID,
		Status:     "started",
	})
}

func filenameFromURL(blobURL string) string {
	name := path.Base(blobURL)
	if name == "" || name == "." || name == "/" || !strings.Contains(name, ".") {
		return "upload.xlsx"
	}
	return name
}

func toInputMap(in orderworkflow.StartInput) (map[string]interface{}, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

type signalResponse struct {
	WorkflowID string `json:"workflowId"`
	SignalName string `json:"signalName"`
	Status     string `json:"status"`
}

// Signal handles POST /workflow/{id}/signal/{name}.
func (h *WorkflowHandlers) Signal(c *gin.Context) {
	workflowID := c.Param("id")
	name := c.Param("name")
	if workflowID == "" || name == "" {
		respondAPIError(c, errBadRequest)
		return
	}

	var raw json.RawMessage
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&raw); err != nil {
			respondAPIError(c, errInvalidJSON)
			return
		}
	}

	if err := h.engine.Signal(c.Request.Context(), workflowID, name, raw); err != nil {
		respondAPIError(c, err)
		return
	}

	respondJSON(c, http.StatusAccepted, signalResponse{
		WorkflowID: workflowID,
		SignalName: name,
		Status:     "signal_sent",
	})
}

// Status handles GET /workflow/{id}/status.
func (h *WorkflowHandlers) Status(c *gin.Context) {
	workflowID := c.Param("id")
	if workflowID == "" {
		respondAPIError(c, errBadRequest)
		return
	}
	thread, err := h.engine.Status(c.Request.Context(), workflowID)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, thread)
}

// Query handles GET /workflow/{id}/query/{name}.
func (h *WorkflowHandlers) Query(c *gin.Context) {
	workflowID := c.Param("id")
	name := c.Param("name")
	if workflowID == "" {
		respondAPIError(c, errBadRequest)
		return
	}
	value, err := h.engine.Query(c.Request.Context(), workflowID, name)
	if err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, value)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type cancelResponse struct {
	WorkflowID string `json:"workflowId"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
}

// Cancel handles POST /workflow/{id}/cancel. It triggers the engine's
// cancellation signal; in-flight activities are not aborted, only their
// result is discarded on completion (spec.md §4.8).
func (h *WorkflowHandlers) Cancel(c *gin.Context) {
	workflowID := c.Param("id")
	if workflowID == "" {
		respondAPIError(c, errBadRequest)
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by operator"
	}

	if err := h.engine.Cancel(c.Request.Context(), workflowID, req.Reason); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, cancelResponse{WorkflowID: workflowID, Status: "cancelled", Reason: req.Reason})
}

// Terminate handles POST /workflow/{id}/terminate: a harder stop than
// Cancel with the same reason semantics but no distinct compensation
// hook of its own — this engine runs compensation from Cancel already,
// so terminate is cancel with a fixed system reason.
func (h *WorkflowHandlers) Terminate(c *gin.Context) {
	workflowID := c.Param("id")
	if workflowID == "" {
		respondAPIError(c, errBadRequest)
		return
	}
	if err := h.engine.Cancel(c.Request.Context(), workflowID, "terminated by operator"); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, cancelResponse{WorkflowID: workflowID, Status: "terminated", Reason: "terminated by operator"})
}
