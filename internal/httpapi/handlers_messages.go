package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smilemakc/mbflow/internal/orderworkflow"
	"github.com/smilemakc/mbflow/internal/workflowengine"
)

// MessageHandlers implements the bot collaborator's inbound contract
// (spec.md §4.8): it hands the core an attachment URL, tenant/user
// identity, and the user's locale. A caseId present in the payload means
// this message is a replacement file for a case already awaiting one
// (spec.md §4.7 "awaiting-reupload"); otherwise it opens a new case.
type MessageHandlers struct {
	engine *workflowengine.Engine
}

func NewMessageHandlers(engine *workflowengine.Engine) *MessageHandlers {
	return &MessageHandlers{engine: engine}
}

type inboundMessage struct {
	CaseID        string   `json:"caseId,omitempty"`
	TenantID      string   `json:"tenantId" binding:"required"`
	UserID        string   `json:"userId" binding:"required"`
	Locale        string   `json:"locale"`
	AttachmentURL string   `json:"attachmentUrl" binding:"required"`
	Teams         teamsRef `json:"teams"`
}

type inboundMessageResponse struct {
	CaseID string `json:"caseId"`
	Status string `json:"status"`
}

// Receive handles POST /messages.
func (h *MessageHandlers) Receive(c *gin.Context) {
	var msg inboundMessage
	if !bindJSON(c, &msg) {
		return
	}

	if msg.CaseID != "" {
		payload, err := json.Marshal(orderworkflow.FileReuploadedPayload{
			BlobURL:  msg.AttachmentURL,
			Filename: filenameFromURL(msg.AttachmentURL),
		})
		if err != nil {
			respondAPIError(c, errInvalidJSON)
			return
		}
		if err := h.engine.Signal(c.Request.Context(), msg.CaseID, orderworkflow.SignalFileReuploaded, payload); err != nil {
			respondAPIError(c, err)
			return
		}
		respondJSON(c, http.StatusAccepted, inboundMessageResponse{CaseID: msg.CaseID, Status: "signal_sent"})
		return
	}

	caseID := uuid.New().String()
	in := orderworkflow.StartInput{
		CaseID:   caseID,
		Tenant:   msg.TenantID,
		BlobURL:  msg.AttachmentURL,
		Filename: filenameFromURL(msg.AttachmentURL),
		Uploader: msg.UserID,
		ChatRef:  msg.Teams.ChatID,
	}
	input, err := toInputMap(in)
	if err != nil {
		respondAPIError(c, errInvalidJSON)
		return
	}
	if _, err := h.engine.Start(c.Request.Context(), orderworkflow.WorkflowTypeName, caseID, input); err != nil {
		respondAPIError(c, err)
		return
	}
	respondJSON(c, http.StatusAccepted, inboundMessageResponse{CaseID: caseID, Status: "started"})
}
