package orderworkflow

import (
	"encoding/json"
	"fmt"
)

// Signal names the saga awaits on, per spec.md §4.7's four human-in-the-loop
// signals.
const (
	SignalFileReuploaded     = "FileReuploaded"
	SignalCorrectionsSubmitted = "CorrectionsSubmitted"
	SignalSelectionsSubmitted = "SelectionsSubmitted"
	SignalApprovalReceived    = "ApprovalReceived"
)

// StartInput is the payload internal/httpapi passes to Engine.Start when
// opening a new case's workflow run.
type StartInput struct {
	CaseID   string `json:"caseId"`
	Tenant   string `json:"tenant"`
	BlobURL  string `json:"blobUrl"`
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
	Uploader string `json:"uploader"`
	ChatRef  string `json:"chatRef"`
}

// FileReuploadedPayload carries a replacement file for a case that blocked
// on the parser (spec.md §4.7 "awaiting-reupload").
type FileReuploadedPayload struct {
	BlobURL  string `json:"blobUrl"`
	Filename string `json:"filename"`
	SHA256   string `json:"sha256"`
}

// CorrectionsSubmittedPayload carries per-column overrides for the case's
// column mapping (source column -> target field), not JSON Patch
// operations. The saga applies them and moves on to customer resolution;
// the committee is not run again.
type CorrectionsSubmittedPayload struct {
	ColumnMappings []ColumnMappingCorrection `json:"columnMappings"`
}

// ColumnMappingCorrection pins one source column to a target field,
// overriding whatever the committee proposed for it.
type ColumnMappingCorrection struct {
	SourceColumn string `json:"sourceColumn"`
	TargetField  string `json:"targetField"`
}

// SelectionsSubmittedPayload resolves ambiguous/not-found customer and
// line-item matches a human picked from the candidate list.
type SelectionsSubmittedPayload struct {
	Customer *CustomerSelection     `json:"customer,omitempty"`
	Items    []LineItemSelection    `json:"items,omitempty"`
}

// CustomerSelection pins the case's customer to a catalog id.
type CustomerSelection struct {
	ResolvedID string `json:"resolvedId"`
}

// LineItemSelection pins one line item (by its row index within the
// order) to a catalog id.
type LineItemSelection struct {
	RowIndex   int    `json:"rowIndex"`
	ResolvedID string `json:"resolvedId"`
}

// ApprovalReceivedPayload carries the human reviewer's approve/reject
// decision at the final gate before draft creation.
type ApprovalReceivedPayload struct {
	Approved bool   `json:"approved"`
	Approver string `json:"approver"`
	Comments string `json:"comments,omitempty"`
}

// decodeJSON unmarshals a raw JSON payload into a typed struct (maps go
// through decodeMap first); every StepFunc decodes run.Input/the signal payload this
// way rather than threading separate typed fields through the engine's
// generic Run shape.
func decodeJSON(raw []byte, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// decodeMap re-marshals a map[string]interface{} (the shape run.Input and
// run.State are stored as) into a typed struct.
func decodeMap(m map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal input map: %w", err)
	}
	return decodeJSON(raw, out)
}

// encodeMap marshals a typed struct back into the map[string]interface{}
// shape run.State is persisted as.
func encodeMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return m, nil
}
