package models

import (
	"encoding/json"
	"time"
)

// LanguageHint is the sniffed locale of the source spreadsheet's text.
type LanguageHint string

const (
	LanguageEnglish LanguageHint = "en"
	LanguageFarsi   LanguageHint = "fa"
	LanguageUnknown LanguageHint = ""
)

// ResolutionStatus is the closed set of entity-resolution outcomes shared
// by customer and item resolution.
type ResolutionStatus string

const (
	ResolutionUnresolved ResolutionStatus = "unresolved"
	ResolutionResolved   ResolutionStatus = "resolved"
	ResolutionAmbiguous  ResolutionStatus = "ambiguous"
	ResolutionNotFound   ResolutionStatus = "not-found"
)

// MappingMethod is how a column was mapped to a canonical field.
type MappingMethod string

const (
	MethodDictionary  MappingMethod = "dictionary"
	MethodFuzzy       MappingMethod = "fuzzy"
	MethodEmbedding   MappingMethod = "embedding"
	MethodLLM         MappingMethod = "llm"
	MethodLLMTiebreak MappingMethod = "llm-tiebreak"
	MethodManual      MappingMethod = "manual"
)

// OrderMeta is the CanonicalOrder.meta block.
type OrderMeta struct {
	CaseID          string       `json:"caseId"`
	Tenant          string       `json:"tenant"`
	ReceivedAt      time.Time    `json:"receivedAt"`
	Filename        string       `json:"filename"`
	SHA256          string       `json:"sha256"`
	LanguageHint    LanguageHint `json:"languageHint,omitempty"`
	ParserVersion   string       `json:"parserVersion"`
	ContainsFormulas bool        `json:"containsFormulas"`
	SheetsProcessed []string     `json:"sheetsProcessed"`
}

// CustomerRef is the CanonicalOrder.customer block.
type CustomerRef struct {
	InputName        string           `json:"inputName"`
	ResolutionStatus ResolutionStatus `json:"resolutionStatus"`
	ResolvedID       string           `json:"resolvedId,omitempty"`
	Evidence         []EvidenceCell   `json:"evidence,omitempty"`
}

// LineItem is a single extracted order row.
type LineItem struct {
	RowIndex        int            `json:"rowIndex"`
	SourceRowNumber int            `json:"sourceRowNumber"`
	SKU             string         `json:"sku,omitempty"`
	GTIN            string         `json:"gtin,omitempty"`
	ProductName     string         `json:"productName,omitempty"`
	Quantity        float64        `json:"quantity"`
	UnitPriceSource string         `json:"unitPriceSource,omitempty"`
	LineTotalSource string         `json:"lineTotalSource,omitempty"`
	Currency        string         `json:"currency,omitempty"`
	Evidence        []EvidenceCell `json:"evidence,omitempty"`

	// ResolvedItemID and ResolutionStatus are populated by the matcher/C3
	// during item resolution; they are not part of raw extraction.
	ResolvedItemID   string           `json:"resolvedItemId,omitempty"`
	ResolutionStatus ResolutionStatus `json:"resolutionStatus,omitempty"`
}

// OrderTotals is the optional CanonicalOrder.totals block.
type OrderTotals struct {
	Subtotal float64        `json:"subtotal"`
	Tax      float64        `json:"tax"`
	Grand    float64        `json:"grand"`
	Currency string         `json:"currency,omitempty"`
	Evidence []EvidenceCell `json:"evidence,omitempty"`
}

// ColumnMapping is one entry of schemaInference.columnMappings.
type ColumnMapping struct {
	CanonicalField string          `json:"canonicalField"`
	SourceHeader   string          `json:"sourceHeader"`
	SourceColumn   string          `json:"sourceColumn"` // spreadsheet column letter
	Confidence     float64         `json:"confidence"`
	Method         MappingMethod   `json:"method"`
	Candidates     []FieldCandidate `json:"candidates,omitempty"`
}

// FieldCandidate is a runner-up candidate field for a column mapping.
type FieldCandidate struct {
	CanonicalField string  `json:"canonicalField"`
	Confidence     float64 `json:"confidence"`
}

// SchemaInference is the CanonicalOrder.schemaInference block.
type SchemaInference struct {
	SelectedSheet   string          `json:"selectedSheet"`
	TableRegion     string          `json:"tableRegion"` // A1:Z99 style region
	HeaderRow       int             `json:"headerRow"`
	ColumnMappings  []ColumnMapping `json:"columnMappings"`
}

// StageConfidence is the CanonicalOrder.confidence block.
type StageConfidence struct {
	Overall         float64 `json:"overall"`
	SheetSelection  float64 `json:"sheetSelection"`
	HeaderDetection float64 `json:"headerDetection"`
	ColumnMapping   float64 `json:"columnMapping"`
}

// CanonicalOrder is the parser's evidence-tracked structured representation
// of a source spreadsheet (spec §3).
type CanonicalOrder struct {
	Meta            OrderMeta        `json:"meta"`
	Customer        CustomerRef      `json:"customer"`
	LineItems       []LineItem       `json:"lineItems"`
	Totals          *OrderTotals     `json:"totals,omitempty"`
	SchemaInference SchemaInference  `json:"schemaInference"`
	Confidence      StageConfidence  `json:"confidence"`
	Issues          []Issue          `json:"issues,omitempty"`
}

// Clone returns a deep copy of the order via a JSON round-trip, matching
// the teacher's Workflow.Clone convention.
func (o *CanonicalOrder) Clone() (*CanonicalOrder, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	var clone CanonicalOrder
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}

// ReadyForApproval reports whether the order has no blockers and no
// unresolved errors, i.e. it may be presented to a human for approval.
func (o *CanonicalOrder) ReadyForApproval() bool {
	return !HasBlocker(o.Issues) && !HasUnresolvedError(o.Issues)
}
