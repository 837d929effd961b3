package models

// EvidenceCell points at the source spreadsheet cell that justifies an
// extracted value. Every non-null field on a CanonicalOrder must carry at
// least one of these; a value with none is a parser defect.
type EvidenceCell struct {
	Sheet         string `json:"sheet"`
	Cell          string `json:"cell"` // A1-notation, e.g. "C14"
	RawValue      string `json:"rawValue"`
	DisplayValue  string `json:"displayValue,omitempty"`
	NumberFormat  string `json:"numberFormat,omitempty"`
}

// IssueSeverity is the closed severity lexicon for Issue.
type IssueSeverity string

const (
	SeverityInfo    IssueSeverity = "info"
	SeverityWarning IssueSeverity = "warning"
	SeverityError   IssueSeverity = "error"
	SeverityBlocker IssueSeverity = "blocker"
)

// IssueCode is the closed set of canonical issue codes (spec §6).
type IssueCode string

const (
	IssueFormulasBlocked          IssueCode = "FORMULAS_BLOCKED"
	IssueFormulasWarning          IssueCode = "FORMULAS_WARNING"
	IssueNoSuitableSheet          IssueCode = "NO_SUITABLE_SHEET"
	IssueMultipleSheetCandidates  IssueCode = "MULTIPLE_SHEET_CANDIDATES"
	IssueSheetNotFound            IssueCode = "SHEET_NOT_FOUND"
	IssueNoHeaderRow              IssueCode = "NO_HEADER_ROW"
	IssueMissingQuantityColumn    IssueCode = "MISSING_QUANTITY_COLUMN"
	IssueMissingCustomer          IssueCode = "MISSING_CUSTOMER"
	IssueMissingQuantity          IssueCode = "MISSING_QUANTITY"
	IssueMissingItemIdentifier    IssueCode = "MISSING_ITEM_IDENTIFIER"
	IssueGTINInvalid              IssueCode = "GTIN_INVALID"
	IssueArithmeticMismatch       IssueCode = "ARITHMETIC_MISMATCH"
	IssueSubtotalMismatch         IssueCode = "SUBTOTAL_MISMATCH"
	IssueNegativeQuantity         IssueCode = "NEGATIVE_QUANTITY"
	IssueAmbiguousCustomer        IssueCode = "AMBIGUOUS_CUSTOMER"
	IssueCustomerNotFound         IssueCode = "CUSTOMER_NOT_FOUND"
	IssueAmbiguousItem            IssueCode = "AMBIGUOUS_ITEM"
	IssueItemNotFound             IssueCode = "ITEM_NOT_FOUND"
	IssueCommitteeDisagreement    IssueCode = "COMMITTEE_DISAGREEMENT"
	IssueHumanResponseTimeout     IssueCode = "HUMAN_RESPONSE_TIMEOUT"
	// IssueRowLimitExceeded is not part of the closed interchange lexicon of
	// spec §6; it is an internal, non-blocking signal that the streaming
	// parser stopped short of the sheet's full row count.
	IssueRowLimitExceeded IssueCode = "ROW_LIMIT_EXCEEDED"
)

// issueCodeTable is the table-driven lexicon of default severity, message
// and suggested action per code (REDESIGN FLAGS: "issue kind" is a tagged
// variant keyed by code, not ad-hoc polymorphism).
var issueCodeTable = map[IssueCode]struct {
	severity IssueSeverity
	message  string
	action   string
}{
	IssueFormulasBlocked:         {SeverityBlocker, "the workbook contains formulas and the parser is configured to block on formulas", "re-upload a values-only copy of the spreadsheet"},
	IssueFormulasWarning:        {SeverityWarning, "the workbook contains formulas; values were read as computed", "verify computed values are correct before approving"},
	IssueNoSuitableSheet:        {SeverityBlocker, "no sheet in the workbook scored above the selection threshold", "re-upload a spreadsheet with a single clear order table"},
	IssueMultipleSheetCandidates: {SeverityWarning, "more than one sheet could plausibly hold the order", "confirm which sheet to use"},
	IssueSheetNotFound:          {SeverityBlocker, "the requested sheet does not exist in the workbook", "check the sheet name and re-upload"},
	IssueNoHeaderRow:            {SeverityError, "no row scored high enough to be the header row", "add a clear header row naming each column"},
	IssueMissingQuantityColumn:  {SeverityError, "no column could be mapped to quantity", "label the quantity column explicitly"},
	IssueMissingCustomer:        {SeverityError, "no customer name could be extracted", "add the customer name to the order"},
	IssueMissingQuantity:        {SeverityError, "a line item is missing a quantity", "fill in the missing quantity"},
	IssueMissingItemIdentifier:  {SeverityError, "a line item has neither a SKU nor a GTIN", "add a SKU or GTIN for this line"},
	IssueGTINInvalid:            {SeverityWarning, "a GTIN failed length or check-digit validation", "verify the GTIN value"},
	IssueArithmeticMismatch:     {SeverityWarning, "quantity times unit price does not match the line total", "verify the line amounts"},
	IssueSubtotalMismatch:       {SeverityWarning, "the stated subtotal does not match the sum of line totals", "verify the subtotal"},
	IssueNegativeQuantity:       {SeverityWarning, "a line item has a negative quantity", "verify the quantity is intentional"},
	IssueAmbiguousCustomer:      {SeverityError, "multiple customers matched with similar confidence", "select the correct customer"},
	IssueCustomerNotFound:       {SeverityError, "no matching customer was found in the catalog", "select or confirm the customer"},
	IssueAmbiguousItem:          {SeverityError, "multiple catalog items matched a line", "select the correct item"},
	IssueItemNotFound:           {SeverityError, "no matching catalog item was found for a line", "select or confirm the item"},
	IssueCommitteeDisagreement:  {SeverityError, "automated column mapping could not reach consensus", "confirm the column mapping"},
	IssueHumanResponseTimeout:   {SeverityBlocker, "no human response was received within the maximum wait", "re-open the case to continue"},
	IssueRowLimitExceeded:       {SeverityInfo, "the sheet has more rows than the configured scan limit; remaining rows were not read", "split the workbook or raise the row limit"},
}

// DefaultSeverity returns the table-driven default severity for a code, or
// SeverityError with ok=false if the code is not in the closed set.
func DefaultSeverity(code IssueCode) (IssueSeverity, bool) {
	entry, ok := issueCodeTable[code]
	if !ok {
		return SeverityError, false
	}
	return entry.severity, true
}

// NewIssue builds an Issue using the table-driven default severity, message
// and suggested action for code, which the caller may override.
func NewIssue(code IssueCode, fields []string, evidence []EvidenceCell) Issue {
	entry, ok := issueCodeTable[code]
	if !ok {
		return Issue{Code: code, Severity: SeverityError, Message: "unrecognized issue code: " + string(code)}
	}
	return Issue{
		Code:                code,
		Severity:            entry.severity,
		Message:             entry.message,
		Fields:              fields,
		Evidence:            evidence,
		SuggestedUserAction: entry.action,
	}
}

// Issue is a tagged-union-by-code finding surfaced on a CanonicalOrder.
type Issue struct {
	Code                IssueCode      `json:"code"`
	Severity            IssueSeverity  `json:"severity"`
	Message             string         `json:"message"`
	Fields              []string       `json:"fields,omitempty"`
	Evidence            []EvidenceCell `json:"evidence,omitempty"`
	SuggestedUserAction string         `json:"suggestedUserAction,omitempty"`
}

// HasBlocker reports whether any issue in the list is a blocker; presence
// of a blocker prevents draft creation.
func HasBlocker(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityBlocker {
			return true
		}
	}
	return false
}

// HasUnresolvedError reports whether any issue is an unresolved error,
// which requires resolution or an explicit override before draft creation.
func HasUnresolvedError(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}
