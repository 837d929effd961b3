// Package parser turns an uploaded .xlsx blob into a models.CanonicalOrder.
// It is pure and deterministic: the same bytes and options always produce
// the same order (modulo meta.receivedAt). Every populated field carries
// at least one evidence cell pointing at the source cell it came from;
// this package never invents a value it cannot trace.
package parser

import (
	"bytes"
	"strings"
	"time"

	"github.com/smilemakc/mbflow/internal/parser/locale"
	"github.com/smilemakc/mbflow/pkg/models"
)

// Parser is the stateless entry point; it holds only its configured
// defaults, never per-call state.
type Parser struct {
	defaults Options
}

// New builds a Parser with the given default options; zero-value fields
// fall back to DefaultOptions().
func New(defaults Options) *Parser {
	return &Parser{defaults: defaults.withDefaults()}
}

// Parse reads blob as an OOXML workbook and produces a CanonicalOrder
// following §4.1's seven-step, short-circuiting pipeline.
func (p *Parser) Parse(meta CaseMeta, blob []byte, opts Options) (*models.CanonicalOrder, error) {
	merged := mergeOptions(p.defaults, opts)

	order := &models.CanonicalOrder{
		Meta: models.OrderMeta{
			CaseID:        meta.CaseID,
			Tenant:        meta.Tenant,
			ReceivedAt:    time.Now().UTC(),
			Filename:      meta.Filename,
			SHA256:        meta.SHA256,
			ParserVersion: merged.ParserVersion,
		},
	}

	wb, err := openWorkbook(bytes.NewReader(blob))
	if err != nil {
		order.Issues = append(order.Issues, models.NewIssue(models.IssueNoSuitableSheet, nil, nil))
		return order, nil
	}
	defer wb.Close()

	sheetNames := wb.sheetNames()
	if len(sheetNames) == 0 {
		order.Issues = append(order.Issues, models.NewIssue(models.IssueSheetNotFound, nil, nil))
		return order, nil
	}

	// Step 1: formula scan across every visible sheet.
	formulaHit, blocked := p.scanFormulas(wb, sheetNames, merged)
	order.Meta.ContainsFormulas = formulaHit
	if blocked {
		order.Issues = []models.Issue{models.NewIssue(models.IssueFormulasBlocked, nil, nil)}
		return order, nil
	}
	if formulaHit && merged.FormulaPolicy == FormulaPolicyWarn {
		order.Issues = append(order.Issues, models.NewIssue(models.IssueFormulasWarning, nil, nil))
	}

	// Step 2: sheet selection.
	sheetRows := map[string][][]cell{}
	var scores []sheetScore
	for _, name := range sheetNames {
		rows, truncated, err := wb.rows(name, merged.MaxRows)
		if err != nil {
			continue
		}
		sheetRows[name] = rows
		scores = append(scores, sheetScore{name: name, score: scoreSheet(rows)})
		if truncated {
			order.Issues = append(order.Issues, models.NewIssue(models.IssueRowLimitExceeded, []string{"sheet:" + name}, nil))
		}
	}

	selection := selectSheet(scores, merged.SelectionThreshold, merged.MinGap)
	switch selection.Status {
	case "none":
		order.Issues = []models.Issue{models.NewIssue(models.IssueNoSuitableSheet, nil, nil)}
		return order, nil
	case "ambiguous":
		order.Issues = append(order.Issues, models.NewIssue(models.IssueMultipleSheetCandidates, []string{"sheet:" + selection.Selected}, nil))
	}

	selectedSheet := selection.Selected
	rows := sheetRows[selectedSheet]
	order.Meta.SheetsProcessed = []string{selectedSheet}

	// Step 3: header detection.
	headerResult := detectHeaderRow(rows, merged.MaxHeaderScanRows)
	if headerResult.RowIndex < 0 || headerResult.Score < merged.HeaderScoreThreshold {
		order.Issues = append(order.Issues, models.NewIssue(models.IssueNoHeaderRow, nil, nil))
		return order, nil
	}
	headerRow := rows[headerResult.RowIndex]
	bodyRows := rows[headerResult.RowIndex+1:]

	// Step 4: schema inference.
	schema, cols, mappingIssues := p.inferSchema(headerRow, bodyRows, selectedSheet, headerResult.RowIndex)
	order.SchemaInference = schema
	order.Issues = append(order.Issues, mappingIssues...)
	if cols.quantity < 0 {
		order.Issues = append(order.Issues, models.NewIssue(models.IssueMissingQuantityColumn, []string{"schemaInference.columnMappings"}, nil))
	}

	// Step 5 + 6: row extraction and value normalization.
	var languageSample strings.Builder
	for i, row := range bodyRows {
		kind := classifyRow(row, cols.sku, cols.productName)
		switch kind {
		case "empty":
			continue
		case "total":
			p.extractTotals(row, cols, order)
			continue
		}

		sourceRowNumber := headerResult.RowIndex + 2 + i // 1-based, header already consumed
		li, liIssues := extractLineItem(row, len(order.LineItems), sourceRowNumber, cols)
		order.LineItems = append(order.LineItems, li)
		order.Issues = append(order.Issues, liIssues...)
		languageSample.WriteString(li.ProductName)
		languageSample.WriteByte(' ')
	}

	if cols.customer >= 0 {
		p.extractCustomer(headerRow, bodyRows, cols, selectedSheet, order)
	}
	languageSample.WriteString(order.Customer.InputName)

	if locale.ContainsFarsi(languageSample.String()) {
		order.Meta.LanguageHint = models.LanguageFarsi
	} else {
		order.Meta.LanguageHint = models.LanguageEnglish
	}

	// Step 7: validation.
	order.Issues = append(order.Issues, validateOrder(order, merged)...)

	order.Confidence = computeConfidence(selection, headerResult, schema)

	return order, nil
}

// CaseMeta carries the case-scoped identifiers the parser stamps onto
// CanonicalOrder.meta; it has no other effect on extraction.
type CaseMeta struct {
	CaseID   string
	Tenant   string
	Filename string
	SHA256   string
}

func mergeOptions(base, override Options) Options {
	merged := base
	if override.FormulaPolicy != "" {
		merged.FormulaPolicy = override.FormulaPolicy
	}
	if override.SelectionThreshold != 0 {
		merged.SelectionThreshold = override.SelectionThreshold
	}
	if override.MinGap != 0 {
		merged.MinGap = override.MinGap
	}
	if override.MaxHeaderScanRows != 0 {
		merged.MaxHeaderScanRows = override.MaxHeaderScanRows
	}
	if override.HeaderScoreThreshold != 0 {
		merged.HeaderScoreThreshold = override.HeaderScoreThreshold
	}
	if override.MaxRows != 0 {
		merged.MaxRows = override.MaxRows
	}
	if override.ArithmeticToleranceAbs != 0 {
		merged.ArithmeticToleranceAbs = override.ArithmeticToleranceAbs
	}
	if override.ArithmeticToleranceRel != 0 {
		merged.ArithmeticToleranceRel = override.ArithmeticToleranceRel
	}
	if override.ParserVersion != "" {
		merged.ParserVersion = override.ParserVersion
	}
	return merged
}

func (p *Parser) scanFormulas(wb *workbook, sheets []string, opts Options) (hit bool, blocked bool) {
	if opts.FormulaPolicy == FormulaPolicyAllow {
		return false, false
	}
	for _, name := range sheets {
		rows, _, err := wb.rows(name, opts.MaxRows)
		if err != nil {
			continue
		}
		for _, row := range rows {
			for _, c := range row {
				if c.HasFormula || strings.HasPrefix(strings.TrimSpace(c.RawValue), "=") {
					hit = true
					if opts.FormulaPolicy == FormulaPolicyStrict {
						return true, true
					}
				}
			}
		}
	}
	return hit, false
}

func computeConfidence(sel sheetSelectionOutcome, header headerDetectionResult, schema models.SchemaInference) models.StageConfidence {
	sheetScore := 0.0
	for _, s := range sel.Scores {
		if s.name == sel.Selected {
			sheetScore = s.score
			break
		}
	}

	mappingAvg := 0.0
	if len(schema.ColumnMappings) > 0 {
		sum := 0.0
		for _, m := range schema.ColumnMappings {
			sum += m.Confidence
		}
		mappingAvg = sum / float64(len(schema.ColumnMappings))
	}

	overall := (sheetScore + header.Score + mappingAvg) / 3
	return models.StageConfidence{
		Overall:         overall,
		SheetSelection:  sheetScore,
		HeaderDetection: header.Score,
		ColumnMapping:   mappingAvg,
	}
}
