package parser

import (
	"strconv"
	"strings"

	"github.com/smilemakc/mbflow/pkg/models"
)

// inferSchema resolves every column's best candidate into the final
// SchemaInference block and a columnIndex used by extraction, applying a
// simple greedy assignment: columns are bound to their best-scoring
// unclaimed canonical field, highest confidence first.
func (p *Parser) inferSchema(headerRow []cell, bodyRows [][]cell, sheet string, headerRowIdx int) (models.SchemaInference, columnIndex, []models.Issue) {
	type binding struct {
		colIdx     int
		candidates []fieldCandidate
	}

	var bindings []binding
	for i, h := range headerRow {
		body := columnBody(bodyRows, i)
		cands := inferColumn(h.DisplayValue, i, len(headerRow), body)
		if len(cands) > 0 {
			bindings = append(bindings, binding{colIdx: i, candidates: cands})
		}
	}

	claimedField := map[string]bool{}
	claimedCol := map[int]bool{}
	var mappings []models.ColumnMapping
	cols := newColumnIndex()

	// Greedy: repeatedly pick the highest-confidence (column, field) pair
	// among all unclaimed columns and unclaimed fields.
	for {
		bestScore := -1.0
		bestCol := -1
		bestField := ""
		bestMethod := models.MethodFuzzy
		var bestCandidates []fieldCandidate

		for _, b := range bindings {
			if claimedCol[b.colIdx] {
				continue
			}
			for _, c := range b.candidates {
				if claimedField[c.Field] {
					continue
				}
				if c.Confidence > bestScore {
					bestScore = c.Confidence
					bestCol = b.colIdx
					bestField = c.Field
					bestMethod = methodOf(c.Method)
					bestCandidates = b.candidates
				}
			}
		}

		if bestCol == -1 || bestScore <= 0 {
			break
		}

		claimedCol[bestCol] = true
		claimedField[bestField] = true
		setColumnIndex(&cols, bestField, bestCol)

		var runnerUps []models.FieldCandidate
		for _, c := range bestCandidates {
			if c.Field == bestField {
				continue
			}
			runnerUps = append(runnerUps, models.FieldCandidate{CanonicalField: c.Field, Confidence: c.Confidence})
		}

		colName, _ := columnLetter(bestCol)
		mappings = append(mappings, models.ColumnMapping{
			CanonicalField: bestField,
			SourceHeader:   headerRow[bestCol].DisplayValue,
			SourceColumn:   colName,
			Confidence:     bestScore,
			Method:         bestMethod,
			Candidates:     runnerUps,
		})
	}

	region := tableRegion(sheet, headerRowIdx, len(headerRow), len(bodyRows))
	schema := models.SchemaInference{
		SelectedSheet:  sheet,
		TableRegion:    region,
		HeaderRow:      headerRowIdx + 1, // 1-based
		ColumnMappings: mappings,
	}

	return schema, cols, nil
}

func methodOf(m string) models.MappingMethod {
	switch m {
	case "dictionary":
		return models.MethodDictionary
	case "fuzzy":
		return models.MethodFuzzy
	default:
		return models.MethodFuzzy
	}
}

func setColumnIndex(cols *columnIndex, field string, idx int) {
	switch field {
	case "sku":
		cols.sku = idx
	case "gtin":
		cols.gtin = idx
	case "productName":
		cols.productName = idx
	case "quantity":
		cols.quantity = idx
	case "unitPrice":
		cols.unitPrice = idx
	case "lineTotal":
		cols.lineTotal = idx
	case "customer":
		cols.customer = idx
	case "subtotal":
		cols.subtotal = idx
	case "tax":
		cols.tax = idx
	case "total":
		cols.total = idx
	}
}

func columnBody(rows [][]cell, colIdx int) []cell {
	var out []cell
	for _, row := range rows {
		if colIdx < len(row) {
			out = append(out, row[colIdx])
		}
	}
	return out
}

func columnLetter(idx int) (string, error) {
	n := idx + 1
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters), nil
}

func tableRegion(sheet string, headerRowIdx, colCount, bodyRowCount int) string {
	endCol, _ := columnLetter(colCount - 1)
	if endCol == "" {
		endCol = "A"
	}
	startRow := headerRowIdx + 1
	endRow := startRow + bodyRowCount
	return "A" + strconv.Itoa(startRow) + ":" + endCol + strconv.Itoa(endRow)
}

// extractTotals fills order.Totals from a row classified as "total",
// reading whichever of subtotal/tax/total columns are mapped.
func (p *Parser) extractTotals(row []cell, cols columnIndex, order *models.CanonicalOrder) {
	if order.Totals == nil {
		order.Totals = &models.OrderTotals{}
	}
	read := func(idx int) (float64, cell, bool) {
		if idx < 0 || idx >= len(row) {
			return 0, cell{}, false
		}
		c := row[idx]
		if strings.TrimSpace(c.DisplayValue) == "" {
			return 0, cell{}, false
		}
		v, err := normalizeNumber(c.DisplayValue)
		return v, c, err == nil
	}

	if v, c, ok := read(cols.subtotal); ok {
		order.Totals.Subtotal = v
		order.Totals.Evidence = append(order.Totals.Evidence, evidenceFromCell(c))
	}
	if v, c, ok := read(cols.tax); ok {
		order.Totals.Tax = v
		order.Totals.Evidence = append(order.Totals.Evidence, evidenceFromCell(c))
	}
	if v, c, ok := read(cols.total); ok {
		order.Totals.Grand = v
		order.Totals.Evidence = append(order.Totals.Evidence, evidenceFromCell(c))
	}
}

// extractCustomer fills order.Customer from the mapped customer column,
// taking the first non-empty body cell (a sales-order spreadsheet of this
// shape states the customer once, not per line).
func (p *Parser) extractCustomer(headerRow []cell, bodyRows [][]cell, cols columnIndex, sheet string, order *models.CanonicalOrder) {
	if cols.customer < 0 {
		return
	}
	for _, row := range bodyRows {
		if cols.customer >= len(row) {
			continue
		}
		c := row[cols.customer]
		v := strings.TrimSpace(c.DisplayValue)
		if v == "" {
			continue
		}
		order.Customer = models.CustomerRef{
			InputName:        normalizeString(v),
			ResolutionStatus: models.ResolutionUnresolved,
			Evidence:         []models.EvidenceCell{evidenceFromCell(c)},
		}
		return
	}
}
