package parser

import (
	"strings"

	"github.com/smilemakc/mbflow/pkg/models"
)

// classifyRow implements §4.1 step 5's row classification: total (keyword
// match or multiple numeric cells without sku/product), data, or empty.
func classifyRow(row []cell, skuCol, productCol int) string {
	empty := true
	numericCount := 0
	hasIdentifier := false

	for i, c := range row {
		v := strings.TrimSpace(c.DisplayValue)
		if v == "" {
			continue
		}
		empty = false
		if isNumericString(v) {
			numericCount++
		}
		if i == skuCol || i == productCol {
			hasIdentifier = true
		}
		lower := strings.ToLower(v)
		for _, kw := range totalRowKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return "total"
			}
		}
	}

	if empty {
		return "empty"
	}
	if numericCount >= 2 && !hasIdentifier {
		return "total"
	}
	return "data"
}

// extractLineItem builds one LineItem from a classified data row given the
// resolved column mapping. sourceRowNumber is the 1-based row number in the
// sheet (header row + row offset), used for evidence and user-facing
// references.
func extractLineItem(row []cell, rowIndex, sourceRowNumber int, cols columnIndex) (models.LineItem, []models.Issue) {
	li := models.LineItem{RowIndex: rowIndex, SourceRowNumber: sourceRowNumber}
	var issues []models.Issue

	get := func(idx int) (cell, bool) {
		if idx < 0 || idx >= len(row) {
			return cell{}, false
		}
		return row[idx], true
	}

	if c, ok := get(cols.sku); ok && strings.TrimSpace(c.DisplayValue) != "" {
		li.SKU = normalizeSKU(c.DisplayValue)
		li.Evidence = append(li.Evidence, evidenceFromCell(c))
	}
	if c, ok := get(cols.gtin); ok && strings.TrimSpace(c.DisplayValue) != "" {
		digits, valid := normalizeGTIN(c.DisplayValue)
		li.GTIN = digits
		li.Evidence = append(li.Evidence, evidenceFromCell(c))
		if !valid {
			issues = append(issues, models.NewIssue(models.IssueGTINInvalid, []string{"lineItems[].gtin"}, []models.EvidenceCell{evidenceFromCell(c)}))
		}
	}
	if c, ok := get(cols.productName); ok && strings.TrimSpace(c.DisplayValue) != "" {
		li.ProductName = normalizeString(c.DisplayValue)
		li.Evidence = append(li.Evidence, evidenceFromCell(c))
	}
	if c, ok := get(cols.quantity); ok && strings.TrimSpace(c.DisplayValue) != "" {
		if qty, err := normalizeNumber(c.DisplayValue); err == nil {
			li.Quantity = qty
			li.Evidence = append(li.Evidence, evidenceFromCell(c))
			if qty < 0 {
				issues = append(issues, models.NewIssue(models.IssueNegativeQuantity, []string{"lineItems[].quantity"}, []models.EvidenceCell{evidenceFromCell(c)}))
			}
		}
	}
	if c, ok := get(cols.unitPrice); ok && strings.TrimSpace(c.DisplayValue) != "" {
		li.UnitPriceSource = c.DisplayValue
		li.Evidence = append(li.Evidence, evidenceFromCell(c))
	}
	if c, ok := get(cols.lineTotal); ok && strings.TrimSpace(c.DisplayValue) != "" {
		li.LineTotalSource = c.DisplayValue
		li.Evidence = append(li.Evidence, evidenceFromCell(c))
	}

	return li, issues
}

func evidenceFromCell(c cell) models.EvidenceCell {
	return models.EvidenceCell{
		Cell:         c.Ref,
		RawValue:     c.RawValue,
		DisplayValue: c.DisplayValue,
		NumberFormat: c.NumberFormat,
	}
}

// columnIndex resolves each canonical field to its source column index
// (-1 if unmapped), derived from the accepted schema-inference mappings.
type columnIndex struct {
	sku, gtin, productName, quantity, unitPrice, lineTotal, customer, subtotal, tax, total int
}

func newColumnIndex() columnIndex {
	return columnIndex{-1, -1, -1, -1, -1, -1, -1, -1, -1, -1}
}
