package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// cell is one read-only view of a worksheet cell: its raw stored value,
// its displayed (formatted) value, and its number format string. The
// parser never reads a cell any other way, so every evidence.EvidenceCell
// it emits traces back to exactly this triple.
type cell struct {
	Ref          string
	RawValue     string
	DisplayValue string
	NumberFormat string
	HasFormula   bool
	Formula      string
}

// workbook wraps an opened excelize file with the subset of reads the
// parser pipeline needs, so later stages never touch excelize directly.
type workbook struct {
	f *excelize.File
}

func openWorkbook(r io.Reader) (*workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return &workbook{f: f}, nil
}

func (w *workbook) Close() error {
	return w.f.Close()
}

// sheetNames returns the visible (non-hidden) sheet names, in workbook order.
func (w *workbook) sheetNames() []string {
	var out []string
	for _, name := range w.f.GetSheetList() {
		visible, err := w.f.GetSheetVisible(name)
		if err == nil && !visible {
			continue
		}
		out = append(out, name)
	}
	return out
}

// rows reads up to maxRows rows of sheet, counted from its first row (the
// header row, not yet known here, counts towards maxRows), streaming via excelize's row iterator rather than materializing the
// whole sheet, per spec §9's large-spreadsheet-memory note. It returns the
// rows actually read and whether the sheet had more rows than maxRows.
func (w *workbook) rows(sheet string, maxRows int) (rows [][]cell, truncated bool, err error) {
	iter, err := w.f.Rows(sheet)
	if err != nil {
		return nil, false, fmt.Errorf("iterate sheet %q: %w", sheet, err)
	}
	defer iter.Close()

	rowIdx := 0
	for iter.Next() {
		rowIdx++
		if len(rows) >= maxRows {
			truncated = true
			break
		}
		cols, err := iter.Columns()
		if err != nil {
			return rows, truncated, fmt.Errorf("read row %d of %q: %w", rowIdx, sheet, err)
		}
		rowCells := make([]cell, len(cols))
		for i := range cols {
			colName, _ := excelize.ColumnNumberToName(i + 1)
			ref := fmt.Sprintf("%s%d", colName, rowIdx)
			rowCells[i] = w.readCell(sheet, ref)
		}
		rows = append(rows, rowCells)
	}
	return rows, truncated, nil
}

func (w *workbook) readCell(sheet, ref string) cell {
	raw, _ := w.f.GetCellValue(sheet, ref, excelize.Options{RawCellValue: true})
	display, _ := w.f.GetCellValue(sheet, ref)
	styleID, _ := w.f.GetCellStyle(sheet, ref)
	numFmt := ""
	if style, err := w.f.GetStyle(styleID); err == nil && style != nil && style.CustomNumFmt != nil {
		numFmt = *style.CustomNumFmt
	}
	formula, _ := w.f.GetCellFormula(sheet, ref)
	return cell{
		Ref:          ref,
		RawValue:     raw,
		DisplayValue: display,
		NumberFormat: numFmt,
		HasFormula:   formula != "",
		Formula:      formula,
	}
}

// dimensions returns the used row/column count of sheet without reading
// every cell, for sheet-selection scoring.
func (w *workbook) dimensions(sheet string) (rowCount, colCount int, err error) {
	dim, err := w.f.GetSheetDimension(sheet)
	if err != nil || dim == "" {
		return 0, 0, err
	}
	// excelize returns dimension like "A1:D20"; parse via its own helper.
	coords, err := excelize.CellNameToCoordinates(splitDimensionEnd(dim))
	if err != nil {
		return 0, 0, err
	}
	return coords[1], coords[0], nil
}

// splitDimensionEnd extracts the end-cell reference out of an "A1:D20"
// style dimension string.
func splitDimensionEnd(dim string) string {
	for i := len(dim) - 1; i >= 0; i-- {
		if dim[i] == ':' {
			return dim[i+1:]
		}
	}
	return dim
}
