package parser

import (
	"strconv"
	"testing"

	"github.com/smilemakc/mbflow/pkg/models"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	sheet := "Sheet1"
	for r, row := range rows {
		for c, v := range row {
			colName, _ := excelize.ColumnNumberToName(c + 1)
			cellRef := colName + strconv.Itoa(r+1)
			if err := f.SetCellValue(sheet, cellRef, v); err != nil {
				t.Fatalf("set cell %s: %v", cellRef, err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestParse_HappyPathEnglish(t *testing.T) {
	rows := [][]string{
		{"Customer", "SKU", "Product", "Qty", "Unit Price", "Line Total"},
		{"Acme Co.", "SKU-1", "Widget", "10", "2.50", "25.00"},
		{"Acme Co.", "SKU-2", "Gadget", "4", "5.00", "20.00"},
	}
	blob := buildWorkbook(t, rows)

	p := New(DefaultOptions())
	order, err := p.Parse(CaseMeta{CaseID: "case-1", Tenant: "t1", Filename: "order.xlsx"}, blob, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if models.HasBlocker(order.Issues) {
		t.Fatalf("unexpected blocker issues: %+v", order.Issues)
	}
	if order.Customer.InputName != "Acme Co." {
		t.Fatalf("customer = %q, want Acme Co.", order.Customer.InputName)
	}
	if len(order.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(order.LineItems))
	}
	for _, li := range order.LineItems {
		if len(li.Evidence) == 0 {
			t.Fatalf("line item %+v has no evidence", li)
		}
	}
}

func TestParse_FormulaBlockedUnderStrictPolicy(t *testing.T) {
	f := excelize.NewFile()
	sheet := "Sheet1"
	f.SetCellValue(sheet, "A1", "Customer")
	f.SetCellValue(sheet, "B1", "Qty")
	f.SetCellValue(sheet, "A2", "Acme Co.")
	f.SetCellFormula(sheet, "B2", "A2*2")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	p := New(DefaultOptions())
	order, err := p.Parse(CaseMeta{CaseID: "case-2", Tenant: "t1", Filename: "order.xlsx"}, buf.Bytes(), Options{FormulaPolicy: FormulaPolicyStrict})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(order.Issues) != 1 || order.Issues[0].Code != models.IssueFormulasBlocked {
		t.Fatalf("issues = %+v, want single FORMULAS_BLOCKED", order.Issues)
	}
	if order.Issues[0].Severity != models.SeverityBlocker {
		t.Fatalf("severity = %v, want blocker", order.Issues[0].Severity)
	}
}

func TestNormalizeGTIN_InvalidCheckDigitIsRetainedAsIssue(t *testing.T) {
	digits, valid := normalizeGTIN("1234567890123")
	if digits != "1234567890123" {
		t.Fatalf("digits = %q, want retained value", digits)
	}
	if valid {
		t.Fatalf("expected check-digit validation to fail for an arbitrary 13-digit string")
	}
}

func TestNormalizeNumber_LocaleSeparators(t *testing.T) {
	cases := map[string]float64{
		"1,234.56": 1234.56,
		"1.234,56": 1234.56,
		"۱۲۰":      120,
		"$ 99.00":  99,
	}
	for in, want := range cases {
		got, err := normalizeNumber(in)
		if err != nil {
			t.Fatalf("normalizeNumber(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("normalizeNumber(%q) = %v, want %v", in, got, want)
		}
	}
}
