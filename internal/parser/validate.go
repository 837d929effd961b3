package parser

import (
	"math"
	"strconv"

	"github.com/smilemakc/mbflow/pkg/models"
)

// validateOrder implements §4.1 step 7: arithmetic consistency, required
// fields, and the subtotal-vs-sum-of-lines check. It is also what C5's
// revalidate operation reruns after a user edits the order in place.
func validateOrder(order *models.CanonicalOrder, opts Options) []models.Issue {
	var issues []models.Issue

	if order.Customer.InputName == "" {
		issues = append(issues, models.NewIssue(models.IssueMissingCustomer, []string{"customer.inputName"}, nil))
	}

	sumOfLines := 0.0
	for i := range order.LineItems {
		li := &order.LineItems[i]

		if li.SKU == "" && li.GTIN == "" {
			issues = append(issues, models.NewIssue(models.IssueMissingItemIdentifier,
				[]string{lineField(i, "sku"), lineField(i, "gtin")}, li.Evidence))
		}

		unitPrice, hasPrice := parseSourceNumber(li.UnitPriceSource)
		lineTotal, hasTotal := parseSourceNumber(li.LineTotalSource)
		if hasPrice && hasTotal {
			expected := li.Quantity * unitPrice
			tol := math.Max(opts.ArithmeticToleranceAbs, opts.ArithmeticToleranceRel*math.Abs(lineTotal))
			if math.Abs(expected-lineTotal) > tol {
				issues = append(issues, models.NewIssue(models.IssueArithmeticMismatch,
					[]string{lineField(i, "quantity"), lineField(i, "unitPriceSource"), lineField(i, "lineTotalSource")}, li.Evidence))
			}
		}
		if hasTotal {
			sumOfLines += lineTotal
		}
	}

	if order.Totals != nil {
		tol := math.Max(opts.ArithmeticToleranceAbs, opts.ArithmeticToleranceRel*math.Abs(order.Totals.Subtotal))
		if math.Abs(order.Totals.Subtotal-sumOfLines) > tol {
			issues = append(issues, models.NewIssue(models.IssueSubtotalMismatch, []string{"totals.subtotal"}, order.Totals.Evidence))
		}
	}

	return issues
}

// Revalidate reruns §4.1 step 7 against an in-memory order using the
// default tolerance options. It is the entry point C5's casestore calls
// after an applyPatch edit, per spec §4.5's "revalidate" operation.
func Revalidate(order *models.CanonicalOrder) []models.Issue {
	return validateOrder(order, DefaultOptions())
}

func parseSourceNumber(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := normalizeNumber(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func lineField(i int, field string) string {
	return "lineItems[" + strconv.Itoa(i) + "]." + field
}
