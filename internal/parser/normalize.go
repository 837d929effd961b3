package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/smilemakc/mbflow/internal/parser/locale"
)

var currencySymbolPattern = regexp.MustCompile(`[$€£¥﷼]|USD|EUR|GBP|IRR|IRT`)
var nonDigitSeparatorPattern = regexp.MustCompile(`[^0-9.,\-]`)

// isNumericString reports whether s looks like a number once currency
// symbols and locale-specific separators are stripped. Used by sheet
// scoring and header detection; it does not itself normalize the value.
func isNumericString(s string) bool {
	_, err := normalizeNumber(s)
	return err == nil && strings.TrimSpace(s) != ""
}

// normalizeNumber implements §4.1 step 6's number normalization: folds
// Persian/Arabic-Indic digits, strips currency symbols, and disambiguates
// the decimal separator using the common "1,234.56" vs "1.234,56"
// heuristic (whichever separator appears last, and only once, is the
// decimal point).
func normalizeNumber(raw string) (float64, error) {
	s := locale.FoldDigits(raw)
	s = currencySymbolPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = nonDigitSeparatorPattern.ReplaceAllString(s, "")
	if s == "" {
		return 0, strconv.ErrSyntax
	}

	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma == -1 && lastDot == -1:
		// plain integer
	case lastComma > lastDot && strings.Count(s, ",") > 1:
		// repeated comma: thousands separators only, "1,234,567"
		s = strings.ReplaceAll(s, ",", "")
	case lastComma > lastDot:
		// comma is the decimal separator: "1.234,56" -> strip thousands dots
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot > lastComma && strings.Count(s, ".") > 1:
		// repeated dot: thousands separators only, "1.234.567"
		s = strings.ReplaceAll(s, ".", "")
	case lastDot > lastComma:
		// dot is the decimal separator: "1,234.56" -> strip thousands commas
		s = strings.ReplaceAll(s, ",", "")
	}

	return strconv.ParseFloat(s, 64)
}

// normalizeSKU upper-cases and trims a SKU value, per §4.1 step 6.
func normalizeSKU(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

var nonDigitPattern = regexp.MustCompile(`[^0-9]`)

// normalizeGTIN strips non-digits and reports whether the result passes
// length (8/12/13/14) and Mod-10 check-digit validation. The raw digits
// are always returned so the caller can retain the value even on failure
// (§4.1 step 6: record value but mark GTIN_INVALID).
func normalizeGTIN(raw string) (digits string, valid bool) {
	digits = nonDigitPattern.ReplaceAllString(raw, "")
	switch len(digits) {
	case 8, 12, 13, 14:
	default:
		return digits, false
	}
	return digits, gtinCheckDigitValid(digits)
}

// gtinCheckDigitValid implements the standard GS1 Mod-10 check-digit
// algorithm: from the rightmost digit (the check digit itself excluded),
// alternate multipliers of 3 and 1 starting with 3 on the digit
// immediately to the left of the check digit.
func gtinCheckDigitValid(digits string) bool {
	if len(digits) == 0 {
		return false
	}
	check := int(digits[len(digits)-1] - '0')
	sum := 0
	multiplier := 3
	for i := len(digits) - 2; i >= 0; i-- {
		d := int(digits[i] - '0')
		sum += d * multiplier
		if multiplier == 3 {
			multiplier = 1
		} else {
			multiplier = 3
		}
	}
	computed := (10 - (sum % 10)) % 10
	return computed == check
}

// normalizeString trims and collapses internal whitespace while
// preserving all other Unicode content, per §4.1 step 6.
func normalizeString(raw string) string {
	fields := strings.Fields(raw)
	return strings.Join(fields, " ")
}
