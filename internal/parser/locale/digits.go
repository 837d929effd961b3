// Package locale folds Persian/Arabic-Indic digits and sniffs Farsi text
// so the parser can read bilingual spreadsheets without guessing values.
package locale

import "strings"

var persianDigits = map[rune]rune{
	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',
}

var arabicIndicDigits = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',
}

// FoldDigits converts Persian and Arabic-Indic digits in s to ASCII
// digits, leaving everything else untouched.
func FoldDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if ascii, ok := persianDigits[r]; ok {
			b.WriteRune(ascii)
			continue
		}
		if ascii, ok := arabicIndicDigits[r]; ok {
			b.WriteRune(ascii)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsFarsi reports whether s has any code point in the Arabic/Farsi
// script blocks, used to sniff the order's language hint.
func ContainsFarsi(s string) bool {
	for _, r := range s {
		if (r >= 0x0600 && r <= 0x06FF) || (r >= 0xFB50 && r <= 0xFDFF) || (r >= 0xFE70 && r <= 0xFEFF) {
			return true
		}
	}
	return false
}
