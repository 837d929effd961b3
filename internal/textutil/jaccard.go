package textutil

import "strings"

// Tokenize lower-cases and splits s on whitespace and common punctuation,
// used as the token set for Jaccard similarity.
func Tokenize(s string) []string {
	s = strings.ToLower(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', ',', '.', '-', '_', '/', '\\', '(', ')':
			return true
		}
		return false
	})
	return fields
}

// JaccardSimilarity returns |A∩B| / |A∪B| over the token sets of a and b.
func JaccardSimilarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, t := range Tokenize(s) {
		out[t] = true
	}
	return out
}
