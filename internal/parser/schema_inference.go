package parser

import (
	"strings"

	"github.com/smilemakc/mbflow/internal/textutil"
)

// inferColumn computes the best canonical-field candidate for one column,
// implementing §4.1 step 4: a dictionary lookup, an edit-distance fuzzy
// fallback against the lexicon, and a type-of-column-body boost, combined
// with a small positional prior. Candidates are returned sorted best-first.
func inferColumn(header string, colIndex, colCount int, body []cell) []fieldCandidate {
	normalizedHeader := strings.ToLower(strings.TrimSpace(header))

	scores := map[string]float64{}
	methods := map[string]string{}

	for field, keywords := range headerKeywords {
		best := 0.0
		method := ""
		for _, kw := range keywords {
			kwLower := strings.ToLower(kw)
			if normalizedHeader == kwLower {
				best, method = 1.0, "dictionary"
				break
			}
			if strings.Contains(normalizedHeader, kwLower) {
				if 0.85 > best {
					best, method = 0.85, "dictionary"
				}
				continue
			}
			sim := textutil.NormalizedSimilarity(normalizedHeader, kwLower)
			if sim > best {
				best, method = sim*0.75, "fuzzy"
			}
		}
		if best > 0 {
			scores[field] = best
			methods[field] = method
		}
	}

	bodyBoost := columnBodyBoost(body)
	for field, boost := range bodyBoost {
		scores[field] += boost
		if methods[field] == "" {
			methods[field] = "fuzzy"
		}
	}

	positional := positionalPrior(colIndex, colCount)
	for field, boost := range positional {
		scores[field] += boost
	}

	var out []fieldCandidate
	for field, score := range scores {
		if score <= 0 {
			continue
		}
		if score > 1 {
			score = 1
		}
		out = append(out, fieldCandidate{Field: field, Confidence: score, Method: methods[field]})
	}

	sortCandidatesDesc(out)
	return out
}

// fieldCandidate mirrors pkg/models.FieldCandidate plus the method
// used, kept local until the caller decides which candidate wins.
type fieldCandidate struct {
	Field      string
	Confidence float64
	Method     string
}

func sortCandidatesDesc(cands []fieldCandidate) {
	for i := 1; i < len(cands); i++ {
		// equal confidences are ordered by field name, so the result does
		// not depend on map iteration order
		for j := i; j > 0 && (cands[j].Confidence > cands[j-1].Confidence ||
			(cands[j].Confidence == cands[j-1].Confidence && cands[j].Field < cands[j-1].Field)); j-- {
			cands[j], cands[j-1] = cands[j-1], cands[j]
		}
	}
}

// columnBodyBoost inspects a sample of a column's body cells and boosts
// numeric-typed fields when the column is mostly numeric, and text-typed
// fields (customer, productName) when it is mostly text. GTIN additionally
// requires 8-14 digit numeric-looking values.
func columnBodyBoost(body []cell) map[string]float64 {
	boost := map[string]float64{}
	if len(body) == 0 {
		return boost
	}

	numeric := 0
	gtinLike := 0
	for _, c := range body {
		v := strings.TrimSpace(c.DisplayValue)
		if v == "" {
			continue
		}
		if isNumericString(v) {
			numeric++
		}
		digits, _ := normalizeGTIN(v)
		if n := len(digits); n >= 8 && n <= 14 {
			gtinLike++
		}
	}

	ratio := float64(numeric) / float64(len(body))
	if ratio > 0.7 {
		boost["quantity"] += 0.15
		boost["unitPrice"] += 0.1
		boost["lineTotal"] += 0.1
		boost["subtotal"] += 0.1
		boost["tax"] += 0.1
		boost["total"] += 0.1
	} else {
		boost["productName"] += 0.1
		boost["customer"] += 0.1
		boost["sku"] += 0.05
	}

	if float64(gtinLike)/float64(len(body)) > 0.7 {
		boost["gtin"] += 0.2
	}

	return boost
}

// positionalPrior adds a small bias for canonical fields that conventionally
// appear near the start (identifiers, names) or end (totals) of a row.
func positionalPrior(colIndex, colCount int) map[string]float64 {
	prior := map[string]float64{}
	if colCount <= 1 {
		return prior
	}
	relative := float64(colIndex) / float64(colCount-1)
	if relative < 0.35 {
		prior["sku"] += 0.05
		prior["gtin"] += 0.05
		prior["productName"] += 0.05
		prior["customer"] += 0.05
	}
	if relative > 0.65 {
		prior["lineTotal"] += 0.05
		prior["subtotal"] += 0.05
		prior["tax"] += 0.05
		prior["total"] += 0.05
	}
	return prior
}
