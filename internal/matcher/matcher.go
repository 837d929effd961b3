// Package matcher fuzzy-matches extracted customer and item strings
// against the accounting client's cached catalogs (spec §4.2). Matching is
// deterministic and never auto-selects in the ambiguous band: a human
// selection is required whenever more than one candidate is plausible.
package matcher

import (
	"sort"
	"strings"

	"github.com/smilemakc/mbflow/internal/textutil"
	"github.com/smilemakc/mbflow/pkg/models"
)

// Candidate is one scored match against a catalog entry.
type Candidate struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
}

// Result is the outcome of matching a single input string.
type Result struct {
	ResolutionStatus models.ResolutionStatus `json:"resolutionStatus"`
	Candidates       []Candidate             `json:"candidates"`
	SelectedID       string                  `json:"selectedId,omitempty"`
	Confidence       float64                 `json:"confidence"`
	Reason           string                  `json:"reason"`
}

const (
	resolvedThreshold      = 0.90
	resolvedGap            = 0.10
	ambiguousThreshold     = 0.60
	ambiguousGapWithinBand = 0.10
)

// MatchCustomer scores inputName against every customer catalog entry,
// implementing §4.2's exact/case-insensitive/Jaccard+edit-distance ladder.
func MatchCustomer(inputName string, customers []models.CatalogEntry) Result {
	scored := scoreAgainstNames(inputName, customers)
	return classify(scored, "customer")
}

// MatchItem resolves a line item by exact GTIN, then exact SKU, against the
// item catalog. Name-fuzzy matching is disabled by default per spec §4.2.
func MatchItem(sku, gtin, name string, items []models.CatalogEntry) Result {
	if gtin != "" {
		var matches []models.CatalogEntry
		for _, it := range items {
			if it.GTIN != "" && it.GTIN == gtin {
				matches = append(matches, it)
			}
		}
		if res, ok := resolveExactMatches(matches, "gtin"); ok {
			return res
		}
	}

	if sku != "" {
		normalizedSKU := strings.ToUpper(strings.TrimSpace(sku))
		var matches []models.CatalogEntry
		for _, it := range items {
			if it.SKU != "" && strings.EqualFold(it.SKU, normalizedSKU) {
				matches = append(matches, it)
			}
		}
		if res, ok := resolveExactMatches(matches, "sku"); ok {
			return res
		}
	}

	return Result{
		ResolutionStatus: models.ResolutionNotFound,
		Reason:           "no exact gtin or sku match; name-fuzzy matching is disabled by default",
	}
}

func resolveExactMatches(matches []models.CatalogEntry, by string) (Result, bool) {
	switch len(matches) {
	case 0:
		return Result{}, false
	case 1:
		return Result{
			ResolutionStatus: models.ResolutionResolved,
			SelectedID:       matches[0].ID,
			Confidence:       1.0,
			Reason:           "exact " + by + " match",
			Candidates:       []Candidate{{ID: matches[0].ID, Name: matches[0].Name, Score: 1.0}},
		}, true
	default:
		var cands []Candidate
		for _, m := range matches {
			cands = append(cands, Candidate{ID: m.ID, Name: m.Name, Score: 1.0})
		}
		return Result{
			ResolutionStatus: models.ResolutionAmbiguous,
			Candidates:       cands,
			Reason:           "multiple catalog entries share the same " + by,
		}, true
	}
}

func scoreAgainstNames(input string, entries []models.CatalogEntry) []Candidate {
	normalizedInput := normalizeName(input)
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		score := scorePair(normalizedInput, normalizeName(e.Name))
		out = append(out, Candidate{ID: e.ID, Name: e.Name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func scorePair(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if strings.EqualFold(a, b) {
		return 0.95
	}
	jaccard := textutil.JaccardSimilarity(a, b)
	edit := textutil.NormalizedSimilarity(a, b)
	combined := 0.5*jaccard + 0.5*edit
	if combined > 0.9 {
		combined = 0.9
	}
	return combined
}

func classify(scored []Candidate, reasonSubject string) Result {
	if len(scored) == 0 {
		return Result{ResolutionStatus: models.ResolutionNotFound, Reason: "no catalog entries to match against"}
	}

	best := scored[0]
	gap := 1.0
	if len(scored) > 1 {
		gap = best.Score - scored[1].Score
	}

	switch {
	case best.Score >= resolvedThreshold && gap >= resolvedGap:
		return Result{
			ResolutionStatus: models.ResolutionResolved,
			SelectedID:       best.ID,
			Confidence:       best.Score,
			Candidates:       scored,
			Reason:           "best " + reasonSubject + " match exceeds threshold with a clear gap to the runner-up",
		}
	case best.Score >= ambiguousThreshold && len(candidatesWithinGap(scored, ambiguousGapWithinBand)) > 1:
		return Result{
			ResolutionStatus: models.ResolutionAmbiguous,
			Candidates:       candidatesWithinGap(scored, ambiguousGapWithinBand),
			Confidence:       best.Score,
			Reason:           "multiple " + reasonSubject + " candidates within the ambiguous band",
		}
	default:
		return Result{
			ResolutionStatus: models.ResolutionNotFound,
			Candidates:       topN(scored, 5),
			Confidence:       best.Score,
			Reason:           "no " + reasonSubject + " candidate reached the ambiguous threshold",
		}
	}
}

func candidatesWithinGap(scored []Candidate, gap float64) []Candidate {
	if len(scored) == 0 {
		return nil
	}
	top := scored[0].Score
	var out []Candidate
	for _, c := range scored {
		if top-c.Score <= gap {
			out = append(out, c)
		}
	}
	return out
}

func topN(scored []Candidate, n int) []Candidate {
	if len(scored) <= n {
		return scored
	}
	return scored[:n]
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
