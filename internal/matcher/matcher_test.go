package matcher

import (
	"testing"

	"github.com/smilemakc/mbflow/pkg/models"
)

func catalog(names ...string) []models.CatalogEntry {
	var out []models.CatalogEntry
	for i, n := range names {
		out = append(out, models.CatalogEntry{ID: "id-" + n, Name: n, SKU: "", GTIN: ""})
		_ = i
	}
	return out
}

func TestMatchCustomer_ExactResolves(t *testing.T) {
	res := MatchCustomer("Acme Co.", catalog("Acme Co.", "Other Co."))
	if res.ResolutionStatus != models.ResolutionResolved {
		t.Fatalf("status = %v, want resolved", res.ResolutionStatus)
	}
	if res.SelectedID != "id-Acme Co." {
		t.Fatalf("selected = %q", res.SelectedID)
	}
}

func TestMatchCustomer_CloseNamesAreAmbiguous(t *testing.T) {
	res := MatchCustomer("Acme", catalog("Acme Co.", "Acme LLC"))
	if res.ResolutionStatus != models.ResolutionAmbiguous {
		t.Fatalf("status = %v, want ambiguous, candidates=%+v", res.ResolutionStatus, res.Candidates)
	}
	if len(res.Candidates) < 2 {
		t.Fatalf("expected >= 2 ambiguous candidates, got %d", len(res.Candidates))
	}
}

func TestMatchCustomer_NoCandidatesIsNotFound(t *testing.T) {
	res := MatchCustomer("Zyzzyx Corp", catalog("Acme Co.", "Other Co."))
	if res.ResolutionStatus != models.ResolutionNotFound {
		t.Fatalf("status = %v, want not-found", res.ResolutionStatus)
	}
}

func TestMatchItem_ExactGTINWins(t *testing.T) {
	items := []models.CatalogEntry{
		{ID: "a", Name: "Widget", GTIN: "00012345678905"},
		{ID: "b", Name: "Gadget", GTIN: "00099999999999"},
	}
	res := MatchItem("", "00012345678905", "", items)
	if res.ResolutionStatus != models.ResolutionResolved || res.SelectedID != "a" {
		t.Fatalf("result = %+v, want resolved a", res)
	}
}

func TestMatchItem_ConflictingGTINIsAmbiguous(t *testing.T) {
	items := []models.CatalogEntry{
		{ID: "a", Name: "Widget", GTIN: "00012345678905"},
		{ID: "b", Name: "Widget dup", GTIN: "00012345678905"},
	}
	res := MatchItem("", "00012345678905", "", items)
	if res.ResolutionStatus != models.ResolutionAmbiguous {
		t.Fatalf("status = %v, want ambiguous", res.ResolutionStatus)
	}
}

func TestMatchItem_NeverAutoSelectsWithoutExactKey(t *testing.T) {
	items := []models.CatalogEntry{{ID: "a", Name: "Widget"}}
	res := MatchItem("", "", "Widget", items)
	if res.ResolutionStatus == models.ResolutionResolved {
		t.Fatalf("name-fuzzy matching must not auto-resolve")
	}
}
