package parser

import "sort"

// sheetScore is a single sheet's composed viability score (§4.1 step 2).
type sheetScore struct {
	name  string
	score float64
}

// scoreSheet composes the six weighted factors documented in §4.1 step 2
// from a sheet's dimensions and a density sample of its body rows.
func scoreSheet(rows [][]cell) float64 {
	if len(rows) == 0 {
		return 0
	}

	rowCount := len(rows)
	colCount := 0
	nonEmpty := 0
	total := 0
	numericCols := map[int]bool{}
	textCols := map[int]bool{}

	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
		for i, c := range row {
			total++
			if c.DisplayValue == "" {
				continue
			}
			nonEmpty++
			if isNumericString(c.DisplayValue) {
				numericCols[i] = true
			} else {
				textCols[i] = true
			}
		}
	}

	var score float64
	if nonEmpty > 0 {
		score += 0.1 // base-has-data
	}

	densityRatio := 0.0
	if total > 0 {
		densityRatio = float64(nonEmpty) / float64(total)
	}
	if densityRatio >= 0.5 {
		score += 0.3 * densityRatio
	}

	if rowCount >= 5 && rowCount <= 1000 {
		score += 0.2
	}

	if colCount >= 3 && colCount <= 20 {
		score += 0.1
	}

	if len(numericCols) > 0 {
		score += 0.2
	}
	if len(textCols) > 0 {
		score += 0.1
	}

	return score
}

// sheetSelectionOutcome is the resolved selection, including the
// ambiguity signal needed to decide whether to emit an issue.
type sheetSelectionOutcome struct {
	Selected   string
	Scores     []sheetScore
	Status     string // "single" | "ambiguous" | "none"
}

func selectSheet(scores []sheetScore, threshold, minGap float64) sheetSelectionOutcome {
	var viable []sheetScore
	for _, s := range scores {
		if s.score >= threshold {
			viable = append(viable, s)
		}
	}
	sort.Slice(viable, func(i, j int) bool { return viable[i].score > viable[j].score })

	switch {
	case len(viable) == 0:
		return sheetSelectionOutcome{Status: "none", Scores: scores}
	case len(viable) == 1:
		return sheetSelectionOutcome{Status: "single", Selected: viable[0].name, Scores: scores}
	default:
		if viable[0].score-viable[1].score < minGap {
			return sheetSelectionOutcome{Status: "ambiguous", Selected: viable[0].name, Scores: scores}
		}
		return sheetSelectionOutcome{Status: "single", Selected: viable[0].name, Scores: scores}
	}
}
