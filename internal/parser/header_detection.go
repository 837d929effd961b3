package parser

import "strings"

// scoreHeaderCandidate implements §4.1 step 3's header-row scoring for a
// single row, given its own cells and the next row's cells (used for the
// "numeric cells in the next row" signal).
func scoreHeaderCandidate(rowIndex int, row, nextRow []cell) float64 {
	var score float64

	switch {
	case rowIndex == 0:
		score += 0.3
	case rowIndex == 1 || rowIndex == 2:
		score += 0.2
	}

	textCells := 0
	distinctTokens := map[string]bool{}
	for _, c := range row {
		v := strings.TrimSpace(c.DisplayValue)
		if v == "" {
			continue
		}
		if !isNumericString(v) {
			textCells++
			distinctTokens[strings.ToLower(v)] = true
		}
	}

	variety := 0.0
	if len(row) > 0 {
		variety = float64(len(distinctTokens)) / float64(len(row))
	}
	if variety > 0.8 {
		score += 0.3
	}

	if textCells >= 3 {
		score += 0.2
	}

	rowHasNumeric := false
	for _, c := range row {
		if isNumericString(c.DisplayValue) {
			rowHasNumeric = true
			break
		}
	}
	if !rowHasNumeric {
		nextHasNumeric := false
		for _, c := range nextRow {
			if isNumericString(c.DisplayValue) {
				nextHasNumeric = true
				break
			}
		}
		if nextHasNumeric {
			score += 0.2
		}
	}

	matches := countKeywordMatches(row)
	switch {
	case matches >= 2:
		score += 0.2
	case matches == 1:
		score += 0.1
	}

	return score
}

// countKeywordMatches counts how many cells in row match any entry of the
// bilingual header-keyword lexicon.
func countKeywordMatches(row []cell) int {
	count := 0
cells:
	for _, c := range row {
		v := strings.ToLower(strings.TrimSpace(c.DisplayValue))
		if v == "" {
			continue
		}
		for _, keywords := range headerKeywords {
			for _, kw := range keywords {
				if strings.Contains(v, strings.ToLower(kw)) {
					count++
					continue cells
				}
			}
		}
	}
	return count
}

// headerDetectionResult is the outcome of scanning the leading rows for
// the most likely header row.
type headerDetectionResult struct {
	RowIndex int // 0-based index into the scanned rows, -1 if none found
	Score    float64
}

func detectHeaderRow(rows [][]cell, maxScan int) headerDetectionResult {
	best := headerDetectionResult{RowIndex: -1}
	limit := maxScan
	if limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		var next []cell
		if i+1 < len(rows) {
			next = rows[i+1]
		}
		score := scoreHeaderCandidate(i, rows[i], next)
		if score > best.Score {
			best = headerDetectionResult{RowIndex: i, Score: score}
		}
	}
	return best
}
