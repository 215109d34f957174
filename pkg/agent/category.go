package agent

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// RefineCategory maps the planner's free-text category onto the configured
// vocabulary. Exact matches win; otherwise the closest entry by normalized
// edit-distance similarity is accepted when it reaches cutoff. Returns ""
// when nothing is close enough, which disables category filtering rather
// than filtering on a hallucinated value.
func RefineCategory(candidate string, categories []string, cutoff float64) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ""
	}

	normalized := strings.ToLower(candidate)

	best := ""
	bestScore := 0.0
	for _, category := range categories {
		score := similarity(normalized, strings.ToLower(category))
		if score == 1.0 {
			return category
		}
		if score > bestScore {
			best = category
			bestScore = score
		}
	}

	if bestScore >= cutoff {
		return best
	}
	return ""
}

// similarity is 1 - dist/maxLen over runes, in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(longest)
}
