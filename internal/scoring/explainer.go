package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// ExplainFactor renders a plain-text explanation of a factor score: a
// headline assessment band, the top contributing strengths, and the weakest
// components. Meant for direct display in client UIs and LLM tool output.
func ExplainFactor(result *FactorScoreResult) string {
	if result.Score == nil {
		return fmt.Sprintf("%s: Insufficient data to calculate score.", result.Label)
	}
	score := *result.Score

	var lines []string
	lines = append(lines, fmt.Sprintf("%s: %.0f/100 — %s", result.Label, score, assessmentBand(score)))

	scored := make([]ScoreComponent, 0, len(result.Components))
	for _, c := range result.Components {
		if c.Score != nil {
			scored = append(scored, c)
		}
	}
	// Rank by contribution to the factor score, not raw score alone.
	sort.SliceStable(scored, func(i, j int) bool {
		return *scored[i].Score*scored[i].Weight > *scored[j].Score*scored[j].Weight
	})

	if len(scored) > 0 {
		lines = append(lines, "", "Key strengths:")
		// Only the top two contributors qualify; a lower-ranked component
		// never gets promoted just because it scores well.
		top := scored
		if len(top) > 2 {
			top = top[:2]
		}
		for _, c := range top {
			if *c.Score >= 60 {
				lines = append(lines, componentBullet(c))
			}
		}
	}

	var concerns []ScoreComponent
	for _, c := range scored {
		if *c.Score < 40 {
			concerns = append(concerns, c)
		}
	}
	if len(concerns) > 0 {
		lines = append(lines, "", "Areas of concern:")
		for i, c := range concerns {
			if i >= 2 {
				break
			}
			lines = append(lines, componentBullet(c))
		}
	}

	return strings.Join(lines, "\n")
}

func assessmentBand(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 65:
		return "Strong"
	case score >= 50:
		return "Moderate"
	case score >= 35:
		return "Below average"
	default:
		return "Weak"
	}
}

func componentBullet(c ScoreComponent) string {
	return fmt.Sprintf("  • %s: %s (score: %.0f)", c.Label, formatRawValue(c.RawValue, c.Label), *c.Score)
}

// formatRawValue picks a display format from hints in the metric label:
// percentages for margins/growth/yields, multiples for valuation ratios,
// plain decimals otherwise.
func formatRawValue(raw *float64, label string) string {
	if raw == nil {
		return "N/A"
	}
	lower := strings.ToLower(label)
	for _, hint := range []string{"margin", "growth", "yield", "roe", "roa", "change"} {
		if strings.Contains(lower, hint) {
			return fmt.Sprintf("%.1f%%", *raw)
		}
	}
	for _, hint := range []string{"ratio", "p/e", "p/b", "p/s", "ev/", "peg"} {
		if strings.Contains(lower, hint) {
			return fmt.Sprintf("%.2fx", *raw)
		}
	}
	return fmt.Sprintf("%.2f", *raw)
}
