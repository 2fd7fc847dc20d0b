package outcomes

import "strconv"

// Normalize maps (earned, possible) to the LTI score range [0.0, 1.0]:
// earned/possible, with possible<=0 yielding 0 and out-of-range results
// clamped.
func Normalize(earned, possible float64) float64 {
	if possible <= 0 {
		return 0
	}
	score := earned / possible
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// FormatScore renders a normalized score with fixed decimal precision, the
// form Tool Consumers receive in textString.
func FormatScore(score float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return strconv.FormatFloat(score, 'f', precision, 64)
}
