package focus

import "math"

// RecencyWeight halves every halfLife turns. The newest turn (turnsAgo 0)
// weighs exactly 1.
func RecencyWeight(turnsAgo, halfLife int) float64 {
	if halfLife < 1 {
		halfLife = 1
	}
	return math.Pow(0.5, float64(turnsAgo)/float64(halfLife))
}

// Score blends relevance and recency. Negative similarity counts as zero and
// recency never scales relevance below 25%.
func Score(similarity float64, position, total, halfLife int) float64 {
	turnsAgo := (total - 1) - position
	recency := RecencyWeight(turnsAgo, halfLife)
	return math.Max(0, similarity) * (0.25 + 0.75*recency)
}
