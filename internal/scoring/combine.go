package scoring

import "math"

// HeuristicCeiling is the divisor that rescales a raw heuristic score onto 0-100.
// It equals MaxHeuristicScore so that a saturated heuristic maps to 100.
const HeuristicCeiling = MaxHeuristicScore

// Weights of the blended score
const (
	HeuristicWeight = 0.4
	RemoteWeight    = 0.6
)

// NormalizeHeuristic rescales a raw 0-70 heuristic score onto 0-100
func NormalizeHeuristic(raw int) int {
	n := int(math.Round(float64(raw) * 100 / HeuristicCeiling))
	return clamp(n, 0, 100)
}

// CombineScores blends a normalized heuristic score with a remote assessment.
// A remote score that is NaN or infinite means no assessment is available and the
// heuristic score is returned unchanged.
func CombineScores(heuristicNormalized int, remoteScore float64) int {
	if math.IsNaN(remoteScore) || math.IsInf(remoteScore, 0) {
		return heuristicNormalized
	}
	return int(math.Round(float64(heuristicNormalized)*HeuristicWeight + remoteScore*RemoteWeight))
}

// NoRemoteScore is the sentinel for an absent remote assessment
func NoRemoteScore() float64 {
	return math.NaN()
}
