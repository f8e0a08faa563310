package metrics

import "math"

const (
	scoreMin = 0
	scoreMax = 100
)

// Contribution is a category's share of the green score: 100 minus the
// difference of totals in raw units, floored at zero. Savings push it above
// 100; GreenScore clamps the mean.
func Contribution(a Aggregates) float64 {
	return math.Max(0, 100-a.Delta())
}

// GreenScore is the rounded mean of the three contributions clamped to
// [0,100].
func GreenScore(energy, water, waste Aggregates) int {
	mean := (Contribution(energy) + Contribution(water) + Contribution(waste)) / 3
	score := int(math.Round(mean))
	if score < scoreMin {
		return scoreMin
	}
	if score > scoreMax {
		return scoreMax
	}
	return score
}

// ScoreFor computes the green score of a snapshot.
func ScoreFor(s Snapshot) int {
	return GreenScore(Aggregate(s.Energy), Aggregate(s.Water), Aggregate(s.Waste))
}

// Rating is the label shown next to a score.
func Rating(score int) string {
	switch {
	case score >= 75:
		return "Excellent"
	case score >= 50:
		return "Good"
	default:
		return "Needs Improvement"
	}
}
