package scheduler

import (
	"math"

	"github.com/arnavshah/shift-solver-api/pkg/models"
)

// CalculateFairnessScore returns a percentage (0-100) representing how evenly
// load is distributed. 100% is perfectly fair (Standard Deviation = 0).
func CalculateFairnessScore(loads map[string]models.PersonLoad) float64 {
	if len(loads) == 0 {
		return 100.0
	}

	var sum float64
	for _, l := range loads {
		sum += l.LoadScore
	}
	if sum == 0 {
		return 100.0
	}

	mean := sum / float64(len(loads))

	var varianceSum float64
	for _, l := range loads {
		diff := l.LoadScore - mean
		varianceSum += diff * diff
	}
	stdDev := math.Sqrt(varianceSum / float64(len(loads)))

	// 100% means SD is 0. 0% means SD is >= mean.
	score := (1.0 - (stdDev / mean)) * 100.0
	if score < 0 {
		return 0.0
	}
	return score
}
