package core

import (
	"math"

	"tila/pkg/models"
)

// Flat rewards per event
const (
	PointsCreateItem   = 10
	PointsCompleteItem = 100
	PointsCompleteTodo = 25
)

var difficultyMultiplier = map[models.Difficulty]float64{
	models.DifficultyBeginner:     1.0,
	models.DifficultyIntermediate: 1.5,
	models.DifficultyAdvanced:     2.0,
}

// Multiplier returns the completion multiplier, 1.0 for unknown difficulties
func Multiplier(d models.Difficulty) float64 {
	if m, ok := difficultyMultiplier[d]; ok {
		return m
	}
	return 1.0
}

// PointsForCompletion is round-half-up(PointsCompleteItem * multiplier)
func PointsForCompletion(d models.Difficulty) int {
	return int(math.Floor(float64(PointsCompleteItem)*Multiplier(d) + 0.5))
}

// IncrementDifficultyCount bumps the bucket for d. Unknown difficulties touch nothing.
func IncrementDifficultyCount(stats *models.UserStats, d models.Difficulty) bool {
	switch d {
	case models.DifficultyBeginner:
		stats.BeginnerCount++
	case models.DifficultyIntermediate:
		stats.IntermediateCount++
	case models.DifficultyAdvanced:
		stats.AdvancedCount++
	default:
		return false
	}
	return true
}

// ProgressPercentage is min(100, round(current/required*100)); a zero requirement is complete
func ProgressPercentage(current, required int) int {
	if required <= 0 {
		return 100
	}
	if current <= 0 {
		return 0
	}
	p := int(math.Floor(float64(current)/float64(required)*100 + 0.5))
	if p > 100 {
		return 100
	}
	return p
}
