package models

import (
	"strings"
	"time"
)

// Difficulty is the closed set of item difficulty levels
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyUnknown      Difficulty = ""
)

// ParseDifficulty normalizes case and surrounding space.
// Anything outside the three levels maps to DifficultyUnknown.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyBeginner:
		return DifficultyBeginner
	case DifficultyIntermediate:
		return DifficultyIntermediate
	case DifficultyAdvanced:
		return DifficultyAdvanced
	default:
		return DifficultyUnknown
	}
}

// Known reports whether d is one of the three levels
func (d Difficulty) Known() bool {
	return d != DifficultyUnknown
}

// Item is the minimal learning item row the engine needs for category counts
type Item struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	CategoryID string     `json:"category_id" db:"category_id"`
	Title      string     `json:"title" db:"title"`
	Difficulty Difficulty `json:"difficulty" db:"difficulty"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// DailyActivity is the per-day rollup shown on the dashboard chart
type DailyActivity struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Date       time.Time `json:"date" db:"date"`
	Points     int       `json:"points" db:"points"`
	ItemsCount int       `json:"items_count" db:"items_count"`
}

// CompletionResult is returned by every stat-mutating event
type CompletionResult struct {
	Stats         *UserStats        `json:"stats"`
	PointsAwarded int               `json:"points_awarded"`
	Badges        *EvaluationResult `json:"badges"`
}

// ==== REQUEST MODELS ====

// CompletionRequest marks a learning item as finished
type CompletionRequest struct {
	Difficulty string `json:"difficulty" binding:"required"`
}

// ItemCreatedRequest reports a newly created learning item
type ItemCreatedRequest struct {
	ID         string `json:"id"`
	CategoryID string `json:"category_id" binding:"required"`
	Title      string `json:"title" binding:"required,max=255"`
	Difficulty string `json:"difficulty"`
}
