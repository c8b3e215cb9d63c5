// Package models - Gamification System
// Domain types shared by the engine, the stores and the transports:
//   - Per-user aggregate counters (UserStats)
//   - Badge definitions with a single threshold criterion
//   - Award records and evaluation results
//   - Badge progress views
package models

import (
	"fmt"
	"strings"
	"time"
)

// UserStats is the denormalized per-user projection read by streak and badge logic
type UserStats struct {
	UserID            string     `json:"user_id" db:"user_id"`
	TotalPoints       int        `json:"total_points" db:"total_points"`
	CurrentStreak     int        `json:"current_streak" db:"current_streak"` // Days
	LongestStreak     int        `json:"longest_streak" db:"longest_streak"`
	LastActivityDate  *time.Time `json:"last_activity_date,omitempty" db:"last_activity_date"`
	Learnings         int        `json:"learnings" db:"learnings"`
	UniqueCategories  int        `json:"unique_categories" db:"unique_categories"`
	BeginnerCount     int        `json:"beginner_count" db:"beginner_count"`
	IntermediateCount int        `json:"intermediate_count" db:"intermediate_count"`
	AdvancedCount     int        `json:"advanced_count" db:"advanced_count"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// NewUserStats returns the all-zero projection created at registration
func NewUserStats(userID string) *UserStats {
	return &UserStats{UserID: userID, UpdatedAt: time.Now()}
}

// Clone returns a deep copy
func (s *UserStats) Clone() *UserStats {
	c := *s
	if s.LastActivityDate != nil {
		t := *s.LastActivityDate
		c.LastActivityDate = &t
	}
	return &c
}

// StatField names a UserStats counter usable as a badge criterion
type StatField string

// Criterion keys. Spellings follow the catalog files (mixed snake/camel case).
const (
	StatLearnings         StatField = "learnings"
	StatTotalPoints       StatField = "total_points"
	StatCurrentStreak     StatField = "current_streak"
	StatLongestStreak     StatField = "longest_streak"
	StatUniqueCategories  StatField = "uniqueCategories"
	StatBeginnerCount     StatField = "beginnerCount"
	StatIntermediateCount StatField = "intermediateCount"
	StatAdvancedCount     StatField = "advancedCount"
	StatUnknown           StatField = ""
)

var statFields = map[string]StatField{
	"learnings":          StatLearnings,
	"total_points":       StatTotalPoints,
	"current_streak":     StatCurrentStreak,
	"longest_streak":     StatLongestStreak,
	"uniquecategories":   StatUniqueCategories,
	"unique_categories":  StatUniqueCategories,
	"beginnercount":      StatBeginnerCount,
	"beginner_count":     StatBeginnerCount,
	"intermediatecount":  StatIntermediateCount,
	"intermediate_count": StatIntermediateCount,
	"advancedcount":      StatAdvancedCount,
	"advanced_count":     StatAdvancedCount,
}

// ParseStatField maps a criterion key to its field, StatUnknown when unrecognized
func ParseStatField(key string) StatField {
	if f, ok := statFields[strings.ToLower(strings.TrimSpace(key))]; ok {
		return f
	}
	return StatUnknown
}

// Value reads the counter named by f. Unknown fields read as zero.
func (f StatField) Value(s *UserStats) int {
	if s == nil {
		return 0
	}
	switch f {
	case StatLearnings:
		return s.Learnings
	case StatTotalPoints:
		return s.TotalPoints
	case StatCurrentStreak:
		return s.CurrentStreak
	case StatLongestStreak:
		return s.LongestStreak
	case StatUniqueCategories:
		return s.UniqueCategories
	case StatBeginnerCount:
		return s.BeginnerCount
	case StatIntermediateCount:
		return s.IntermediateCount
	case StatAdvancedCount:
		return s.AdvancedCount
	default:
		return 0
	}
}

// BadgeCategory classifies badges for display only
type BadgeCategory string

// Badge categories
const (
	BadgeCategoryMilestones BadgeCategory = "MILESTONES"
	BadgeCategoryStreaks    BadgeCategory = "STREAKS"
	BadgeCategoryPoints     BadgeCategory = "POINTS"
	BadgeCategoryDiversity  BadgeCategory = "DIVERSITY"
	BadgeCategoryDifficulty BadgeCategory = "DIFFICULTY"
)

// Criterion is a single "at least" threshold on one counter
type Criterion struct {
	Field     StatField `json:"field" yaml:"field"`
	Threshold int       `json:"threshold" yaml:"threshold"`
}

// SatisfiedBy reports whether stats meet the threshold (current >= required)
func (c Criterion) SatisfiedBy(s *UserStats) bool {
	if c.Field == StatUnknown {
		return false
	}
	return c.Field.Value(s) >= c.Threshold
}

// String renders the criterion the way catalog files spell it
func (c Criterion) String() string {
	return fmt.Sprintf("%s >= %d", c.Field, c.Threshold)
}

// BadgeDefinition is an immutable catalog entry
type BadgeDefinition struct {
	ID          string        `json:"id" validate:"required,max=64"`
	Name        string        `json:"name" validate:"required"`
	Description string        `json:"description"`
	Icon        string        `json:"icon,omitempty"`
	Category    BadgeCategory `json:"category" validate:"required,oneof=MILESTONES STREAKS POINTS DIVERSITY DIFFICULTY"`
	Criterion   Criterion     `json:"criteria"`
	Points      int           `json:"points" validate:"gt=0"`
}

// UserBadge records a one-time award
type UserBadge struct {
	ID       string    `json:"id" db:"id"`
	UserID   string    `json:"user_id" db:"user_id"`
	BadgeID  string    `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

// AwardedBadge is one entry of an evaluation result
type AwardedBadge struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// EvaluationResult lists badges newly awarded by one evaluation
type EvaluationResult struct {
	AwardedBadges     []AwardedBadge `json:"awarded_badges"`
	TotalPointsEarned int            `json:"total_points_earned"`
}

// Message builds the user-facing summary for an evaluation
func (r *EvaluationResult) Message() string {
	n := len(r.AwardedBadges)
	if n == 0 {
		return "No new badges earned yet. Keep learning!"
	}
	plural := ""
	if n > 1 {
		plural = "s"
	}
	return fmt.Sprintf("🏆 Congratulations! You earned %d new badge%s and %d bonus points!", n, plural, r.TotalPointsEarned)
}

// BadgeProgress is the derived, read-only view of one badge for one user
type BadgeProgress struct {
	Badge      BadgeDefinition `json:"badge"`
	Earned     bool            `json:"earned"`
	EarnedAt   *time.Time      `json:"earned_at,omitempty"`
	Current    int             `json:"current"`
	Required   int             `json:"required"`
	Percentage int             `json:"percentage"`
}

// BadgeProgressResponse groups progress for the badges page
type BadgeProgressResponse struct {
	EarnedBadges         []BadgeProgress `json:"earned_badges"`
	AvailableBadges      []BadgeProgress `json:"available_badges"`
	TotalEarned          int             `json:"total_earned"`
	TotalAvailable       int             `json:"total_available"`
	CompletionPercentage int             `json:"completion_percentage"`
	TotalBadgePoints     int             `json:"total_badge_points"`
	TotalAvailablePoints int             `json:"total_available_points"`
}

// RescanReport summarizes a retroactive evaluation over all users
type RescanReport struct {
	UsersProcessed int           `json:"users_processed"`
	UsersAwarded   int           `json:"users_awarded"`
	BadgesAwarded  int           `json:"badges_awarded"`
	PointsAwarded  int           `json:"points_awarded"`
	Failures       int           `json:"failures"`
	Duration       time.Duration `json:"duration"`
}
