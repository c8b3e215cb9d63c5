package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"tila/internal/catalog"
	"tila/internal/repository"
	"tila/pkg/logger"
	"tila/pkg/metrics"
	"tila/pkg/models"
)

// Evaluator awards every catalog badge whose criterion the user's stats satisfy
type Evaluator struct {
	repo    repository.GamificationRepository
	catalog *catalog.Catalog
	metrics *metrics.Metrics
	clock   Clock
}

// NewEvaluator creates an evaluator over an injected catalog
func NewEvaluator(repo repository.GamificationRepository, cat *catalog.Catalog, m *metrics.Metrics, clock Clock) *Evaluator {
	return &Evaluator{
		repo:    repo,
		catalog: cat,
		metrics: m,
		clock:   clock.withDefaults(),
	}
}

// Evaluate scans the catalog in declaration order and awards newly satisfied badges.
// Passes repeat until one awards nothing, so bonus points that cross a POINTS
// threshold are picked up in the same call and a second call returns empty.
func (e *Evaluator) Evaluate(ctx context.Context, userID string) (*models.EvaluationResult, error) {
	start := time.Now()
	defer func() { e.metrics.ObserveEvaluation(time.Since(start)) }()

	stats, err := e.repo.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	earned, err := e.repo.EarnedBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(earned))
	for _, ub := range earned {
		done[ub.BadgeID] = true
	}

	result := &models.EvaluationResult{AwardedBadges: []models.AwardedBadge{}}
	defs := e.catalog.All()

	for {
		progressed := false
		for _, badge := range defs {
			if done[badge.ID] || !badge.Criterion.SatisfiedBy(stats) {
				continue
			}
			done[badge.ID] = true

			updated, err := e.award(ctx, userID, badge)
			if errors.Is(err, models.ErrAlreadyAwarded) {
				// Lost the race to a concurrent evaluation; its points are already in the row
				logger.WithFields(map[string]interface{}{
					"user_id":  userID,
					"badge_id": badge.ID,
				}).Debug("badge already awarded, skipping")
				if stats, err = e.repo.GetStats(ctx, userID); err != nil {
					return nil, err
				}
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to award badge %s: %w", badge.ID, err)
			}

			stats = updated
			progressed = true
			result.AwardedBadges = append(result.AwardedBadges, models.AwardedBadge{
				ID:     badge.ID,
				Name:   badge.Name,
				Points: badge.Points,
			})
			result.TotalPointsEarned += badge.Points
			e.metrics.BadgeAwarded(badge.ID)
			e.metrics.Points("badge", badge.Points)

			logger.Gamification(userID, "earned badge", map[string]interface{}{
				"badge_id": badge.ID,
				"points":   badge.Points,
			})
		}
		if !progressed {
			break
		}
	}

	return result, nil
}

// award records the badge and credits its points in one transaction
func (e *Evaluator) award(ctx context.Context, userID string, badge models.BadgeDefinition) (*models.UserStats, error) {
	var updated *models.UserStats
	err := e.repo.WithUserTx(ctx, userID, func(tx repository.StatsTx) error {
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}

		now := e.clock.Now()
		if _, err := tx.InsertUserBadge(ctx, badge.ID, now); err != nil {
			return err
		}

		stats.TotalPoints += badge.Points
		if err := tx.SaveStats(ctx, stats); err != nil {
			return err
		}
		if err := tx.AddDailyActivity(ctx, e.clock.Today(now), badge.Points, 0); err != nil {
			return err
		}
		updated = stats
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Progress derives the per-badge view for one user
func (e *Evaluator) Progress(ctx context.Context, userID string) (*models.BadgeProgressResponse, error) {
	stats, err := e.repo.GetStats(ctx, userID)
	if err != nil {
		return nil, err
	}
	earned, err := e.repo.EarnedBadges(ctx, userID)
	if err != nil {
		return nil, err
	}
	earnedAt := make(map[string]time.Time, len(earned))
	for _, ub := range earned {
		earnedAt[ub.BadgeID] = ub.EarnedAt
	}

	resp := &models.BadgeProgressResponse{
		EarnedBadges:    []models.BadgeProgress{},
		AvailableBadges: []models.BadgeProgress{},
		TotalAvailable:  e.catalog.Len(),

		TotalAvailablePoints: e.catalog.TotalPoints(),
	}

	for _, badge := range e.catalog.All() {
		current := badge.Criterion.Field.Value(stats)
		p := models.BadgeProgress{
			Badge:      badge,
			Current:    current,
			Required:   badge.Criterion.Threshold,
			Percentage: ProgressPercentage(current, badge.Criterion.Threshold),
		}
		if at, ok := earnedAt[badge.ID]; ok {
			at := at
			p.Earned = true
			p.EarnedAt = &at
			resp.EarnedBadges = append(resp.EarnedBadges, p)
			resp.TotalBadgePoints += badge.Points
			continue
		}
		resp.AvailableBadges = append(resp.AvailableBadges, p)
	}

	// Most recent first
	slices.SortStableFunc(resp.EarnedBadges, func(a, b models.BadgeProgress) int {
		return b.EarnedAt.Compare(*a.EarnedAt)
	})

	resp.TotalEarned = len(resp.EarnedBadges)
	if resp.TotalAvailable > 0 {
		resp.CompletionPercentage = ProgressPercentage(resp.TotalEarned, resp.TotalAvailable)
	}
	return resp, nil
}
