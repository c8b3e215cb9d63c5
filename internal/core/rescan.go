package core

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"tila/internal/repository"
	"tila/pkg/logger"
	"tila/pkg/metrics"
	"tila/pkg/models"
	"tila/pkg/utils"
)

// Rescanner re-evaluates every user, for catalog changes or missed triggers
type Rescanner struct {
	repo    repository.GamificationRepository
	service GamificationService
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

// NewRescanner paces evaluations at perSecond users per second; zero means unlimited
func NewRescanner(repo repository.GamificationRepository, service GamificationService, perSecond float64, m *metrics.Metrics) *Rescanner {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Rescanner{
		repo:    repo,
		service: service,
		limiter: rate.NewLimiter(limit, 1),
		metrics: m,
	}
}

// Run evaluates all users. A failing user is logged and skipped; the returned
// error is only set when the user list cannot be read or ctx ends.
func (r *Rescanner) Run(ctx context.Context) (*models.RescanReport, error) {
	start := time.Now()
	report := &models.RescanReport{}

	ids, err := r.repo.ListUserIDs(ctx)
	if err != nil {
		r.metrics.Rescan("failed")
		return nil, err
	}

	logger.Infof("Rescan started for %d users", len(ids))

	for _, userID := range ids {
		if err := r.limiter.Wait(ctx); err != nil {
			report.Duration = time.Since(start)
			r.metrics.Rescan("cancelled")
			return report, err
		}

		result, err := r.evaluate(ctx, userID)
		report.UsersProcessed++
		if err != nil {
			// A user hitting its own deadline is a failure; the run only ends with ctx
			if utils.IsContextError(err) && ctx.Err() != nil {
				report.Duration = time.Since(start)
				r.metrics.Rescan("cancelled")
				return report, err
			}
			report.Failures++
			logger.WithFields(map[string]interface{}{"user_id": userID}).
				WithError(err).Error("rescan: badge evaluation failed")
			continue
		}

		if n := len(result.AwardedBadges); n > 0 {
			report.UsersAwarded++
			report.BadgesAwarded += n
			report.PointsAwarded += result.TotalPointsEarned
		}
	}

	report.Duration = time.Since(start)
	r.metrics.Rescan("ok")

	logger.WithFields(map[string]interface{}{
		"users_processed": report.UsersProcessed,
		"users_awarded":   report.UsersAwarded,
		"badges_awarded":  report.BadgesAwarded,
		"failures":        report.Failures,
		"duration":        report.Duration.String(),
	}).Info("Rescan completed")

	return report, nil
}

// evaluate bounds one user so a stuck row cannot stall the whole rescan
func (r *Rescanner) evaluate(ctx context.Context, userID string) (*models.EvaluationResult, error) {
	ctx, cancel := utils.WithTimeout(ctx)
	defer cancel()
	return r.service.EvaluateBadges(ctx, userID)
}
