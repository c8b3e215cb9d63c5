package core

import (
	"context"
	"fmt"
	"time"

	"tila/internal/catalog"
	"tila/internal/repository"
	"tila/pkg/logger"
	"tila/pkg/metrics"
	"tila/pkg/models"
	"tila/pkg/utils"
)

// DefaultActivityDays is the dashboard chart window
const DefaultActivityDays = 30

// Clock supplies the current time and the timezone calendar days are taken in
type Clock struct {
	NowFunc  func() time.Time
	Location *time.Location
}

func (c Clock) withDefaults() Clock {
	if c.NowFunc == nil {
		c.NowFunc = time.Now
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

func (c Clock) Now() time.Time {
	return c.NowFunc()
}

// Today is the calendar day of t in the clock's location
func (c Clock) Today(t time.Time) time.Time {
	return calendarDay(t, c.Location)
}

// Notifier is told about non-empty evaluations after they commit
type Notifier interface {
	BadgesAwarded(ctx context.Context, userID string, result *models.EvaluationResult)
}

// ProgressCache stores computed badge progress per user
type ProgressCache interface {
	Get(ctx context.Context, userID string) (*models.BadgeProgressResponse, bool)
	Set(ctx context.Context, userID string, progress *models.BadgeProgressResponse)
	Invalidate(ctx context.Context, userID string)
}

type nopNotifier struct{}

func (nopNotifier) BadgesAwarded(context.Context, string, *models.EvaluationResult) {}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*models.BadgeProgressResponse, bool) { return nil, false }
func (nopCache) Set(context.Context, string, *models.BadgeProgressResponse)        {}
func (nopCache) Invalidate(context.Context, string)                                {}

// GamificationService defines the engine operations exposed to transports
type GamificationService interface {
	RegisterUser(ctx context.Context, userID string) (*models.UserStats, error)
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)

	RecordCompletion(ctx context.Context, userID string, difficulty models.Difficulty) (*models.CompletionResult, error)
	RecordItemCreated(ctx context.Context, userID string, item *models.Item) (*models.CompletionResult, error)
	RecordTodoCompleted(ctx context.Context, userID string) (*models.CompletionResult, error)
	AwardPoints(ctx context.Context, userID string, points int) (*models.UserStats, error)

	EvaluateBadges(ctx context.Context, userID string) (*models.EvaluationResult, error)
	GetBadgeProgress(ctx context.Context, userID string) (*models.BadgeProgressResponse, error)
	GetDailyActivity(ctx context.Context, userID string, days int) ([]models.DailyActivity, error)
	Catalog() []models.BadgeDefinition
}

// Option configures the service
type Option func(*gamificationService)

func WithClock(c Clock) Option {
	return func(s *gamificationService) { s.clock = c.withDefaults() }
}

func WithNotifier(n Notifier) Option {
	return func(s *gamificationService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithProgressCache(c ProgressCache) Option {
	return func(s *gamificationService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *gamificationService) { s.metrics = m }
}

type gamificationService struct {
	repo      repository.GamificationRepository
	catalog   *catalog.Catalog
	evaluator *Evaluator
	clock     Clock
	notifier  Notifier
	cache     ProgressCache
	metrics   *metrics.Metrics
}

// NewGamificationService creates the engine over a store and an injected catalog
func NewGamificationService(repo repository.GamificationRepository, cat *catalog.Catalog, opts ...Option) GamificationService {
	s := &gamificationService{
		repo:     repo,
		catalog:  cat,
		clock:    Clock{}.withDefaults(),
		notifier: nopNotifier{},
		cache:    nopCache{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.evaluator = NewEvaluator(repo, cat, s.metrics, s.clock)
	return s
}

// RegisterUser creates the all-zero stats row; calling it again is a no-op
func (s *gamificationService) RegisterUser(ctx context.Context, userID string) (*models.UserStats, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}
	stats, created, err := s.repo.CreateStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}
	if created {
		logger.Gamification(userID, "registered", nil)
	}
	return stats, nil
}

func (s *gamificationService) GetStats(ctx context.Context, userID string) (*models.UserStats, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}
	stats, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return stats, nil
}

// eventFunc mutates locked stats inside the event transaction and reports
// the points and item count to add to today's rollup
type eventFunc func(ctx context.Context, tx repository.StatsTx, stats *models.UserStats) (points, items int, err error)

// applyEvent runs one stat-mutating event atomically, then evaluates badges.
// Once the event commits it is reported as applied; a failed evaluation is
// logged and left for the next trigger or rescan.
func (s *gamificationService) applyEvent(ctx context.Context, userID, kind string, fn eventFunc) (*models.CompletionResult, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}

	var (
		awarded   int
		committed *models.UserStats
	)
	err := s.repo.WithUserTx(ctx, userID, func(tx repository.StatsTx) error {
		stats, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}

		points, items, err := fn(ctx, tx, stats)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if UpdateStreak(stats, now, s.clock.Location) {
			logger.Gamification(userID, "streak updated", map[string]interface{}{
				"current_streak": stats.CurrentStreak,
				"longest_streak": stats.LongestStreak,
			})
		}

		if err := tx.SaveStats(ctx, stats); err != nil {
			return err
		}
		if err := tx.AddDailyActivity(ctx, s.clock.Today(now), points, items); err != nil {
			return err
		}
		awarded = points
		committed = stats.Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", kind, err)
	}

	s.metrics.Points(kind, awarded)

	result := &models.CompletionResult{
		Stats:         committed,
		PointsAwarded: awarded,
		Badges:        &models.EvaluationResult{AwardedBadges: []models.AwardedBadge{}},
	}

	badges, err := s.EvaluateBadges(ctx, userID)
	if err != nil {
		s.metrics.EvaluationDeferred()
		logger.WithFields(map[string]interface{}{
			"user_id": userID,
			"event":   kind,
		}).WithError(err).Warn("Badge evaluation deferred after committed event")
	} else {
		result.Badges = badges
	}

	stats, err := s.repo.GetStats(ctx, userID)
	if err != nil {
		logger.WithFields(map[string]interface{}{"user_id": userID}).
			WithError(err).Warn("Returning committed stats, reload failed")
		return result, nil
	}
	result.Stats = stats
	return result, nil
}

// RecordCompletion credits a finished learning item
func (s *gamificationService) RecordCompletion(ctx context.Context, userID string, difficulty models.Difficulty) (*models.CompletionResult, error) {
	if !difficulty.Known() {
		logger.WithFields(map[string]interface{}{"user_id": userID}).
			Warn("completion with unrecognized difficulty, using base multiplier")
	}
	s.metrics.Event("completion", string(difficulty))

	return s.applyEvent(ctx, userID, "completion", func(ctx context.Context, tx repository.StatsTx, stats *models.UserStats) (int, int, error) {
		points := PointsForCompletion(difficulty)
		stats.TotalPoints += points
		stats.Learnings++
		IncrementDifficultyCount(stats, difficulty)

		if err := RecomputeCategoryCount(ctx, tx, stats); err != nil {
			return 0, 0, err
		}
		return points, 0, nil
	})
}

// RecordItemCreated stores the item and credits the flat creation reward
func (s *gamificationService) RecordItemCreated(ctx context.Context, userID string, item *models.Item) (*models.CompletionResult, error) {
	if err := utils.ValidateItem(item); err != nil {
		return nil, err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.clock.Now()
	}
	s.metrics.Event("item_created", string(item.Difficulty))

	return s.applyEvent(ctx, userID, "item_created", func(ctx context.Context, tx repository.StatsTx, stats *models.UserStats) (int, int, error) {
		if err := tx.InsertItem(ctx, item); err != nil {
			return 0, 0, err
		}
		stats.TotalPoints += PointsCreateItem

		if err := RecomputeCategoryCount(ctx, tx, stats); err != nil {
			return 0, 0, err
		}
		return PointsCreateItem, 1, nil
	})
}

// RecordTodoCompleted credits the flat todo reward
func (s *gamificationService) RecordTodoCompleted(ctx context.Context, userID string) (*models.CompletionResult, error) {
	s.metrics.Event("todo_completed", "")

	return s.applyEvent(ctx, userID, "todo_completed", func(ctx context.Context, tx repository.StatsTx, stats *models.UserStats) (int, int, error) {
		stats.TotalPoints += PointsCompleteTodo
		return PointsCompleteTodo, 0, nil
	})
}

// AwardPoints adds an arbitrary positive amount without touching the streak
func (s *gamificationService) AwardPoints(ctx context.Context, userID string, points int) (*models.UserStats, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if points <= 0 {
		return nil, models.NewValidationError("points must be positive")
	}

	var stats *models.UserStats
	err := s.repo.WithUserTx(ctx, userID, func(tx repository.StatsTx) error {
		locked, err := tx.LockStats(ctx)
		if err != nil {
			return err
		}
		locked.TotalPoints += points
		if err := tx.SaveStats(ctx, locked); err != nil {
			return err
		}
		if err := tx.AddDailyActivity(ctx, s.clock.Today(s.clock.Now()), points, 0); err != nil {
			return err
		}
		stats = locked
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to award points: %w", err)
	}
	s.metrics.Points("manual", points)
	s.cache.Invalidate(ctx, userID)
	return stats, nil
}

// EvaluateBadges awards newly satisfied badges and notifies listeners
func (s *gamificationService) EvaluateBadges(ctx context.Context, userID string) (*models.EvaluationResult, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}

	// Counters may have moved even when nothing is awarded
	defer s.cache.Invalidate(ctx, userID)

	result, err := s.evaluator.Evaluate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate badges: %w", err)
	}

	if len(result.AwardedBadges) > 0 {
		s.notifier.BadgesAwarded(ctx, userID, result)
	}
	return result, nil
}

func (s *gamificationService) GetBadgeProgress(ctx context.Context, userID string) (*models.BadgeProgressResponse, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if cached, ok := s.cache.Get(ctx, userID); ok {
		return cached, nil
	}

	progress, err := s.evaluator.Progress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get badge progress: %w", err)
	}
	s.cache.Set(ctx, userID, progress)
	return progress, nil
}

// GetDailyActivity lists the rollup for the last days calendar days, today included
func (s *gamificationService) GetDailyActivity(ctx context.Context, userID string, days int) ([]models.DailyActivity, error) {
	if err := utils.ValidateUserID(userID); err != nil {
		return nil, err
	}
	if days < 0 {
		return nil, models.NewValidationError("days must not be negative")
	}
	if days == 0 {
		days = DefaultActivityDays
	}

	// Surface NotFound for unknown users instead of an empty chart
	if _, err := s.repo.GetStats(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to get daily activity: %w", err)
	}

	since := s.clock.Today(s.clock.Now()).AddDate(0, 0, -(days - 1))
	activity, err := s.repo.ListDailyActivity(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily activity: %w", err)
	}
	return activity, nil
}

func (s *gamificationService) Catalog() []models.BadgeDefinition {
	return s.catalog.All()
}
