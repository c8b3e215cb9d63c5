package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tila/internal/catalog"
	"tila/pkg/models"
)

func badge(id string, field models.StatField, threshold, points int) models.BadgeDefinition {
	return models.BadgeDefinition{
		ID:        id,
		Name:      id,
		Category:  models.BadgeCategoryMilestones,
		Criterion: models.Criterion{Field: field, Threshold: threshold},
		Points:    points,
	}
}

// testCatalog holds the two badges the completion scenario talks about
func testCatalog() *catalog.Catalog {
	return catalog.MustNew(
		badge("first-steps", models.StatLearnings, 1, 10),
		badge("advanced-mind", models.StatAdvancedCount, 5, 80),
	)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.April, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Clock() Clock {
	return Clock{NowFunc: c.Now, Location: time.UTC}
}

func seedUser(t *testing.T, store *memStore, userID string, mutate func(*models.UserStats)) {
	t.Helper()
	_, _, err := store.CreateStats(context.Background(), userID)
	require.NoError(t, err)
	if mutate != nil {
		store.mu.Lock()
		mutate(store.stats[userID])
		store.mu.Unlock()
	}
}

func TestEvaluateUnknownUser(t *testing.T) {
	e := NewEvaluator(newMemStore(), testCatalog(), nil, Clock{})

	_, err := e.Evaluate(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestEvaluateEmptyResultIsNotAnError(t *testing.T) {
	store := newMemStore()
	seedUser(t, store, "u1", nil)

	result, err := NewEvaluator(store, testCatalog(), nil, Clock{}).Evaluate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, result.AwardedBadges)
	assert.Zero(t, result.TotalPointsEarned)
	assert.Equal(t, "No new badges earned yet. Keep learning!", result.Message())
}

func TestEvaluateAwardsOnceAndCreditsPoints(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedUser(t, store, "u1", func(s *models.UserStats) {
		s.Learnings = 1
		s.TotalPoints = 200
	})
	e := NewEvaluator(store, testCatalog(), nil, Clock{})

	first, err := e.Evaluate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first.AwardedBadges, 1)
	assert.Equal(t, models.AwardedBadge{ID: "first-steps", Name: "first-steps", Points: 10}, first.AwardedBadges[0])
	assert.Equal(t, 10, first.TotalPointsEarned)

	second, err := e.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, second.AwardedBadges)

	stats, err := store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 210, stats.TotalPoints)
}

func TestEvaluateUsesAtLeastSemantics(t *testing.T) {
	store := newMemStore()
	seedUser(t, store, "u1", func(s *models.UserStats) {
		s.Learnings = 7
		s.AdvancedCount = 9
	})

	result, err := NewEvaluator(store, testCatalog(), nil, Clock{}).Evaluate(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, result.AwardedBadges, 2)
	assert.Equal(t, 90, result.TotalPointsEarned)
	assert.Equal(t, "advanced-mind", result.AwardedBadges[1].ID)
}

func TestEvaluateReachesFixpointOnBonusPoints(t *testing.T) {
	ctx := context.Background()
	cat := catalog.MustNew(
		badge("rich", models.StatTotalPoints, 10, 5),
		badge("first", models.StatLearnings, 1, 10),
	)
	store := newMemStore()
	seedUser(t, store, "u1", func(s *models.UserStats) { s.Learnings = 1 })
	e := NewEvaluator(store, cat, nil, Clock{})

	result, err := e.Evaluate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, result.AwardedBadges, 2)
	assert.Equal(t, "first", result.AwardedBadges[0].ID)
	assert.Equal(t, "rich", result.AwardedBadges[1].ID)
	assert.Equal(t, 15, result.TotalPointsEarned)

	again, err := e.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, again.AwardedBadges)
}

func TestBadgesAreNeverRevoked(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedUser(t, store, "u1", func(s *models.UserStats) { s.CurrentStreak = 3 })
	cat := catalog.MustNew(badge("on-fire", models.StatCurrentStreak, 3, 30))
	e := NewEvaluator(store, cat, nil, Clock{})

	_, err := e.Evaluate(ctx, "u1")
	require.NoError(t, err)

	store.mu.Lock()
	store.stats["u1"].CurrentStreak = 1
	store.mu.Unlock()

	result, err := e.Evaluate(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, result.AwardedBadges)
	assert.Equal(t, []string{"on-fire"}, store.badgeIDs("u1"))
}

func TestEarnedSetGrowsMonotonically(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedUser(t, store, "u1", nil)
	e := NewEvaluator(store, catalog.Default(), nil, Clock{})

	var previous []string
	for step := 0; step < 12; step++ {
		store.mu.Lock()
		s := store.stats["u1"]
		s.Learnings += 1
		s.CurrentStreak += 1
		s.UniqueCategories = min(s.UniqueCategories+1, 6)
		s.AdvancedCount += 1
		store.mu.Unlock()

		_, err := e.Evaluate(ctx, "u1")
		require.NoError(t, err)

		current := store.badgeIDs("u1")
		assert.Subset(t, current, previous, "step %d", step)
		previous = current
	}
	assert.Contains(t, previous, "unstoppable")
	assert.Contains(t, previous, "polymath")
}

func TestConcurrentEvaluationAwardsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedUser(t, store, "u1", func(s *models.UserStats) { s.Learnings = 1 })
	cat := catalog.MustNew(badge("first-steps", models.StatLearnings, 1, 10))
	e := NewEvaluator(store, cat, nil, Clock{})

	const workers = 10
	results := make([]*models.EvaluationResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := e.Evaluate(ctx, "u1")
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		if r != nil {
			total += len(r.AwardedBadges)
		}
	}
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"first-steps"}, store.badgeIDs("u1"))

	stats, err := store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalPoints)
}

func TestProgressReportsPercentages(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedUser(t, store, "u1", func(s *models.UserStats) { s.Learnings = 3 })
	cat := catalog.MustNew(
		badge("first-steps", models.StatLearnings, 1, 10),
		badge("knowledge-seeker", models.StatLearnings, 10, 50),
	)
	e := NewEvaluator(store, cat, nil, Clock{})
	_, err := e.Evaluate(ctx, "u1")
	require.NoError(t, err)

	progress, err := e.Progress(ctx, "u1")
	require.NoError(t, err)

	require.Len(t, progress.EarnedBadges, 1)
	earned := progress.EarnedBadges[0]
	assert.Equal(t, "first-steps", earned.Badge.ID)
	assert.True(t, earned.Earned)
	assert.NotNil(t, earned.EarnedAt)
	assert.Equal(t, 100, earned.Percentage)

	require.Len(t, progress.AvailableBadges, 1)
	seeker := progress.AvailableBadges[0]
	assert.False(t, seeker.Earned)
	assert.Equal(t, 3, seeker.Current)
	assert.Equal(t, 10, seeker.Required)
	assert.Equal(t, 30, seeker.Percentage)

	assert.Equal(t, 1, progress.TotalEarned)
	assert.Equal(t, 2, progress.TotalAvailable)
	assert.Equal(t, 50, progress.CompletionPercentage)
	assert.Equal(t, 10, progress.TotalBadgePoints)
	assert.Equal(t, 60, progress.TotalAvailablePoints)
}

func TestProgressUnknownUser(t *testing.T) {
	_, err := NewEvaluator(newMemStore(), testCatalog(), nil, Clock{}).Progress(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}
