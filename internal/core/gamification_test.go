package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tila/internal/catalog"
	"tila/internal/repository"
	"tila/pkg/metrics"
	"tila/pkg/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls map[string][]*models.EvaluationResult
}

func (n *recordingNotifier) BadgesAwarded(_ context.Context, userID string, r *models.EvaluationResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.calls == nil {
		n.calls = map[string][]*models.EvaluationResult{}
	}
	n.calls[userID] = append(n.calls[userID], r)
}

type mapCache struct {
	mu          sync.Mutex
	entries     map[string]*models.BadgeProgressResponse
	hits        int
	invalidated int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]*models.BadgeProgressResponse{}}
}

func (c *mapCache) Get(_ context.Context, userID string) (*models.BadgeProgressResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[userID]
	if ok {
		c.hits++
	}
	return p, ok
}

func (c *mapCache) Set(_ context.Context, userID string, p *models.BadgeProgressResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = p
}

func (c *mapCache) Invalidate(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.invalidated++
}

type fixture struct {
	store    *memStore
	clock    *fakeClock
	notifier *recordingNotifier
	cache    *mapCache
	service  GamificationService
}

func newFixture(t *testing.T, cat *catalog.Catalog) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemStore(),
		clock:    newFakeClock(),
		notifier: &recordingNotifier{},
		cache:    newMapCache(),
	}
	f.service = NewGamificationService(f.store, cat,
		WithClock(f.clock.Clock()),
		WithNotifier(f.notifier),
		WithProgressCache(f.cache),
		WithMetrics(metrics.New()),
	)
	_, err := f.service.RegisterUser(context.Background(), "u1")
	require.NoError(t, err)
	return f
}

func TestRegisterUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	stats, err := f.service.RegisterUser(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPoints)

	_, err = f.service.RegisterUser(ctx, "  ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestAdvancedCompletionScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	result, err := f.service.RecordCompletion(ctx, "u1", models.DifficultyAdvanced)
	require.NoError(t, err)

	assert.Equal(t, 200, result.PointsAwarded)
	assert.Equal(t, 1, result.Stats.Learnings)
	assert.Equal(t, 1, result.Stats.AdvancedCount)
	assert.Equal(t, 210, result.Stats.TotalPoints)
	assert.Equal(t, 1, result.Stats.CurrentStreak)

	require.Len(t, result.Badges.AwardedBadges, 1)
	assert.Equal(t, "first-steps", result.Badges.AwardedBadges[0].ID)
	assert.Equal(t, 10, result.Badges.TotalPointsEarned)
	assert.Equal(t, "🏆 Congratulations! You earned 1 new badge and 10 bonus points!", result.Badges.Message())

	require.Len(t, f.notifier.calls["u1"], 1)
}

func TestAdvancedCompletionWithDefaultCatalog(t *testing.T) {
	f := newFixture(t, catalog.Default())

	result, err := f.service.RecordCompletion(context.Background(), "u1", models.DifficultyAdvanced)
	require.NoError(t, err)

	// 200 crosses point-collector (>= 100) before its turn in the same scan
	ids := []string{}
	for _, b := range result.Badges.AwardedBadges {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"first-steps", "point-collector"}, ids)
	assert.Equal(t, 235, result.Stats.TotalPoints)
}

func TestCompletionUnknownUser(t *testing.T) {
	f := newFixture(t, testCatalog())

	_, err := f.service.RecordCompletion(context.Background(), "ghost", models.DifficultyBeginner)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
	assert.Equal(t, 404, models.StatusFor(err))
}

func TestCompletionUnknownDifficultyUsesBase(t *testing.T) {
	f := newFixture(t, testCatalog())

	result, err := f.service.RecordCompletion(context.Background(), "u1", models.ParseDifficulty("legendary"))
	require.NoError(t, err)

	assert.Equal(t, 100, result.PointsAwarded)
	assert.Equal(t, 1, result.Stats.Learnings)
	assert.Zero(t, result.Stats.BeginnerCount+result.Stats.IntermediateCount+result.Stats.AdvancedCount)
}

func TestStreakAcrossDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	for i := 0; i < 3; i++ {
		_, err := f.service.RecordTodoCompleted(ctx, "u1")
		require.NoError(t, err)
		_, err = f.service.RecordTodoCompleted(ctx, "u1")
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	stats, err := f.service.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 6*PointsCompleteTodo, stats.TotalPoints)

	f.clock.Advance(48 * time.Hour)
	result, err := f.service.RecordTodoCompleted(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stats.CurrentStreak)
	assert.Equal(t, 3, result.Stats.LongestStreak)
}

func TestItemCreatedCountsCategories(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, catalog.MustNew(badge("explorer", models.StatUniqueCategories, 3, 40)))

	var last *models.CompletionResult
	for _, cat := range []string{"go", "sql", "go", "k8s"} {
		var err error
		last, err = f.service.RecordItemCreated(ctx, "u1", &models.Item{CategoryID: cat, Title: "learn " + cat})
		require.NoError(t, err)
		assert.Equal(t, PointsCreateItem, last.PointsAwarded)
	}

	assert.Equal(t, 3, last.Stats.UniqueCategories)
	require.Len(t, last.Badges.AwardedBadges, 1)
	assert.Equal(t, "explorer", last.Badges.AwardedBadges[0].ID)
	assert.Equal(t, 4*PointsCreateItem+40, last.Stats.TotalPoints)
}

func TestItemCreatedValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	_, err := f.service.RecordItemCreated(ctx, "u1", nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.service.RecordItemCreated(ctx, "u1", &models.Item{Title: "no category"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.service.RecordItemCreated(ctx, "u1", &models.Item{CategoryID: "go"})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestFailedEventLeavesNoPartialState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())
	f.store.failSave = models.NewStoreError("save_user_stats", errors.New("disk full"))

	_, err := f.service.RecordItemCreated(ctx, "u1", &models.Item{CategoryID: "go", Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	assert.Equal(t, 503, models.StatusFor(err))

	f.store.failSave = nil
	stats, err := f.service.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPoints)
	assert.Nil(t, stats.LastActivityDate)
	assert.Empty(t, f.store.items["u1"])

	activity, err := f.service.GetDailyActivity(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, activity)
}

// awardFailingStore commits events normally but cannot insert badge awards
type awardFailingStore struct {
	*memStore
}

func (s awardFailingStore) WithUserTx(ctx context.Context, userID string, fn func(tx repository.StatsTx) error) error {
	return s.memStore.WithUserTx(ctx, userID, func(tx repository.StatsTx) error {
		return fn(awardFailingTx{StatsTx: tx})
	})
}

type awardFailingTx struct {
	repository.StatsTx
}

func (awardFailingTx) InsertUserBadge(context.Context, string, time.Time) (*models.UserBadge, error) {
	return nil, models.NewStoreError("insert_user_badge", errors.New("disk full"))
}

func TestCommittedEventSurvivesFailedEvaluation(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	clock := newFakeClock()
	notifier := &recordingNotifier{}
	service := NewGamificationService(awardFailingStore{memStore: store}, testCatalog(),
		WithClock(clock.Clock()),
		WithNotifier(notifier),
		WithMetrics(metrics.New()),
	)
	_, err := service.RegisterUser(ctx, "u1")
	require.NoError(t, err)

	result, err := service.RecordCompletion(ctx, "u1", models.DifficultyAdvanced)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, 200, result.PointsAwarded)
	assert.Equal(t, 200, result.Stats.TotalPoints)
	assert.Equal(t, 1, result.Stats.Learnings)
	assert.Equal(t, 1, result.Stats.AdvancedCount)
	require.NotNil(t, result.Badges)
	assert.Empty(t, result.Badges.AwardedBadges)
	assert.Empty(t, notifier.calls["u1"])

	// Counted exactly once; a later evaluation on a healthy store catches up
	stats, err := store.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 200, stats.TotalPoints)
	assert.Equal(t, 1, stats.Learnings)
	assert.Empty(t, store.badgeIDs("u1"))

	healthy := NewGamificationService(store, testCatalog(), WithClock(clock.Clock()))
	evaluation, err := healthy.EvaluateBadges(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, evaluation.AwardedBadges, 1)
	assert.Equal(t, "first-steps", evaluation.AwardedBadges[0].ID)
}

func TestAwardPoints(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	_, err := f.service.AwardPoints(ctx, "u1", -5)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = f.service.AwardPoints(ctx, "u1", 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	stats, err := f.service.AwardPoints(ctx, "u1", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, stats.TotalPoints)
	assert.Nil(t, stats.LastActivityDate)
}

func TestDailyActivityRollup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	_, err := f.service.RecordItemCreated(ctx, "u1", &models.Item{CategoryID: "go", Title: "goroutines"})
	require.NoError(t, err)
	_, err = f.service.RecordCompletion(ctx, "u1", models.DifficultyBeginner)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	_, err = f.service.RecordTodoCompleted(ctx, "u1")
	require.NoError(t, err)

	days, err := f.service.GetDailyActivity(ctx, "u1", 7)
	require.NoError(t, err)
	require.Len(t, days, 2)

	// item 10 + completion 100 + first-steps 10
	assert.Equal(t, 120, days[0].Points)
	assert.Equal(t, 1, days[0].ItemsCount)
	assert.Equal(t, 25, days[1].Points)
	assert.Zero(t, days[1].ItemsCount)

	stats, err := f.service.GetStats(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, days[0].Points+days[1].Points, stats.TotalPoints)

	today, err := f.service.GetDailyActivity(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Len(t, today, 1)

	_, err = f.service.GetDailyActivity(ctx, "u1", -1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = f.service.GetDailyActivity(ctx, "ghost", 7)
	assert.ErrorIs(t, err, models.ErrUserNotFound)
}

func TestBadgeProgressIsCachedAndInvalidated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	first, err := f.service.GetBadgeProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, first.TotalEarned)

	_, err = f.service.GetBadgeProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.hits)

	_, err = f.service.RecordCompletion(ctx, "u1", models.DifficultyAdvanced)
	require.NoError(t, err)

	after, err := f.service.GetBadgeProgress(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, after.TotalEarned)
	assert.Equal(t, 1, f.cache.hits)
}

func TestEvaluateBadgesNotifiesOnlyOnAwards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testCatalog())

	_, err := f.service.EvaluateBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, f.notifier.calls["u1"])

	f.store.mu.Lock()
	f.store.stats["u1"].Learnings = 1
	f.store.mu.Unlock()

	result, err := f.service.EvaluateBadges(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, result.AwardedBadges, 1)
	assert.Len(t, f.notifier.calls["u1"], 1)
}

func TestCatalogListsDefinitionsInOrder(t *testing.T) {
	f := newFixture(t, testCatalog())

	defs := f.service.Catalog()
	require.Len(t, defs, 2)
	assert.Equal(t, "first-steps", defs[0].ID)
	assert.Equal(t, "advanced-mind", defs[1].ID)
}
