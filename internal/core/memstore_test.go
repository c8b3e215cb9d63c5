package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tila/internal/repository"
	"tila/pkg/models"
)

// memStore is an in-memory GamificationRepository. Transactions are serialized
// and buffered, so a failing fn leaves no trace.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	stats  map[string]*models.UserStats
	badges map[string]map[string]models.UserBadge
	items  map[string][]models.Item
	daily  map[string]map[string]*models.DailyActivity

	failSave   error
	failListOf map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		stats:      map[string]*models.UserStats{},
		badges:     map[string]map[string]models.UserBadge{},
		items:      map[string][]models.Item{},
		daily:      map[string]map[string]*models.DailyActivity{},
		failListOf: map[string]error{},
	}
}

func (m *memStore) CreateStats(_ context.Context, userID string) (*models.UserStats, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[userID]; ok {
		return s.Clone(), false, nil
	}
	s := models.NewUserStats(userID)
	m.stats[userID] = s
	return s.Clone(), true, nil
}

func (m *memStore) GetStats(_ context.Context, userID string) (*models.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failListOf[userID]; err != nil {
		return nil, err
	}
	s, ok := m.stats[userID]
	if !ok {
		return nil, models.NewNotFoundError(userID)
	}
	return s.Clone(), nil
}

func (m *memStore) ListUserIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.stats))
	for id := range m.stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) EarnedBadges(_ context.Context, userID string) ([]models.UserBadge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.UserBadge, 0, len(m.badges[userID]))
	for _, b := range m.badges[userID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BadgeID < out[j].BadgeID })
	return out, nil
}

func (m *memStore) ListDailyActivity(_ context.Context, userID string, since time.Time) ([]models.DailyActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := since.Format("2006-01-02")
	var out []models.DailyActivity
	for key, d := range m.daily[userID] {
		if key >= cutoff {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) HealthCheck(context.Context) error { return nil }
func (m *memStore) Close()                            {}

func (m *memStore) WithUserTx(_ context.Context, userID string, fn func(tx repository.StatsTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memTx{store: m, userID: userID, daily: map[string]*models.DailyActivity{}}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.stats != nil {
		m.stats[userID] = tx.stats
	}
	if len(tx.badges) > 0 && m.badges[userID] == nil {
		m.badges[userID] = map[string]models.UserBadge{}
	}
	for _, b := range tx.badges {
		m.badges[userID][b.BadgeID] = b
	}
	m.items[userID] = append(m.items[userID], tx.items...)
	if m.daily[userID] == nil {
		m.daily[userID] = map[string]*models.DailyActivity{}
	}
	for key, d := range tx.daily {
		if cur, ok := m.daily[userID][key]; ok {
			cur.Points += d.Points
			cur.ItemsCount += d.ItemsCount
			continue
		}
		m.daily[userID][key] = d
	}
	return nil
}

type memTx struct {
	store  *memStore
	userID string

	stats  *models.UserStats
	badges []models.UserBadge
	items  []models.Item
	daily  map[string]*models.DailyActivity
}

func (t *memTx) exists() bool {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	_, ok := t.store.stats[t.userID]
	return ok
}

func (t *memTx) LockStats(ctx context.Context) (*models.UserStats, error) {
	s, err := t.store.GetStats(ctx, t.userID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (t *memTx) SaveStats(_ context.Context, s *models.UserStats) error {
	if t.store.failSave != nil {
		return t.store.failSave
	}
	if !t.exists() {
		return models.NewNotFoundError(t.userID)
	}
	t.stats = s.Clone()
	return nil
}

func (t *memTx) InsertItem(_ context.Context, item *models.Item) error {
	if !t.exists() {
		return models.NewNotFoundError(t.userID)
	}
	if item.ID == "" {
		item.ID = fmt.Sprintf("item-%d", len(t.store.items[t.userID])+len(t.items)+1)
	}
	item.UserID = t.userID
	t.items = append(t.items, *item)
	return nil
}

func (t *memTx) CategoryCounts(context.Context) (map[string]int, error) {
	counts := map[string]int{}
	t.store.mu.Lock()
	for _, it := range t.store.items[t.userID] {
		counts[it.CategoryID]++
	}
	t.store.mu.Unlock()
	for _, it := range t.items {
		counts[it.CategoryID]++
	}
	return counts, nil
}

func (t *memTx) InsertUserBadge(_ context.Context, badgeID string, earnedAt time.Time) (*models.UserBadge, error) {
	if !t.exists() {
		return nil, models.NewNotFoundError(t.userID)
	}
	t.store.mu.Lock()
	_, dup := t.store.badges[t.userID][badgeID]
	t.store.mu.Unlock()
	for _, b := range t.badges {
		dup = dup || b.BadgeID == badgeID
	}
	if dup {
		return nil, models.ErrAlreadyAwarded
	}
	ub := models.UserBadge{ID: badgeID + "-" + t.userID, UserID: t.userID, BadgeID: badgeID, EarnedAt: earnedAt}
	t.badges = append(t.badges, ub)
	return &ub, nil
}

func (t *memTx) AddDailyActivity(_ context.Context, day time.Time, points, items int) error {
	key := day.Format("2006-01-02")
	d, ok := t.daily[key]
	if !ok {
		d = &models.DailyActivity{ID: key, UserID: t.userID, Date: day}
		t.daily[key] = d
	}
	d.Points += points
	d.ItemsCount += items
	return nil
}

func (m *memStore) badgeIDs(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.badges[userID]))
	for id := range m.badges[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
