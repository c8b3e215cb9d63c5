// Package cache stores computed badge progress between mutating events
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tila/pkg/logger"
	"tila/pkg/models"
)

const (
	DefaultTTL = 5 * time.Minute
	keyPrefix  = "tila:progress:"
)

func key(userID string) string {
	return keyPrefix + userID
}

// RedisProgressCache keeps progress as JSON under tila:progress:<user_id>.
// Failures are logged and treated as misses; the store stays the source of truth.
type RedisProgressCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgressCache connects to url (redis://...) and pings it
func NewRedisProgressCache(ctx context.Context, url string, ttl time.Duration) (*RedisProgressCache, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisProgressCache{client: client, ttl: ttl}, nil
}

func (r *RedisProgressCache) Get(ctx context.Context, userID string) (*models.BadgeProgressResponse, bool) {
	data, err := r.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.WithFields(map[string]interface{}{"user_id": userID}).WithError(err).Warn("progress cache read failed")
		return nil, false
	}

	var progress models.BadgeProgressResponse
	if err := json.Unmarshal(data, &progress); err != nil {
		logger.WithFields(map[string]interface{}{"user_id": userID}).WithError(err).Warn("progress cache entry corrupt")
		return nil, false
	}
	return &progress, true
}

func (r *RedisProgressCache) Set(ctx context.Context, userID string, progress *models.BadgeProgressResponse) {
	data, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key(userID), data, r.ttl).Err(); err != nil {
		logger.WithFields(map[string]interface{}{"user_id": userID}).WithError(err).Warn("progress cache write failed")
	}
}

func (r *RedisProgressCache) Invalidate(ctx context.Context, userID string) {
	if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
		logger.WithFields(map[string]interface{}{"user_id": userID}).WithError(err).Warn("progress cache invalidate failed")
	}
}

func (r *RedisProgressCache) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisProgressCache) Close() error {
	return r.client.Close()
}

// MemoryProgressCache is the single-process fallback used when redis is not configured
type MemoryProgressCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryProgressCache(ttl time.Duration) *MemoryProgressCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryProgressCache{
		items: make(map[string]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns a private copy so callers cannot mutate the cached entry
func (m *MemoryProgressCache) Get(_ context.Context, userID string) (*models.BadgeProgressResponse, bool) {
	m.mu.RLock()
	item, ok := m.items[userID]
	m.mu.RUnlock()
	if !ok || !m.now().Before(item.expiresAt) {
		return nil, false
	}

	var progress models.BadgeProgressResponse
	if err := json.Unmarshal(item.data, &progress); err != nil {
		return nil, false
	}
	return &progress, true
}

func (m *MemoryProgressCache) Set(_ context.Context, userID string, progress *models.BadgeProgressResponse) {
	data, err := json.Marshal(progress)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[userID] = memoryItem{data: data, expiresAt: m.now().Add(m.ttl)}
}

func (m *MemoryProgressCache) Invalidate(_ context.Context, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, userID)
}

func (m *MemoryProgressCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
