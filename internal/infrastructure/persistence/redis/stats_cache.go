package redis

import (
	"context"
	"errors"
	"time"

	"github.com/coursehub/coursehub-platform/internal/application/query"
)

// StatisticsCache implements query.StatisticsCache on top of Cache.
type StatisticsCache struct {
	cache *Cache
	key   string
}

// NewStatisticsCache creates a StatisticsCache.
func NewStatisticsCache(cache *Cache) *StatisticsCache {
	return &StatisticsCache{cache: cache, key: StatsKey("platform")}
}

// Get returns the cached counters; ok is false on a miss.
func (s *StatisticsCache) Get(ctx context.Context) (*query.StatisticsDTO, bool, error) {
	var stats query.StatisticsDTO
	if err := s.cache.Get(ctx, s.key, &stats); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &stats, true, nil
}

// Set stores the counters for ttl.
func (s *StatisticsCache) Set(ctx context.Context, stats *query.StatisticsDTO, ttl time.Duration) error {
	return s.cache.Set(ctx, s.key, stats, ttl)
}

// Invalidate drops the cached counters.
func (s *StatisticsCache) Invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, s.key)
}
