// Package cache provides the Redis-backed hot cache for scored insights.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CLewisMessina/wolfalert/internal/config"
	"github.com/CLewisMessina/wolfalert/internal/domain"
)

const connectTimeout = 5 * time.Second

// NewRedisClient creates and verifies a Redis client.
func NewRedisClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// InsightCache caches insights in Redis ahead of the PostgreSQL store.
// Misses fall through to the database; the TTL keeps entries roughly in step
// with article retention.
type InsightCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewInsightCache creates a cache with the given TTL.
func NewInsightCache(client *redis.Client, ttl time.Duration) *InsightCache {
	return &InsightCache{client: client, ttl: ttl}
}

func insightKey(articleID, fingerprint, modelVersion string) string {
	return fmt.Sprintf("insight:%s:%s:%s", articleID, fingerprint, modelVersion)
}

// Get returns the cached insight or domain.ErrNotFound on a miss. Cache
// infrastructure failures are reported distinctly so callers can fall
// through to the database.
func (c *InsightCache) Get(ctx context.Context, articleID, fingerprint, modelVersion string) (*domain.Insight, error) {
	data, err := c.client.Get(ctx, insightKey(articleID, fingerprint, modelVersion)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var insight domain.Insight
	if unmarshalErr := json.Unmarshal(data, &insight); unmarshalErr != nil {
		// A corrupt entry is treated as a miss; it will be rewritten.
		return nil, domain.ErrNotFound
	}

	return &insight, nil
}

// Set stores an insight under its cache key.
func (c *InsightCache) Set(ctx context.Context, insight *domain.Insight) error {
	data, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	key := insightKey(insight.ArticleID, insight.ProfileFingerprint, insight.ModelVersion)
	if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
		return fmt.Errorf("cache set: %w", setErr)
	}
	return nil
}
