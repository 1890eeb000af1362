package bootstrap

import (
	"context"

	"github.com/CLewisMessina/wolfalert/internal/cache"
	"github.com/CLewisMessina/wolfalert/internal/config"
	"github.com/CLewisMessina/wolfalert/internal/logger"
)

// SetupInsightCache creates the optional Redis hot cache. When Redis is
// unavailable the service runs without it: lookups fall through to
// PostgreSQL. The returned ping func is nil when the cache is disabled.
func SetupInsightCache(cfg *config.Config, log logger.Logger) (*cache.InsightCache, func() error) {
	client, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn("Redis not available, insight hot cache disabled",
			logger.Error(err),
		)
		return nil, nil
	}

	log.Info("Insight hot cache initialized",
		logger.String("redis_address", cfg.Redis.Address),
		logger.Duration("ttl", cfg.Redis.InsightCacheTTL),
	)

	ping := func() error {
		return client.Ping(context.Background()).Err()
	}
	return cache.NewInsightCache(client, cfg.Redis.InsightCacheTTL), ping
}
