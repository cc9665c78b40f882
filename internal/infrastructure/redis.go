package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to redis and verifies the connection. It returns
// nil when no address is configured.
func NewRedisClient(ctx context.Context, config *RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if config.Addr == "" {
		logger.Info("Redis not configured, caching disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis connection established",
		zap.String("addr", config.Addr),
		zap.Int("db", config.DB),
		zap.Duration("cache_ttl", config.CacheTTL),
	)
	return client, nil
}
