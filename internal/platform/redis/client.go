// File: internal/platform/redis/client.go
package redis

import (
	"context"
	"fmt"
	"time"

	"waste_portal_backend/internal/config"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects to REDIS_URL. It returns a nil client (and no error) when
// Redis is not configured; callers then fall back to in-process implementations.
func NewClient(cfg *config.Config, logger *zap.Logger) (*goredis.Client, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set; change feed and reminder sentinels stay in-process.")
		return nil, func() {}, nil
	}

	opts, err := goredis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Connected to Redis", zap.String("addr", opts.Addr))
	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("Error closing Redis client", zap.Error(err))
		}
	}
	return client, cleanup, nil
}
