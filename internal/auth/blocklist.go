// File: internal/auth/blocklist.go
package auth

import (
	"context"
	"errors"
	"time"

	"waste_portal_backend/internal/config"
	"waste_portal_backend/internal/shared"

	"github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// InMemoryBlocklistService keeps revoked token ids in process memory.
type InMemoryBlocklistService struct {
	cache *cache.Cache
}

// InMemoryBlocklistConfig holds the configuration for the InMemoryBlocklistService.
type InMemoryBlocklistConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// NewInMemoryBlocklistService creates a new in-memory blocklist service.
func NewInMemoryBlocklistService(cfg InMemoryBlocklistConfig) *InMemoryBlocklistService {
	return &InMemoryBlocklistService{
		cache: cache.New(cfg.DefaultExpiration, cfg.CleanupInterval),
	}
}

// Add keeps jti blocked exactly as long as the token would have been valid.
func (s *InMemoryBlocklistService) Add(_ context.Context, jti string, expiresAt time.Time) error {
	duration := time.Until(expiresAt)
	if duration <= 0 {
		return nil
	}
	s.cache.Set(jti, true, duration)
	return nil
}

func (s *InMemoryBlocklistService) IsBlocked(_ context.Context, jti string) (bool, error) {
	_, found := s.cache.Get(jti)
	return found, nil
}

// RedisBlocklistService shares revoked token ids across instances.
type RedisBlocklistService struct {
	client *goredis.Client
	prefix string
}

// NewRedisBlocklistService stores ids under <prefix>:blocklist:<jti>.
func NewRedisBlocklistService(client *goredis.Client, prefix string) *RedisBlocklistService {
	return &RedisBlocklistService{client: client, prefix: prefix}
}

func (s *RedisBlocklistService) key(jti string) string {
	return s.prefix + ":blocklist:" + jti
}

func (s *RedisBlocklistService) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	duration := time.Until(expiresAt)
	if duration <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.key(jti), 1, duration).Err()
}

func (s *RedisBlocklistService) IsBlocked(ctx context.Context, jti string) (bool, error) {
	err := s.client.Get(ctx, s.key(jti)).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// NewTokenBlocklist picks Redis when a client is configured, memory otherwise.
func NewTokenBlocklist(cfg *config.Config, client *goredis.Client, logger *zap.Logger) shared.TokenBlocklist {
	if client != nil {
		logger.Info("Token blocklist backed by Redis")
		return NewRedisBlocklistService(client, cfg.RedisChannelPrefix)
	}
	logger.Info("Token blocklist held in memory")
	return NewInMemoryBlocklistService(InMemoryBlocklistConfig{
		DefaultExpiration: cfg.JWTRefreshTokenExpiry,
		CleanupInterval:   cfg.TokenBlocklistCleanupPeriod,
	})
}
