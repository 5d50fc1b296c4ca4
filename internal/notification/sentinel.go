package notification

import (
	"context"
	"time"

	"waste_portal_backend/internal/config"

	"github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SentinelStore hands out one-shot claims on reminder keys. A claim that was won
// but not used must be released so a later attempt can retry.
type SentinelStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemorySentinelStore claims keys within one process.
type MemorySentinelStore struct {
	cache *cache.Cache
}

func NewMemorySentinelStore(cleanupInterval time.Duration) *MemorySentinelStore {
	return &MemorySentinelStore{cache: cache.New(24*time.Hour, cleanupInterval)}
}

// Claim uses go-cache Add, which fails when the key is already present.
func (s *MemorySentinelStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	return s.cache.Add(key, struct{}{}, ttl) == nil, nil
}

func (s *MemorySentinelStore) Release(_ context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}

// RedisSentinelStore claims keys across instances with SET NX.
type RedisSentinelStore struct {
	client *goredis.Client
	prefix string
}

func NewRedisSentinelStore(client *goredis.Client, prefix string) *RedisSentinelStore {
	return &RedisSentinelStore{client: client, prefix: prefix}
}

func (s *RedisSentinelStore) key(key string) string {
	return s.prefix + ":sentinel:" + key
}

func (s *RedisSentinelStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.key(key), 1, ttl).Result()
}

func (s *RedisSentinelStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// NewSentinelStore picks Redis when a client is configured, memory otherwise.
func NewSentinelStore(cfg *config.Config, client *goredis.Client, logger *zap.Logger) SentinelStore {
	if client != nil {
		logger.Info("Reminder sentinels backed by Redis")
		return NewRedisSentinelStore(client, cfg.RedisChannelPrefix)
	}
	logger.Info("Reminder sentinels held in memory")
	return NewMemorySentinelStore(10 * time.Minute)
}
