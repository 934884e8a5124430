package repository

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection parameters for the Redis client.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	TLSEnabled bool
}

// NewRedisClient creates a go-redis client and pings it to verify
// connectivity.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisNonceStore keeps login nonces in Redis so several server instances can
// share a login flow. Single use is enforced with GETDEL.
type RedisNonceStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisNonceStore creates a RedisNonceStore whose keys start with prefix.
func NewRedisNonceStore(rdb *redis.Client, prefix string) *RedisNonceStore {
	if prefix == "" {
		prefix = "predict:nonce:"
	}
	return &RedisNonceStore{rdb: rdb, prefix: prefix}
}

func (s *RedisNonceStore) key(k string) string {
	return s.prefix + strings.ToLower(k)
}

// Put stores nonce for key with the given TTL.
func (s *RedisNonceStore) Put(ctx context.Context, key, nonce string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, s.key(key), nonce, ttl).Err(); err != nil {
		return fmt.Errorf("nonce_redis.Put: %w", err)
	}
	return nil
}

// Take atomically reads and deletes the nonce stored for key.
func (s *RedisNonceStore) Take(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.GetDel(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("nonce_redis.Take: %w", err)
	}
	return v, true, nil
}
