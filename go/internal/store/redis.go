package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisConfig holds connection settings for the Redis backend
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string // Prepended to every key, e.g. "launchpad:"
}

// DefaultRedisConfig returns a config for a local Redis
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
	}
}

// RedisBackend stores launch data in Redis strings, hashes and lists
type RedisBackend struct {
	client *redis.Client
	prefix string
}

var _ Backend = (*RedisBackend)(nil)

// NewRedisBackend connects to Redis and verifies the connection
func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str("key_prefix", cfg.KeyPrefix).
		Msg("connected to redis")

	return NewRedisBackendFromClient(client, cfg.KeyPrefix), nil
}

// NewRedisBackendFromClient wraps an existing client
func NewRedisBackendFromClient(client *redis.Client, keyPrefix string) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: keyPrefix,
	}
}

func (r *RedisBackend) key(k string) string {
	return r.prefix + k
}

func (r *RedisBackend) GetString(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisBackend) SetString(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (r *RedisBackend) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	v, err := r.client.HGetAll(ctx, r.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisBackend) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := r.client.HGet(ctx, r.key(key), field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis HGET %s %s: %w", key, field, err)
	}
	return v, true, nil
}

func (r *RedisBackend) HashSet(ctx context.Context, key string, fields map[string]string) error {
	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	if err := r.client.HSet(ctx, r.key(key), values).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", key, err)
	}
	return nil
}

// ListAppend uses RPUSH, whose reply is the new list length
func (r *RedisBackend) ListAppend(ctx context.Context, key, value string) (int64, error) {
	n, err := r.client.RPush(ctx, r.key(key), value).Result()
	if err != nil {
		return 0, fmt.Errorf("redis RPUSH %s: %w", key, err)
	}
	return n, nil
}

func (r *RedisBackend) ListRange(ctx context.Context, key string) ([]string, error) {
	v, err := r.client.LRange(ctx, r.key(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis LRANGE %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisBackend) ListIndex(ctx context.Context, key string, index int64) (string, bool, error) {
	// LINDEX treats negative indexes as offsets from the tail
	if index < 0 {
		return "", false, nil
	}
	v, err := r.client.LIndex(ctx, r.key(key), index).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis LINDEX %s %d: %w", key, index, err)
	}
	return v, true, nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}
