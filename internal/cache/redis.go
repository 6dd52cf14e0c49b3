package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every storefront key in the shared Redis instance.
const keyPrefix = "storefront:"

// RedisStore implements domain.Store using Redis.
// Used as the distributed store in the Pro tier.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Get retrieves a value from Redis. Returns nil, nil on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// GetWithTTL retrieves a value together with its remaining TTL.
// GET and TTL are pipelined into a single round trip.
func (s *RedisStore) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, keyPrefix+key)
	ttlCmd := pipe.TTL(ctx, keyPrefix+key)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, 0, err
	}

	val, err := getCmd.Bytes()
	if err == redis.Nil {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		// -1 means no expiry, -2 means the key vanished between commands
		ttl = 0
	}
	return val, ttl, nil
}

// Set stores a value in Redis with TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

// Delete removes a key. Deleting an absent key is a no-op success.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

// DeletePattern removes every key matching a glob pattern using SCAN,
// deleting in batches to keep each command bounded.
func (s *RedisStore) DeletePattern(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, keyPrefix+pattern, 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := s.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.client.Del(ctx, batch...).Err()
	}
	return nil
}

// Ping checks Redis connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
