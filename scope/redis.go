package scope

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis lists, for scope state shared
// across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed scope store. All keys are stored
// under the given prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "graphrag:scope:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Get returns all values appended under the key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]string, error) {
	values, err := s.client.LRange(ctx, s.prefix+key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading scope key %q: %w", key, err)
	}
	return values, nil
}

// Append adds a value under the key and returns the new version.
func (s *RedisStore) Append(ctx context.Context, key, value string) (int64, error) {
	version, err := s.client.RPush(ctx, s.prefix+key, value).Result()
	if err != nil {
		return 0, fmt.Errorf("appending scope key %q: %w", key, err)
	}
	return version, nil
}
