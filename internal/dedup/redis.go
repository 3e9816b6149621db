package dedup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps dedup keys in Redis with the cooldown as TTL, so
// expiry needs no sweeping of our own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func redisKey(userID, dedupKey string) string {
	return fmt.Sprintf("alerts:%s:%s", userID, dedupKey)
}

func (s *RedisStore) Recent(ctx context.Context, userID string, _ time.Duration) (map[string]struct{}, error) {
	prefix := fmt.Sprintf("alerts:%s:", userID)
	keys := make(map[string]struct{})

	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan alert keys: %w", err)
		}
		for _, k := range batch {
			keys[strings.TrimPrefix(k, prefix)] = struct{}{}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *RedisStore) Mark(ctx context.Context, userID string, keys []string, cooldown time.Duration) error {
	for _, key := range keys {
		if err := s.client.Set(ctx, redisKey(userID, key), "1", cooldown).Err(); err != nil {
			return fmt.Errorf("mark alert key %q: %w", key, err)
		}
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
