package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/Snaxxwax/movecrm/pkg/config"
	"github.com/redis/go-redis/v9"
)

// incrExpireScript increments the bucket counter and attaches the expiry in
// one atomic step, so a crash can never strand a counter without a TTL.
var incrExpireScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisStore implements CounterStore on a Redis connection
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a counter store from the Redis configuration
func NewRedisStore(cfg *config.RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client}
}

// NewRedisStoreFromClient wraps an existing client
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the current bucket count, zero for an unseen key
func (s *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	count, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// IncrWithExpiry atomically increments the bucket counter, setting the TTL
// when the bucket is created, and returns the new count.
func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return incrExpireScript.Run(ctx, s.client, []string{key}, int(ttl.Seconds())).Int64()
}

// Ping checks connectivity at startup
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
