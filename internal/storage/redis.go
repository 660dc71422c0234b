package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	probeKey   = "tmdb_rate_limit:probe"
	probeValue = "ok"
	probeTTL   = time.Second
)

// ErrProbeMismatch is returned when the probe reads back something other
// than what it wrote.
var ErrProbeMismatch = errors.New("redis probe read back unexpected value")

// NewRedisClient builds a go-redis client.
func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisStore keeps expiring integer counters in Redis.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the counter at key. A missing key is (0, false, nil).
func (s *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}

	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, true, nil
}

// Set stores value at key with ttl.
func (s *RedisStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, strconv.FormatInt(value, 10), ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Incr increments key with INCR. The first increment of a window sets the
// TTL; later ones leave it alone so the window ends on time.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n != 1 {
		return n, nil
	}
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return n, fmt.Errorf("expire %s: %w", key, err)
	}
	return n, nil
}

// Probe writes a short-lived key and reads it back.
func (s *RedisStore) Probe(ctx context.Context) error {
	if err := s.client.Set(ctx, probeKey, probeValue, probeTTL).Err(); err != nil {
		return fmt.Errorf("probe set: %w", err)
	}
	val, err := s.client.Get(ctx, probeKey).Result()
	if err != nil {
		return fmt.Errorf("probe get: %w", err)
	}
	if val != probeValue {
		return ErrProbeMismatch
	}
	return nil
}
