package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript atomically prunes, counts, and conditionally spends one
// unit in a sorted-set sliding window. Running it as a script closes the
// read-modify-write race that lets concurrent requests from the same
// customer slip past the limit.
//
// KEYS[1] = sorted set key
// ARGV[1] = window start (unix micro)
// ARGV[2] = now (unix micro), used as score and member uniqueness
// ARGV[3] = limit
// ARGV[4] = key TTL seconds
// Returns: {count, 1=taken/0=denied}
var takeScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, ttl)
    return {count + 1, 1}
end

redis.call('EXPIRE', key, ttl)
return {count, 0}
`)

// appendScript prunes and appends unconditionally, returning the count.
var appendScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
redis.call('EXPIRE', key, ttl)
return redis.call('ZCARD', key)
`)

// RedisStore backs the limiter with Redis sorted sets so limits and
// repeat-offender flags hold across instances. Flag keys carry no TTL:
// the flag is persistent by design.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a store using the given client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "moat:rl"}
}

func (s *RedisStore) trackKey(customerID, track string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, track, customerID)
}

func (s *RedisStore) flagKey(customerID string) string {
	return fmt.Sprintf("%s:flagged:%s", s.prefix, customerID)
}

// TakeIfUnder implements Store.
func (s *RedisStore) TakeIfUnder(ctx context.Context, customerID, track string, limit int, window time.Duration) (int, bool, error) {
	now := time.Now()
	res, err := takeScript.Run(ctx, s.rdb, []string{s.trackKey(customerID, track)},
		now.Add(-window).UnixMicro(), now.UnixMicro(), limit, int64(window.Seconds())+1,
	).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("ratelimit take: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("ratelimit take: unexpected script result %v", res)
	}
	return int(res[0]), res[1] == 1, nil
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, customerID, track string, window time.Duration) (int, error) {
	now := time.Now()
	count, err := appendScript.Run(ctx, s.rdb, []string{s.trackKey(customerID, track)},
		now.Add(-window).UnixMicro(), now.UnixMicro(), int64(window.Seconds())+1,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("ratelimit append: %w", err)
	}
	return int(count), nil
}

// SetFlagged implements Store.
func (s *RedisStore) SetFlagged(ctx context.Context, customerID string) error {
	if err := s.rdb.Set(ctx, s.flagKey(customerID), "1", 0).Err(); err != nil {
		return fmt.Errorf("ratelimit set flag: %w", err)
	}
	return nil
}

// IsFlagged implements Store.
func (s *RedisStore) IsFlagged(ctx context.Context, customerID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.flagKey(customerID)).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit read flag: %w", err)
	}
	return n > 0, nil
}
