package backend

import (
	"context"
	"errors"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/hyperfetch/internal/sentinel"
)

// RedisCluster is the distributed cache tier backed by a Redis Cluster.
// It carries the same semantics as the single-node Redis tier.
//
// Keys for one URL fingerprint hash to different slots once the stream-form
// suffixes are appended, so multi-key operations are issued per key rather
// than pipelined.
type RedisCluster struct {
	rdb *redis.ClusterClient // redis cluster client
}

// NewRedisCluster creates a new Redis Cluster tier with the given options.
func NewRedisCluster(options ...Option[RedisCluster]) (*RedisCluster, error) {
	rb := &RedisCluster{}

	ApplyOptions(rb, options...)

	if rb.rdb == nil {
		return nil, sentinel.ErrNilClient
	}

	return rb, nil
}

// Get retrieves the string value stored at key. A missing key is reported as
// sentinel.ErrCacheMiss.
func (rb *RedisCluster) Get(ctx context.Context, key string) (string, error) {
	val, err := rb.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", sentinel.ErrCacheMiss
		}

		return "", ewrap.Wrap(err, "redis cluster get")
	}

	return val, nil
}

// Set stores value at key without a time-to-live.
func (rb *RedisCluster) Set(ctx context.Context, key string, value string) error {
	err := rb.rdb.Set(ctx, key, value, 0).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis cluster set")
	}

	return nil
}

// SetEx stores value at key with the given time-to-live.
func (rb *RedisCluster) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	err := rb.rdb.SetEx(ctx, key, value, ttl).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis cluster setex")
	}

	return nil
}

// Del removes the given keys one at a time so the call survives keys living
// on different slots.
func (rb *RedisCluster) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		err := rb.rdb.Del(ctx, key).Err()
		if err != nil {
			return ewrap.Wrap(err, "redis cluster del")
		}
	}

	return nil
}

// LPush inserts values at the head of the list stored at key.
func (rb *RedisCluster) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}

	err := rb.rdb.LPush(ctx, key, args...).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis cluster lpush")
	}

	return nil
}

// LRange returns the list elements between start and stop inclusive, head first.
func (rb *RedisCluster) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := rb.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, ewrap.Wrap(err, "redis cluster lrange")
	}

	return vals, nil
}

// LLen returns the length of the list stored at key; zero when the key does not exist.
func (rb *RedisCluster) LLen(ctx context.Context, key string) (int64, error) {
	length, err := rb.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, ewrap.Wrap(err, "redis cluster llen")
	}

	return length, nil
}

// Expire sets the time-to-live of an existing key.
func (rb *RedisCluster) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := rb.rdb.Expire(ctx, key, ttl).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis cluster expire")
	}

	return nil
}
