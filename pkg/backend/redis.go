package backend

import (
	"context"
	"errors"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/hyperfetch/internal/sentinel"
)

// Redis is the distributed cache tier backed by a single Redis instance.
type Redis struct {
	rdb *redis.Client // redis client to interact with the redis server
}

// NewRedis creates a new Redis tier with the given options.
func NewRedis(options ...Option[Redis]) (*Redis, error) {
	rb := &Redis{}
	// Apply the backend options
	ApplyOptions(rb, options...)

	// Check if the client is nil
	if rb.rdb == nil {
		return nil, sentinel.ErrNilClient
	}

	return rb, nil
}

// Get retrieves the string value stored at key. A missing key is reported as
// sentinel.ErrCacheMiss.
func (rb *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := rb.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", sentinel.ErrCacheMiss
		}

		return "", ewrap.Wrap(err, "redis get")
	}

	return val, nil
}

// Set stores value at key without a time-to-live.
func (rb *Redis) Set(ctx context.Context, key string, value string) error {
	err := rb.rdb.Set(ctx, key, value, 0).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis set")
	}

	return nil
}

// SetEx stores value at key with the given time-to-live.
func (rb *Redis) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	err := rb.rdb.SetEx(ctx, key, value, ttl).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis setex")
	}

	return nil
}

// Del removes the given keys.
func (rb *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	err := rb.rdb.Del(ctx, keys...).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis del")
	}

	return nil
}

// LPush inserts values at the head of the list stored at key.
func (rb *Redis) LPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}

	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}

	err := rb.rdb.LPush(ctx, key, args...).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis lpush")
	}

	return nil
}

// LRange returns the list elements between start and stop inclusive, head first.
func (rb *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := rb.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, ewrap.Wrap(err, "redis lrange")
	}

	return vals, nil
}

// LLen returns the length of the list stored at key; zero when the key does not exist.
func (rb *Redis) LLen(ctx context.Context, key string) (int64, error) {
	length, err := rb.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, ewrap.Wrap(err, "redis llen")
	}

	return length, nil
}

// Expire sets the time-to-live of an existing key.
func (rb *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := rb.rdb.Expire(ctx, key, ttl).Err()
	if err != nil {
		return ewrap.Wrap(err, "redis expire")
	}

	return nil
}
