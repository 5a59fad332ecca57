// Package backend provides the distributed cache tier client used by the
// fetch layer. It defines the narrow contract the cache strategies consume
// (key-value plus list operations with string values; binary payloads are
// base64-encoded before storage) and a Redis implementation of it.
//
// The Remote interface is deliberately small: the strategies need exactly
// the operations the stored forms require and nothing else, so any store
// offering GET/SETEX/DEL plus head-insertion lists can serve as the tier.
package backend

import (
	"context"
	"time"
)

// Remote defines the distributed cache operations the fetch layer consumes.
//
// Errors carry meaning at this boundary: a missing key is reported as
// sentinel.ErrCacheMiss so callers can distinguish an empty tier from a
// failing one. Every other error means the tier is unhealthy; callers treat
// both cases as a miss but log only the latter.
type Remote interface {
	// Get retrieves the string value stored at key.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value at key without a time-to-live. Used for entries whose
	// TTL is applied later through Expire, once a multi-key write completes.
	Set(ctx context.Context, key string, value string) error
	// SetEx stores value at key with the given time-to-live.
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
	// Del removes the given keys.
	Del(ctx context.Context, keys ...string) error
	// LPush inserts values at the head of the list stored at key.
	LPush(ctx context.Context, key string, values ...string) error
	// LRange returns the list elements between start and stop inclusive,
	// head first. Per list convention, 0 -1 addresses the full list.
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	// LLen returns the length of the list stored at key; zero when the key
	// does not exist.
	LLen(ctx context.Context, key string) (int64, error)
	// Expire sets the time-to-live of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
