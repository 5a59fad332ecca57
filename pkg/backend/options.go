package backend

import (
	"github.com/redis/go-redis/v9"
)

// Option is a function type that configures a backend of type T.
type Option[T any] func(*T)

// ApplyOptions applies the given options to the given backend.
func ApplyOptions[T any](backend *T, options ...Option[T]) {
	for _, option := range options {
		option(backend)
	}
}

// WithClient is an option that sets the redis client to use.
func WithClient(client *redis.Client) Option[Redis] {
	return func(backend *Redis) {
		backend.rdb = client
	}
}

// WithClusterClient is an option that sets the redis cluster client to use.
func WithClusterClient(client *redis.ClusterClient) Option[RedisCluster] {
	return func(backend *RedisCluster) {
		backend.rdb = client
	}
}
