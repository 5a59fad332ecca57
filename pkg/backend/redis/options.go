package redis

import (
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// Option is a function type that configures the underlying `redis.Options`.
type Option func(*redis.Options)

// ApplyOptions applies the given options in order.
func ApplyOptions(opt *redis.Options, options ...Option) {
	for _, option := range options {
		option(opt)
	}
}

// WithAddr sets the server address as host:port.
func WithAddr(addr string) Option {
	return func(opt *redis.Options) {
		opt.Addr = addr
	}
}

// WithCredentials sets the username and password used to authenticate.
func WithCredentials(username, password string) Option {
	return func(opt *redis.Options) {
		opt.Username = username
		opt.Password = password
	}
}

// WithDB selects the logical database.
func WithDB(db int) Option {
	return func(opt *redis.Options) {
		opt.DB = db
	}
}

// WithMaxRetries sets the retry budget for individual commands.
func WithMaxRetries(maxRetries int) Option {
	return func(opt *redis.Options) {
		opt.MaxRetries = maxRetries
	}
}

// WithTimeouts overrides the dial, read, and write timeouts together. A zero
// duration leaves the corresponding default in place.
func WithTimeouts(dial, read, write time.Duration) Option {
	return func(opt *redis.Options) {
		if dial > 0 {
			opt.DialTimeout = dial
		}

		if read > 0 {
			opt.ReadTimeout = read
		}

		if write > 0 {
			opt.WriteTimeout = write
		}
	}
}

// WithPool sizes the connection pool and its wait timeout. Zero values leave
// the corresponding default in place.
func WithPool(size, minIdle int, poolTimeout time.Duration) Option {
	return func(opt *redis.Options) {
		if size > 0 {
			opt.PoolSize = size
		}

		if minIdle > 0 {
			opt.MinIdleConns = minIdle
		}

		if poolTimeout > 0 {
			opt.PoolTimeout = poolTimeout
		}
	}
}

// WithTLSConfig enables TLS with the given configuration.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opt *redis.Options) {
		opt.TLSConfig = tlsConfig
	}
}
