package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options accepts host:port or a redis:// URL
func Options(addr string) *redis.Options {
	if addr == "" {
		addr = "localhost:6379"
	}
	if opts, err := redis.ParseURL(addr); err == nil {
		return opts
	}
	return &redis.Options{Addr: addr}
}

// NewClient creates a client for addr. It does not dial until first use.
func NewClient(addr string) *redis.Client {
	opts := Options(addr)
	opts.DialTimeout = 5 * time.Second
	return redis.NewClient(opts)
}

// Ping checks the connection within ctx
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
