// Package cache puts a read-through cache in front of the user directory.
// The Cache port is backed by Redis in production.
package cache

import (
	"context"
	"time"
)

// Cache is a minimal string key-value store. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns ErrMiss when key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value for ttl. A zero ttl never expires.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrMiss = errMiss{}

type errMiss struct{}

func (errMiss) Error() string { return "cache: miss" }
