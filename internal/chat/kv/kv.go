// Package kv provides the ephemeral key-value storage used for refresh
// token tracking and access token revocation. Entries carry a TTL so the
// store cleans up after itself.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kv: not found")

// Store is the ephemeral key-value interface. The redis implementation
// backs production, the memory implementation backs tests and single-node
// deployments without a redis instance.
type Store interface {
	// Set writes key=value with the given TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Get returns the value for key, or ErrNotFound if absent or expired.
	Get(ctx context.Context, key string) (string, error)

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	Close() error
}
