// Package kv is the key-value persistence collaborator. Every operation is
// atomic for a single key; no cross-key transactions are offered.
package kv

import (
	"context"
	"time"
)

// Store is a string key-value store with optional per-key expiry.
// Missing or expired keys surface as sentinel.ErrNotFound.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set writes value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetIfAbsent writes value only when key is absent and reports whether
	// this call claimed the key.
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Remove(ctx context.Context, key string) error
	// Take reads and deletes key in one step, so that exactly one caller
	// observes a given value.
	Take(ctx context.Context, key string) (string, error)
}
