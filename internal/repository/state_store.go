package repository

import (
	"context"
	"time"
)

// StateStore holds short-lived records that must expire on their own, such
// as live API sessions. Redis backs multi-instance deployments; the memory
// store serves a single process and the test suite.
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns nil, nil for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes every given key. Unknown keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}
