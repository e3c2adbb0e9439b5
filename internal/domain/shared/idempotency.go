package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys of operations that already completed
type IdempotencyStore interface {
	// MarkProcessed records key with a TTL. It returns false if the key was
	// already recorded and has not expired.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether key is recorded and unexpired
	IsProcessed(ctx context.Context, key string) (bool, error)

	Close() error
}
