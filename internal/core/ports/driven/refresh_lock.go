package driven

import (
	"context"
	"time"
)

// RefreshLock provides best-effort cross-instance coordination for token
// refreshes. Overlapping refreshes for the same instance are wasteful but
// not unsafe (the exchange is idempotent), so implementations only need to
// suppress duplicates, not guarantee exclusion.
type RefreshLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if the lock was acquired, false if held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock. Best-effort; TTL-backed
	// implementations auto-expire anyway. Safe to call when not held.
	Release(ctx context.Context, name string) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
