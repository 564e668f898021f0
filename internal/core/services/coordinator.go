package services

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
	"github.com/harborlane/connect-core/internal/core/ports/driving"
)

// Ensure RefreshCoordinator implements TokenService
var _ driving.TokenService = (*RefreshCoordinator)(nil)

// refreshLockTTL bounds how long a replica can suppress refreshes for one
// instance if it dies mid-refresh.
const refreshLockTTL = 30 * time.Second

// RefreshCoordinator sits in front of a TokenService and collapses
// concurrent refreshes for the same instance ID. In-process callers are
// collapsed with singleflight; across replicas a best-effort lock suppresses
// duplicates when one is configured. The underlying service stays correct
// without any of this - overlapping refreshes are only wasteful - so every
// path here degrades to just calling through.
type RefreshCoordinator struct {
	inner  driving.TokenService
	lock   driven.RefreshLock // may be nil
	group  singleflight.Group
	logger *slog.Logger
}

// NewRefreshCoordinator wraps a TokenService with refresh collapsing.
// lock may be nil for single-instance deployments.
func NewRefreshCoordinator(inner driving.TokenService, lock driven.RefreshLock, logger *slog.Logger) *RefreshCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshCoordinator{
		inner:  inner,
		lock:   lock,
		logger: logger,
	}
}

// GetValidAccessToken collapses concurrent callers per instance ID onto a
// single underlying call and shares its result.
func (c *RefreshCoordinator) GetValidAccessToken(ctx context.Context, instanceID string) (string, error) {
	v, err, _ := c.group.Do(instanceID, func() (interface{}, error) {
		release := c.acquire(ctx, instanceID)
		defer release()
		return c.inner.GetValidAccessToken(ctx, instanceID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// acquire best-effort takes the cross-replica refresh lock and returns its
// release func. Failure to acquire is not an error: the other replica's
// refresh lands first and this call's fast path picks it up, or both refresh
// and the monotonic store write sorts it out.
func (c *RefreshCoordinator) acquire(ctx context.Context, instanceID string) func() {
	if c.lock == nil {
		return func() {}
	}

	// Key on the digest so the raw credential never reaches the lock
	// backend.
	name := "token-refresh:" + domain.InstanceDigest(instanceID)
	acquired, err := c.lock.Acquire(ctx, name, refreshLockTTL)
	if err != nil {
		c.logger.Debug("refresh lock unavailable", "error", err)
		return func() {}
	}
	if !acquired {
		return func() {}
	}

	return func() {
		if err := c.lock.Release(context.WithoutCancel(ctx), name); err != nil {
			c.logger.Debug("refresh lock release", "error", err)
		}
	}
}
