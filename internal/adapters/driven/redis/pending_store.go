package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborlane/connect-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PendingInstallStore = (*PendingInstallStore)(nil)

const pendingPrefix = "connect:pending:"

// PendingInstallStore implements driven.PendingInstallStore using Redis.
// Records expire through the native key TTL, so Cleanup is a no-op.
type PendingInstallStore struct {
	client *redis.Client
}

// NewPendingInstallStore creates a new Redis-backed pending install store.
func NewPendingInstallStore(client *redis.Client) *PendingInstallStore {
	return &PendingInstallStore{client: client}
}

// Save stores a pending install with TTL based on ExpiresAt.
func (s *PendingInstallStore) Save(ctx context.Context, pending *driven.PendingInstall) error {
	ttl := time.Until(pending.ExpiresAt)
	if ttl <= 0 {
		// Already expired, don't save
		return nil
	}

	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("marshal pending install: %w", err)
	}

	if err := s.client.Set(ctx, pendingPrefix+pending.Token, data, ttl).Err(); err != nil {
		return fmt.Errorf("save pending install: %w", err)
	}

	return nil
}

// GetAndDelete atomically retrieves and deletes the record using GETDEL.
func (s *PendingInstallStore) GetAndDelete(ctx context.Context, token string) (*driven.PendingInstall, error) {
	data, err := s.client.GetDel(ctx, pendingPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil // Token not found or expired
	}
	if err != nil {
		return nil, fmt.Errorf("get and delete pending install: %w", err)
	}

	var pending driven.PendingInstall
	if err := json.Unmarshal(data, &pending); err != nil {
		return nil, fmt.Errorf("unmarshal pending install: %w", err)
	}

	return &pending, nil
}

// Cleanup is a no-op; Redis expires keys through their TTL.
func (s *PendingInstallStore) Cleanup(ctx context.Context) error {
	return nil
}
