package driven

import (
	"context"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
)

// ConnectionStore persists connections with instance credentials encrypted
// at rest.
type ConnectionStore interface {
	// Save stores a new connection or fully overwrites an existing one.
	// Secrets are encrypted before storage.
	Save(ctx context.Context, conn *domain.Connection) error

	// Get retrieves a connection by instance ID with decrypted secrets.
	// Returns domain.ErrNotFound if the connection doesn't exist.
	Get(ctx context.Context, instanceID string) (*domain.Connection, error)

	// List retrieves all connections as summaries (no secrets).
	List(ctx context.Context) ([]*domain.ConnectionSummary, error)

	// Delete removes a connection. Deletion is an administrative action;
	// nothing in the token lifecycle deletes connections.
	// Returns domain.ErrNotFound if the connection doesn't exist.
	Delete(ctx context.Context, instanceID string) error

	// UpdateTokens persists a freshly exchanged access token and its expiry
	// together. The write is monotonic: it is applied only while the stored
	// row is still active and the stored expiry is older than expiresAt, so
	// a stale in-flight refresh can never resurrect an expired connection or
	// roll a newer token back. Returns false when the write was superseded.
	// Returns domain.ErrNotFound if the connection doesn't exist.
	UpdateTokens(ctx context.Context, instanceID, accessToken string, expiresAt time.Time) (bool, error)

	// MarkExpired transitions the connection to StatusExpired. The cached
	// token material is left untouched. Idempotent.
	// Returns domain.ErrNotFound if the connection doesn't exist.
	MarkExpired(ctx context.Context, instanceID string) error

	// UpdateLastUsed updates the last_used_at timestamp.
	UpdateLastUsed(ctx context.Context, instanceID string) error
}
