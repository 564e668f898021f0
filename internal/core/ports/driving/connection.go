package driving

import (
	"context"

	"github.com/harborlane/connect-core/internal/core/domain"
)

// RegisterRequest carries the instanceId/tenantId pair produced by the
// platform's installation callback. This core only consumes the pair, it
// never produces it.
type RegisterRequest struct {
	InstanceID string
	TenantID   string
}

// ConnectionService manages the connection inventory.
type ConnectionService interface {
	// Register creates a connection for a fresh installation, or
	// reactivates an existing one when the site owner re-ran the install
	// flow for an expired instance.
	Register(ctx context.Context, req RegisterRequest) (*domain.ConnectionSummary, error)

	// Get retrieves a connection summary by instance ID (no secrets).
	Get(ctx context.Context, instanceID string) (*domain.ConnectionSummary, error)

	// List returns all connections as summaries (no secrets).
	List(ctx context.Context) ([]*domain.ConnectionSummary, error)

	// Delete removes a connection. Administrative action only.
	Delete(ctx context.Context, instanceID string) error

	// TestConnection forces a token fetch to verify the installation is
	// still valid, and bumps last_used_at on success.
	TestConnection(ctx context.Context, instanceID string) error
}
