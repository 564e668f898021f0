package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
	"github.com/harborlane/connect-core/internal/core/ports/driving"
)

// Ensure connectionService implements ConnectionService
var _ driving.ConnectionService = (*connectionService)(nil)

// ConnectionServiceConfig holds configuration for the connection service.
type ConnectionServiceConfig struct {
	// ConnectionStore persists connections.
	ConnectionStore driven.ConnectionStore

	// TokenService is used by TestConnection to force a token fetch.
	TokenService driving.TokenService
}

// connectionService implements the ConnectionService interface.
type connectionService struct {
	store  driven.ConnectionStore
	tokens driving.TokenService
}

// NewConnectionService creates a new connection service.
func NewConnectionService(cfg ConnectionServiceConfig) driving.ConnectionService {
	return &connectionService{
		store:  cfg.ConnectionStore,
		tokens: cfg.TokenService,
	}
}

// Register creates or reactivates a connection from an installation
// callback's instanceId/tenantId pair. Re-running the installation flow is
// the only way out of the expired status.
func (s *connectionService) Register(ctx context.Context, req driving.RegisterRequest) (*domain.ConnectionSummary, error) {
	if req.InstanceID == "" {
		return nil, fmt.Errorf("%w: instance id is required", domain.ErrInvalidInput)
	}

	now := time.Now()

	existing, err := s.store.Get(ctx, req.InstanceID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check existing connection: %w", err)
	}

	conn := existing
	if conn == nil {
		conn = &domain.Connection{
			InstanceID: req.InstanceID,
			TenantID:   req.TenantID,
			Status:     domain.StatusActive,
			Secrets:    &domain.ConnectionSecrets{InstanceID: req.InstanceID},
			CreatedAt:  now,
		}
	} else {
		// Re-install: reactivate and drop any cached token so the next
		// consumer forces a fresh exchange.
		conn.Status = domain.StatusActive
		conn.Secrets = &domain.ConnectionSecrets{InstanceID: req.InstanceID}
		conn.ExpiresAt = nil
		if req.TenantID != "" {
			conn.TenantID = req.TenantID
		}
	}
	conn.UpdatedAt = now

	if err := s.store.Save(ctx, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}

	return conn.ToSummary(), nil
}

// Get retrieves a connection summary by instance ID.
func (s *connectionService) Get(ctx context.Context, instanceID string) (*domain.ConnectionSummary, error) {
	conn, err := s.store.Get(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return conn.ToSummary(), nil
}

// List returns all connections as summaries.
func (s *connectionService) List(ctx context.Context) ([]*domain.ConnectionSummary, error) {
	return s.store.List(ctx)
}

// Delete removes a connection.
func (s *connectionService) Delete(ctx context.Context, instanceID string) error {
	return s.store.Delete(ctx, instanceID)
}

// TestConnection verifies the installation is still valid by forcing a
// token fetch through the lifecycle manager.
func (s *connectionService) TestConnection(ctx context.Context, instanceID string) error {
	if s.tokens == nil {
		return fmt.Errorf("token service not available")
	}

	if _, err := s.tokens.GetValidAccessToken(ctx, instanceID); err != nil {
		return err
	}

	// Best-effort; a failed timestamp bump does not invalidate the test.
	_ = s.store.UpdateLastUsed(ctx, instanceID)

	return nil
}
