package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
	"github.com/harborlane/connect-core/internal/core/ports/driving"
)

// Ensure tokenService implements TokenService
var _ driving.TokenService = (*tokenService)(nil)

// DefaultTokenTTL is assumed when the platform omits expires_in from a
// successful exchange. The platform issues four-hour app-identity tokens.
const DefaultTokenTTL = 4 * time.Hour

// TokenServiceConfig holds configuration for the token lifecycle service.
type TokenServiceConfig struct {
	// ConnectionStore persists connections and their token material.
	ConnectionStore driven.ConnectionStore

	// ExchangeClient performs the client-credentials exchange.
	ExchangeClient driven.TokenExchangeClient

	// Logger defaults to slog.Default() when nil.
	Logger *slog.Logger
}

// tokenService owns the decision of whether a cached access token is usable
// or must be refreshed. Refresh is always triggered lazily by a consumer
// needing a token; there is no background polling.
type tokenService struct {
	store    driven.ConnectionStore
	exchange driven.TokenExchangeClient
	logger   *slog.Logger
}

// NewTokenService creates a new token lifecycle service.
func NewTokenService(cfg TokenServiceConfig) driving.TokenService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &tokenService{
		store:    cfg.ConnectionStore,
		exchange: cfg.ExchangeClient,
		logger:   logger,
	}
}

// GetValidAccessToken returns a currently-usable access token for the
// connection, refreshing through the exchange endpoint when the cached token
// is absent, stale, or past expiry.
//
// Per call: at most one exchange and at most one store write. Concurrent
// calls for the same instance ID are safe; overlapping refreshes are wasteful
// but not harmful since the exchange is idempotent and persistence is
// monotonic.
func (s *tokenService) GetValidAccessToken(ctx context.Context, instanceID string) (string, error) {
	conn, err := s.store.Get(ctx, instanceID)
	if err != nil {
		return "", err
	}

	if conn.Status == domain.StatusExpired {
		// Terminal until the install flow is re-run. No exchange attempt.
		return "", &domain.ReauthorizationRequiredError{InstanceID: instanceID}
	}

	if !conn.NeedsRefresh() {
		return conn.AccessToken(), nil
	}

	return s.refresh(ctx, conn)
}

// refresh performs one exchange and persists the outcome. The exchange and
// the write run detached from the caller's cancellation: a consumer that
// went away must not poison the cached token state for other consumers.
func (s *tokenService) refresh(ctx context.Context, conn *domain.Connection) (string, error) {
	instanceID := conn.InstanceID
	exchangeCtx := context.WithoutCancel(ctx)

	grant, err := s.exchange.Exchange(exchangeCtx, instanceID)
	if err != nil {
		if errors.Is(err, domain.ErrInstanceInvalid) {
			if markErr := s.store.MarkExpired(exchangeCtx, instanceID); markErr != nil {
				s.logger.Error("mark connection expired",
					"tenant_id", conn.TenantID, "error", markErr)
			}
			return "", &domain.ReauthorizationRequiredError{InstanceID: instanceID}
		}
		// Transient or unexpected failure. Stored state stays untouched.
		return "", &domain.TokenExchangeError{InstanceID: instanceID, Cause: err}
	}

	ttl := time.Duration(grant.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	expiresAt := time.Now().Add(ttl)

	updated, err := s.store.UpdateTokens(exchangeCtx, instanceID, grant.AccessToken, expiresAt)
	if err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	if !updated {
		// A concurrent writer got there first with a newer token or an
		// expiry transition. The grant itself is still valid for this
		// caller.
		s.logger.Debug("refresh superseded by concurrent write",
			"tenant_id", conn.TenantID)
	}

	return grant.AccessToken, nil
}
