package driving

import "context"

// TokenService hands out currently-usable access tokens for connections,
// refreshing lazily when the cached token is stale.
type TokenService interface {
	// GetValidAccessToken returns an access token that is safe to use for
	// at least the refresh buffer. A cached fresh token is returned with no
	// network call; otherwise exactly one exchange is performed and the
	// result persisted.
	//
	// Error kinds:
	//   - domain.ErrNotFound: no connection for the instance ID
	//   - domain.ErrReauthorizationRequired: the installation is invalid;
	//     the install flow must be re-run
	//   - domain.ErrTokenExchangeFailed: transient failure; the caller may
	//     retry with backoff
	//
	// Safe to call concurrently for the same instance ID. The service does
	// not collapse concurrent refreshes itself; wrap it in a
	// RefreshCoordinator when that matters.
	GetValidAccessToken(ctx context.Context, instanceID string) (string, error)
}
