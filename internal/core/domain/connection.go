package domain

import "time"

// RefreshBuffer is subtracted from a token's expiry when deciding whether it
// is still usable. A token inside the buffer is treated as stale so it cannot
// expire mid-flight during a downstream API call.
const RefreshBuffer = 5 * time.Minute

// ConnectionStatus is the lifecycle status of a connection.
type ConnectionStatus string

const (
	// StatusActive means the installation is valid and tokens can be exchanged.
	StatusActive ConnectionStatus = "active"

	// StatusExpired means the platform reported the instance invalid.
	// The connection cannot be used again until the site owner re-runs the
	// installation flow.
	StatusExpired ConnectionStatus = "expired"
)

// TokenState describes the usability of a connection's cached access token.
type TokenState string

const (
	TokenStateNoToken TokenState = "no_token"
	TokenStateFresh   TokenState = "fresh"
	TokenStateStale   TokenState = "stale"
	TokenStateExpired TokenState = "expired"
)

// Connection represents one installation of the app on one tenant site.
// The instance ID is the permanent credential issued by the platform at
// install time and is used for all subsequent token exchanges.
type Connection struct {
	// InstanceID is the permanent installation identifier (primary key).
	// It is a long-lived credential and is stored encrypted at rest.
	InstanceID string `json:"-"`

	// TenantID identifies the remote site the app is installed on.
	TenantID string `json:"tenant_id"`

	Status ConnectionStatus `json:"status"`

	// Secrets holds decrypted secret values. Populated when fetching a
	// single connection from the store, nil when listing.
	Secrets *ConnectionSecrets `json:"-"`

	// ExpiresAt is when the cached access token stops being usable.
	// Nil exactly when no access token is cached.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// ConnectionSecrets contains decrypted secret values.
// These are encrypted before storage and decrypted on retrieval.
type ConnectionSecrets struct {
	InstanceID  string `json:"instance_id"`
	AccessToken string `json:"access_token,omitempty"`
}

// ConnectionSummary is a safe view without secrets for listing.
// InstanceDigest is an opaque reference (hash of the instance ID) usable
// in logs and inventories without exposing the credential.
type ConnectionSummary struct {
	InstanceDigest string           `json:"instance_digest"`
	TenantID       string           `json:"tenant_id"`
	Status         ConnectionStatus `json:"status"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	LastUsedAt     *time.Time       `json:"last_used_at,omitempty"`
}

// HasToken returns true if an access token is cached.
func (c *Connection) HasToken() bool {
	return c.Secrets != nil && c.Secrets.AccessToken != "" && c.ExpiresAt != nil
}

// AccessToken returns the cached access token, or "" if none.
func (c *Connection) AccessToken() string {
	if c.Secrets == nil {
		return ""
	}
	return c.Secrets.AccessToken
}

// NeedsRefresh returns true if the cached token is absent, stale or past
// expiry. Stale means within RefreshBuffer of ExpiresAt.
func (c *Connection) NeedsRefresh() bool {
	if !c.HasToken() {
		return true
	}
	return time.Until(*c.ExpiresAt) <= RefreshBuffer
}

// State reports the usability of the connection's token.
//
// The lifecycle is NoToken -> Fresh -> Stale -> Fresh (refresh loop), with
// Expired terminal until the installation flow is re-run.
func (c *Connection) State() TokenState {
	if c.Status == StatusExpired {
		return TokenStateExpired
	}
	if !c.HasToken() {
		return TokenStateNoToken
	}
	if c.NeedsRefresh() {
		return TokenStateStale
	}
	return TokenStateFresh
}
