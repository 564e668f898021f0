package driving

import "context"

// BeginInstallRequest starts an installation flow.
type BeginInstallRequest struct {
	// TenantID is the site starting the install, when the installer
	// passes it along. May be empty.
	TenantID string

	// ReturnURL is where to send the browser after the callback. May be
	// empty.
	ReturnURL string
}

// BeginInstallResponse carries the installer redirect target.
type BeginInstallResponse struct {
	// InstallerURL is the platform installer page, carrying the
	// correlation token.
	InstallerURL string `json:"installer_url"`
}

// CompleteInstallRequest is the platform's installation callback.
type CompleteInstallRequest struct {
	// Token is the correlation token minted by BeginInstall.
	Token string

	// InstanceID is the permanent installation identifier issued by the
	// platform.
	InstanceID string
}

// CompleteInstallResponse reports the registered connection.
type CompleteInstallResponse struct {
	InstanceDigest string `json:"instance_digest"`
	TenantID       string `json:"tenant_id,omitempty"`

	// ReturnURL echoes the URL captured at BeginInstall, for the handler
	// to redirect to. Empty when none was given.
	ReturnURL string `json:"-"`
}

// InstallService drives the installation handshake. The pending state
// between begin and callback lives in an external short-TTL store, not in
// process memory.
type InstallService interface {
	BeginInstall(ctx context.Context, req BeginInstallRequest) (*BeginInstallResponse, error)

	// CompleteInstall validates and consumes the correlation token, then
	// registers the connection. Returns domain.ErrPendingInstallInvalid
	// when the token is unknown, expired, or already used.
	CompleteInstall(ctx context.Context, req CompleteInstallRequest) (*CompleteInstallResponse, error)
}
