package driven

import (
	"context"
	"time"
)

// PendingInstall represents an installation flow that has been started but
// whose callback has not arrived yet. It is keyed by a correlation token so
// the state survives process restarts and horizontal scaling instead of
// living in process memory.
type PendingInstall struct {
	// Token is a single-use correlation token carried through the
	// installer redirect and back on the callback.
	Token string

	// TenantID is the site the install was started for, when known.
	TenantID string

	// ReturnURL is where the browser is sent after the callback completes.
	ReturnURL string

	// CreatedAt is when the install flow was started.
	CreatedAt time.Time

	// ExpiresAt is when the pending record expires (typically 10 minutes).
	ExpiresAt time.Time
}

// PendingInstallStore manages short-lived pending-install records.
// Records are single-use and expire after a short period.
type PendingInstallStore interface {
	// Save stores a new pending install.
	Save(ctx context.Context, pending *PendingInstall) error

	// GetAndDelete atomically retrieves and deletes the record, ensuring
	// single-use semantics. Returns nil, nil if the token doesn't exist or
	// has expired.
	GetAndDelete(ctx context.Context, token string) (*PendingInstall, error)

	// Cleanup removes expired records. Should be called periodically for
	// backends without native TTL.
	Cleanup(ctx context.Context) error
}
