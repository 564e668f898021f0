package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harborlane/connect-core/internal/core/ports/driven"
)

// Ensure PendingInstallStore implements the interface.
var _ driven.PendingInstallStore = (*PendingInstallStore)(nil)

// PendingInstallStore implements driven.PendingInstallStore using
// PostgreSQL. Postgres has no native TTL, so expiry is enforced in the
// queries and expired rows are swept by Cleanup.
type PendingInstallStore struct {
	db *sql.DB
}

// NewPendingInstallStore creates a new PostgreSQL-backed pending install store.
func NewPendingInstallStore(db *sql.DB) *PendingInstallStore {
	return &PendingInstallStore{db: db}
}

// Save stores a new pending install.
func (s *PendingInstallStore) Save(ctx context.Context, pending *driven.PendingInstall) error {
	if pending.CreatedAt.IsZero() {
		pending.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO pending_installs (token, tenant_id, return_url, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.db.ExecContext(ctx, query,
		pending.Token,
		pending.TenantID,
		pending.ReturnURL,
		pending.CreatedAt,
		pending.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save pending install: %w", err)
	}

	return nil
}

// GetAndDelete atomically retrieves and deletes the record.
// Uses DELETE ... RETURNING for atomic single-use semantics.
func (s *PendingInstallStore) GetAndDelete(ctx context.Context, token string) (*driven.PendingInstall, error) {
	query := `
		DELETE FROM pending_installs
		WHERE token = $1 AND expires_at > NOW()
		RETURNING token, tenant_id, return_url, created_at, expires_at
	`

	var pending driven.PendingInstall
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&pending.Token,
		&pending.TenantID,
		&pending.ReturnURL,
		&pending.CreatedAt,
		&pending.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil // Token not found or expired
	}
	if err != nil {
		return nil, fmt.Errorf("get and delete pending install: %w", err)
	}

	return &pending, nil
}

// Cleanup removes expired records.
func (s *PendingInstallStore) Cleanup(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_installs WHERE expires_at < NOW()")
	if err != nil {
		return fmt.Errorf("cleanup pending installs: %w", err)
	}

	return nil
}
