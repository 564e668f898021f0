package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
)

// Ensure ConnectionStore implements the interface.
var _ driven.ConnectionStore = (*ConnectionStore)(nil)

// ConnectionStore implements driven.ConnectionStore using PostgreSQL.
// Rows are keyed by the digest of the instance ID; the raw instance ID and
// the access token live only inside the encrypted secret blob.
type ConnectionStore struct {
	db        *sql.DB
	encryptor *SecretEncryptor
}

// NewConnectionStore creates a new PostgreSQL-backed connection store.
func NewConnectionStore(db *sql.DB, encryptor *SecretEncryptor) *ConnectionStore {
	return &ConnectionStore{
		db:        db,
		encryptor: encryptor,
	}
}

// Save stores a new connection or fully overwrites an existing one.
func (s *ConnectionStore) Save(ctx context.Context, conn *domain.Connection) error {
	var secretBlob []byte
	if conn.Secrets != nil {
		var err error
		secretBlob, err = s.encryptor.Encrypt(conn.Secrets)
		if err != nil {
			return fmt.Errorf("encrypt secrets: %w", err)
		}
	}

	query := `
		INSERT INTO connections (
			instance_digest, tenant_id, status, secret_blob,
			expires_at, created_at, updated_at, last_used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (instance_digest) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			status = EXCLUDED.status,
			secret_blob = EXCLUDED.secret_blob,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at,
			last_used_at = EXCLUDED.last_used_at
	`

	now := time.Now()
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		domain.InstanceDigest(conn.InstanceID),
		conn.TenantID,
		conn.Status,
		secretBlob,
		NullTime(conn.ExpiresAt),
		conn.CreatedAt,
		conn.UpdatedAt,
		NullTime(conn.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("save connection: %w", err)
	}

	return nil
}

// Get retrieves a connection by instance ID with decrypted secrets.
func (s *ConnectionStore) Get(ctx context.Context, instanceID string) (*domain.Connection, error) {
	query := `
		SELECT tenant_id, status, secret_blob, expires_at,
			   created_at, updated_at, last_used_at
		FROM connections
		WHERE instance_digest = $1
	`

	var conn domain.Connection
	var secretBlob []byte
	var expiresAt, lastUsedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, domain.InstanceDigest(instanceID)).Scan(
		&conn.TenantID,
		&conn.Status,
		&secretBlob,
		&expiresAt,
		&conn.CreatedAt,
		&conn.UpdatedAt,
		&lastUsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}

	conn.InstanceID = instanceID
	if len(secretBlob) > 0 {
		conn.Secrets = &domain.ConnectionSecrets{}
		if err := s.encryptor.Decrypt(secretBlob, conn.Secrets); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}
	conn.ExpiresAt = TimePtr(expiresAt)
	conn.LastUsedAt = TimePtr(lastUsedAt)

	return &conn, nil
}

// List retrieves all connections as summaries (no secrets).
func (s *ConnectionStore) List(ctx context.Context) ([]*domain.ConnectionSummary, error) {
	query := `
		SELECT instance_digest, tenant_id, status, expires_at, created_at, last_used_at
		FROM connections
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.ConnectionSummary
	for rows.Next() {
		var summary domain.ConnectionSummary
		var expiresAt, lastUsedAt sql.NullTime

		if err := rows.Scan(
			&summary.InstanceDigest,
			&summary.TenantID,
			&summary.Status,
			&expiresAt,
			&summary.CreatedAt,
			&lastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}

		summary.ExpiresAt = TimePtr(expiresAt)
		summary.LastUsedAt = TimePtr(lastUsedAt)
		summaries = append(summaries, &summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}

	return summaries, nil
}

// Delete removes a connection by instance ID.
func (s *ConnectionStore) Delete(ctx context.Context, instanceID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM connections WHERE instance_digest = $1",
		domain.InstanceDigest(instanceID))
	if err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// UpdateTokens persists a refreshed token and its expiry in one write. The
// WHERE clause enforces the monotonic rule in the database itself, so the
// check and the write are atomic across replicas: the row must still be
// active and its expiry must be older than the incoming one.
func (s *ConnectionStore) UpdateTokens(ctx context.Context, instanceID, accessToken string, expiresAt time.Time) (bool, error) {
	secretBlob, err := s.encryptor.Encrypt(&domain.ConnectionSecrets{
		InstanceID:  instanceID,
		AccessToken: accessToken,
	})
	if err != nil {
		return false, fmt.Errorf("encrypt secrets: %w", err)
	}

	query := `
		UPDATE connections
		SET secret_blob = $1, expires_at = $2, updated_at = $3
		WHERE instance_digest = $4
		  AND status = $5
		  AND (expires_at IS NULL OR expires_at < $2)
	`

	digest := domain.InstanceDigest(instanceID)
	result, err := s.db.ExecContext(ctx, query,
		secretBlob, expiresAt, time.Now(), digest, domain.StatusActive)
	if err != nil {
		return false, fmt.Errorf("update tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	// Zero rows means either the row is gone or the write was superseded.
	var exists bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM connections WHERE instance_digest = $1)",
		digest).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check connection exists: %w", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}

	return false, nil
}

// MarkExpired transitions the connection to the expired status. The secret
// blob and expiry are left as they are.
func (s *ConnectionStore) MarkExpired(ctx context.Context, instanceID string) error {
	query := `
		UPDATE connections
		SET status = $1, updated_at = $2
		WHERE instance_digest = $3
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.StatusExpired, time.Now(), domain.InstanceDigest(instanceID))
	if err != nil {
		return fmt.Errorf("mark connection expired: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// UpdateLastUsed updates the last_used_at timestamp.
func (s *ConnectionStore) UpdateLastUsed(ctx context.Context, instanceID string) error {
	query := `
		UPDATE connections
		SET last_used_at = $1
		WHERE instance_digest = $2
	`

	result, err := s.db.ExecContext(ctx, query,
		time.Now(), domain.InstanceDigest(instanceID))
	if err != nil {
		return fmt.Errorf("update last used: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}
