package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// InstanceDigest returns the opaque reference for an instance ID: the hex
// SHA-256 of the raw ID. Digests are safe to log, list, and index on while
// the ID itself stays encrypted at rest.
func InstanceDigest(instanceID string) string {
	sum := sha256.Sum256([]byte(instanceID))
	return hex.EncodeToString(sum[:])
}

// ToSummary converts a Connection to a ConnectionSummary.
func (c *Connection) ToSummary() *ConnectionSummary {
	return &ConnectionSummary{
		InstanceDigest: InstanceDigest(c.InstanceID),
		TenantID:       c.TenantID,
		Status:         c.Status,
		ExpiresAt:      c.ExpiresAt,
		CreatedAt:      c.CreatedAt,
		LastUsedAt:     c.LastUsedAt,
	}
}
