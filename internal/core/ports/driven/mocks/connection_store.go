package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
)

// MockConnectionStore is an in-memory ConnectionStore for testing.
// It tracks write counts so tests can assert the lifecycle manager's
// at-most-one-write contract.
type MockConnectionStore struct {
	mu          sync.RWMutex
	connections map[string]*domain.Connection

	SaveCalls         int
	UpdateTokensCalls int
	MarkExpiredCalls  int
	LastUsedCalls     int

	// ForceErr, when set, is returned by every mutating call.
	ForceErr error
}

// NewMockConnectionStore creates a new MockConnectionStore.
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{
		connections: make(map[string]*domain.Connection),
	}
}

func (m *MockConnectionStore) Save(ctx context.Context, conn *domain.Connection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCalls++
	if m.ForceErr != nil {
		return m.ForceErr
	}

	cp := *conn
	if conn.Secrets != nil {
		secrets := *conn.Secrets
		cp.Secrets = &secrets
	}
	m.connections[conn.InstanceID] = &cp
	return nil
}

func (m *MockConnectionStore) Get(ctx context.Context, instanceID string) (*domain.Connection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.connections[instanceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *conn
	if conn.Secrets != nil {
		secrets := *conn.Secrets
		cp.Secrets = &secrets
	}
	return &cp, nil
}

func (m *MockConnectionStore) List(ctx context.Context) ([]*domain.ConnectionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.ConnectionSummary
	for _, conn := range m.connections {
		result = append(result, conn.ToSummary())
	}
	return result, nil
}

func (m *MockConnectionStore) Delete(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connections[instanceID]; !ok {
		return domain.ErrNotFound
	}
	delete(m.connections, instanceID)
	return nil
}

func (m *MockConnectionStore) UpdateTokens(ctx context.Context, instanceID, accessToken string, expiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateTokensCalls++
	if m.ForceErr != nil {
		return false, m.ForceErr
	}

	conn, ok := m.connections[instanceID]
	if !ok {
		return false, domain.ErrNotFound
	}

	// Monotonic acceptance: never resurrect an expired row, never roll a
	// newer expiry back.
	if conn.Status != domain.StatusActive {
		return false, nil
	}
	if conn.ExpiresAt != nil && !conn.ExpiresAt.Before(expiresAt) {
		return false, nil
	}

	if conn.Secrets == nil {
		conn.Secrets = &domain.ConnectionSecrets{InstanceID: instanceID}
	}
	conn.Secrets.AccessToken = accessToken
	exp := expiresAt
	conn.ExpiresAt = &exp
	conn.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockConnectionStore) MarkExpired(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.MarkExpiredCalls++
	if m.ForceErr != nil {
		return m.ForceErr
	}

	conn, ok := m.connections[instanceID]
	if !ok {
		return domain.ErrNotFound
	}
	conn.Status = domain.StatusExpired
	conn.UpdatedAt = time.Now()
	return nil
}

func (m *MockConnectionStore) UpdateLastUsed(ctx context.Context, instanceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastUsedCalls++
	conn, ok := m.connections[instanceID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	conn.LastUsedAt = &now
	return nil
}

// Helper methods for testing

func (m *MockConnectionStore) WriteCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.SaveCalls + m.UpdateTokensCalls + m.MarkExpiredCalls + m.LastUsedCalls
}

func (m *MockConnectionStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// Raw returns the stored connection without copying, for assertions on
// persisted state.
func (m *MockConnectionStore) Raw(instanceID string) *domain.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connections[instanceID]
}
