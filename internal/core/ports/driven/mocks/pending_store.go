package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/harborlane/connect-core/internal/core/ports/driven"
)

// MockPendingInstallStore is an in-memory PendingInstallStore for testing.
type MockPendingInstallStore struct {
	mu      sync.Mutex
	pending map[string]*driven.PendingInstall
}

// NewMockPendingInstallStore creates a new MockPendingInstallStore.
func NewMockPendingInstallStore() *MockPendingInstallStore {
	return &MockPendingInstallStore{
		pending: make(map[string]*driven.PendingInstall),
	}
}

func (m *MockPendingInstallStore) Save(ctx context.Context, p *driven.PendingInstall) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *p
	m.pending[p.Token] = &cp
	return nil
}

func (m *MockPendingInstallStore) GetAndDelete(ctx context.Context, token string) (*driven.PendingInstall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[token]
	if !ok {
		return nil, nil
	}
	delete(m.pending, token)
	if time.Now().After(p.ExpiresAt) {
		return nil, nil
	}
	return p, nil
}

func (m *MockPendingInstallStore) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for token, p := range m.pending {
		if now.After(p.ExpiresAt) {
			delete(m.pending, token)
		}
	}
	return nil
}

// Age rewrites a stored pending install's expiry to now+remaining. A
// negative remaining makes it already expired.
func (m *MockPendingInstallStore) Age(token string, remaining time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pending[token]; ok {
		p.ExpiresAt = time.Now().Add(remaining)
	}
}

// Count returns the number of stored pending installs.
func (m *MockPendingInstallStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
