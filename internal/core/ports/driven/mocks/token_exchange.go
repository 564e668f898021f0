package mocks

import (
	"context"
	"sync"

	"github.com/harborlane/connect-core/internal/core/ports/driven"
)

// MockTokenExchangeClient is a scriptable TokenExchangeClient for testing.
type MockTokenExchangeClient struct {
	mu    sync.Mutex
	calls int

	// Grant is returned on success when ExchangeFn is not set.
	Grant *driven.TokenGrant

	// Err is returned when set and ExchangeFn is not set.
	Err error

	// ExchangeFn overrides the behavior entirely when set.
	ExchangeFn func(ctx context.Context, instanceID string) (*driven.TokenGrant, error)
}

// NewMockTokenExchangeClient creates a new MockTokenExchangeClient.
func NewMockTokenExchangeClient() *MockTokenExchangeClient {
	return &MockTokenExchangeClient{}
}

func (m *MockTokenExchangeClient) Exchange(ctx context.Context, instanceID string) (*driven.TokenGrant, error) {
	m.mu.Lock()
	m.calls++
	fn := m.ExchangeFn
	grant, err := m.Grant, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, instanceID)
	}
	if err != nil {
		return nil, err
	}
	if grant != nil {
		g := *grant
		return &g, nil
	}
	return &driven.TokenGrant{AccessToken: "mock-token", ExpiresIn: 14400}, nil
}

// Calls returns how many exchanges were performed.
func (m *MockTokenExchangeClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
