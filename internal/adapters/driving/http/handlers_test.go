package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driving"
)

// Mock services for testing

type mockInstallService struct {
	beginFn    func(ctx context.Context, req driving.BeginInstallRequest) (*driving.BeginInstallResponse, error)
	completeFn func(ctx context.Context, req driving.CompleteInstallRequest) (*driving.CompleteInstallResponse, error)
}

func (m *mockInstallService) BeginInstall(ctx context.Context, req driving.BeginInstallRequest) (*driving.BeginInstallResponse, error) {
	if m.beginFn != nil {
		return m.beginFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockInstallService) CompleteInstall(ctx context.Context, req driving.CompleteInstallRequest) (*driving.CompleteInstallResponse, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockConnectionService struct {
	listFn   func(ctx context.Context) ([]*domain.ConnectionSummary, error)
	getFn    func(ctx context.Context, instanceID string) (*domain.ConnectionSummary, error)
	deleteFn func(ctx context.Context, instanceID string) error
	testFn   func(ctx context.Context, instanceID string) error
}

func (m *mockConnectionService) Register(ctx context.Context, req driving.RegisterRequest) (*domain.ConnectionSummary, error) {
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) Get(ctx context.Context, instanceID string) (*domain.ConnectionSummary, error) {
	if m.getFn != nil {
		return m.getFn(ctx, instanceID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) List(ctx context.Context) ([]*domain.ConnectionSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockConnectionService) Delete(ctx context.Context, instanceID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, instanceID)
	}
	return errors.New("not implemented")
}

func (m *mockConnectionService) TestConnection(ctx context.Context, instanceID string) error {
	if m.testFn != nil {
		return m.testFn(ctx, instanceID)
	}
	return errors.New("not implemented")
}

type mockTokenService struct {
	getTokenFn func(ctx context.Context, instanceID string) (string, error)
}

func (m *mockTokenService) GetValidAccessToken(ctx context.Context, instanceID string) (string, error) {
	if m.getTokenFn != nil {
		return m.getTokenFn(ctx, instanceID)
	}
	return "", errors.New("not implemented")
}

// mockAdminAuth accepts exactly one token value.
type mockAdminAuth struct {
	validToken string
}

func (m *mockAdminAuth) GenerateToken(subject string) (string, error) {
	return m.validToken, nil
}

func (m *mockAdminAuth) ParseToken(token string) (string, error) {
	if token == m.validToken {
		return "admin", nil
	}
	return "", domain.ErrUnauthorized
}

type testServerOpts struct {
	install *mockInstallService
	conns   *mockConnectionService
	tokens  *mockTokenService
}

func newTestServer(opts testServerOpts) *Server {
	if opts.install == nil {
		opts.install = &mockInstallService{}
	}
	if opts.conns == nil {
		opts.conns = &mockConnectionService{}
	}
	if opts.tokens == nil {
		opts.tokens = &mockTokenService{}
	}
	return NewServer(
		Config{Host: "127.0.0.1", Port: 0, Version: "test"},
		opts.install,
		opts.conns,
		opts.tokens,
		&mockAdminAuth{validToken: "good-token"},
		nil,
		nil,
	)
}

func doRequest(s *Server, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(testServerOpts{})

	rec := doRequest(s, "GET", "/health", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	s := newTestServer(testServerOpts{})

	rec := doRequest(s, "GET", "/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %q, want test", body["version"])
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("down") }

func TestHandleReady_DatabaseDown(t *testing.T) {
	s := newTestServer(testServerOpts{})
	s.db = failingPinger{}

	rec := doRequest(s, "GET", "/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestHandleBeginInstall(t *testing.T) {
	install := &mockInstallService{
		beginFn: func(ctx context.Context, req driving.BeginInstallRequest) (*driving.BeginInstallResponse, error) {
			if req.TenantID != "tenant-1" {
				t.Errorf("tenant = %q, want tenant-1", req.TenantID)
			}
			return &driving.BeginInstallResponse{
				InstallerURL: "https://marketplace.example.com/installer?state=tok",
			}, nil
		},
	}
	s := newTestServer(testServerOpts{install: install})

	rec := doRequest(s, "GET", "/api/v1/connect?tenant_id=tenant-1", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://marketplace.example.com/installer?state=tok" {
		t.Errorf("location = %q", loc)
	}
}

func TestHandleInstallCallback_RedirectsToReturnURL(t *testing.T) {
	install := &mockInstallService{
		completeFn: func(ctx context.Context, req driving.CompleteInstallRequest) (*driving.CompleteInstallResponse, error) {
			if req.Token != "state-1" || req.InstanceID != "abc" {
				t.Errorf("unexpected request: %+v", req)
			}
			return &driving.CompleteInstallResponse{
				InstanceDigest: domain.InstanceDigest("abc"),
				TenantID:       "tenant-1",
				ReturnURL:      "https://app.example.com/settings",
			}, nil
		},
	}
	s := newTestServer(testServerOpts{install: install})

	rec := doRequest(s, "GET", "/api/v1/connect/callback?state=state-1&instance_id=abc", "")
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.example.com/settings" {
		t.Errorf("location = %q", loc)
	}
}

func TestHandleInstallCallback_InvalidState(t *testing.T) {
	install := &mockInstallService{
		completeFn: func(ctx context.Context, req driving.CompleteInstallRequest) (*driving.CompleteInstallResponse, error) {
			return nil, domain.ErrPendingInstallInvalid
		},
	}
	s := newTestServer(testServerOpts{install: install})

	rec := doRequest(s, "GET", "/api/v1/connect/callback?state=bad&instance_id=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleListConnections_RequiresAuth(t *testing.T) {
	s := newTestServer(testServerOpts{})

	rec := doRequest(s, "GET", "/api/v1/connections", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = doRequest(s, "GET", "/api/v1/connections", "bad-token")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d, want 401", rec.Code)
	}
}

func TestHandleListConnections(t *testing.T) {
	now := time.Now()
	conns := &mockConnectionService{
		listFn: func(ctx context.Context) ([]*domain.ConnectionSummary, error) {
			return []*domain.ConnectionSummary{
				{
					InstanceDigest: domain.InstanceDigest("abc"),
					TenantID:       "tenant-1",
					Status:         domain.StatusActive,
					CreatedAt:      now,
				},
			}, nil
		},
	}
	s := newTestServer(testServerOpts{conns: conns})

	rec := doRequest(s, "GET", "/api/v1/connections", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Connections []*domain.ConnectionSummary `json:"connections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Connections) != 1 {
		t.Fatalf("got %d connections, want 1", len(body.Connections))
	}
	if body.Connections[0].TenantID != "tenant-1" {
		t.Errorf("tenant = %q, want tenant-1", body.Connections[0].TenantID)
	}
}

func TestHandleGetConnection_NotFound(t *testing.T) {
	conns := &mockConnectionService{
		getFn: func(ctx context.Context, instanceID string) (*domain.ConnectionSummary, error) {
			return nil, domain.ErrNotFound
		},
	}
	s := newTestServer(testServerOpts{conns: conns})

	rec := doRequest(s, "GET", "/api/v1/connections/nope", "good-token")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleDeleteConnection(t *testing.T) {
	var deleted string
	conns := &mockConnectionService{
		deleteFn: func(ctx context.Context, instanceID string) error {
			deleted = instanceID
			return nil
		},
	}
	s := newTestServer(testServerOpts{conns: conns})

	rec := doRequest(s, "DELETE", "/api/v1/connections/abc", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if deleted != "abc" {
		t.Errorf("deleted = %q, want abc", deleted)
	}
}

func TestHandleGetAccessToken(t *testing.T) {
	tokens := &mockTokenService{
		getTokenFn: func(ctx context.Context, instanceID string) (string, error) {
			if instanceID != "abc" {
				t.Errorf("instance id = %q, want abc", instanceID)
			}
			return "tok1", nil
		},
	}
	s := newTestServer(testServerOpts{tokens: tokens})

	rec := doRequest(s, "POST", "/api/v1/connections/abc/token", "good-token")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.AccessToken != "tok1" {
		t.Errorf("access token = %q, want tok1", body.AccessToken)
	}
}

func TestHandleGetAccessToken_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"reauthorization required", &domain.ReauthorizationRequiredError{InstanceID: "abc"}, http.StatusConflict},
		{"exchange failed", &domain.TokenExchangeError{InstanceID: "abc", Cause: errors.New("boom")}, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockTokenService{
				getTokenFn: func(ctx context.Context, instanceID string) (string, error) {
					return "", tt.err
				},
			}
			s := newTestServer(testServerOpts{tokens: tokens})

			rec := doRequest(s, "POST", "/api/v1/connections/abc/token", "good-token")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleTestConnection(t *testing.T) {
	conns := &mockConnectionService{
		testFn: func(ctx context.Context, instanceID string) error {
			return &domain.ReauthorizationRequiredError{InstanceID: instanceID}
		},
	}
	s := newTestServer(testServerOpts{conns: conns})

	rec := doRequest(s, "POST", "/api/v1/connections/abc/test", "good-token")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}
