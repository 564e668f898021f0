package services

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
	"github.com/harborlane/connect-core/internal/core/ports/driving"
)

// Ensure installService implements InstallService
var _ driving.InstallService = (*installService)(nil)

// pendingInstallTTL is how long a started install flow stays valid.
const pendingInstallTTL = 10 * time.Minute

// InstallServiceConfig holds configuration for the install service.
type InstallServiceConfig struct {
	// PendingStore manages the short-lived install correlation records.
	PendingStore driven.PendingInstallStore

	// ConnectionService registers the connection once the callback lands.
	ConnectionService driving.ConnectionService

	// InstallerURL is the platform's app installer page.
	// Example: "https://marketplace.example.com/installer"
	InstallerURL string

	// AppID identifies this app on the platform.
	AppID string
}

// installService implements the InstallService interface.
type installService struct {
	pendingStore driven.PendingInstallStore
	connections  driving.ConnectionService
	installerURL string
	appID        string
}

// NewInstallService creates a new install service.
func NewInstallService(cfg InstallServiceConfig) driving.InstallService {
	return &installService{
		pendingStore: cfg.PendingStore,
		connections:  cfg.ConnectionService,
		installerURL: cfg.InstallerURL,
		appID:        cfg.AppID,
	}
}

// BeginInstall mints a single-use correlation token, records the pending
// install, and returns the installer redirect URL carrying the token.
func (s *installService) BeginInstall(ctx context.Context, req driving.BeginInstallRequest) (*driving.BeginInstallResponse, error) {
	token := uuid.NewString()
	now := time.Now()

	pending := &driven.PendingInstall{
		Token:     token,
		TenantID:  req.TenantID,
		ReturnURL: req.ReturnURL,
		CreatedAt: now,
		ExpiresAt: now.Add(pendingInstallTTL),
	}
	if err := s.pendingStore.Save(ctx, pending); err != nil {
		return nil, fmt.Errorf("save pending install: %w", err)
	}

	installer, err := url.Parse(s.installerURL)
	if err != nil {
		return nil, fmt.Errorf("parse installer url: %w", err)
	}
	q := installer.Query()
	q.Set("appId", s.appID)
	q.Set("state", token)
	installer.RawQuery = q.Encode()

	return &driving.BeginInstallResponse{InstallerURL: installer.String()}, nil
}

// CompleteInstall consumes the correlation token and registers the
// connection for the instance ID the platform issued.
func (s *installService) CompleteInstall(ctx context.Context, req driving.CompleteInstallRequest) (*driving.CompleteInstallResponse, error) {
	if req.InstanceID == "" {
		return nil, fmt.Errorf("%w: instance id is required", domain.ErrInvalidInput)
	}

	pending, err := s.pendingStore.GetAndDelete(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("get pending install: %w", err)
	}
	if pending == nil {
		return nil, domain.ErrPendingInstallInvalid
	}

	summary, err := s.connections.Register(ctx, driving.RegisterRequest{
		InstanceID: req.InstanceID,
		TenantID:   pending.TenantID,
	})
	if err != nil {
		return nil, fmt.Errorf("register connection: %w", err)
	}

	return &driving.CompleteInstallResponse{
		InstanceDigest: summary.InstanceDigest,
		TenantID:       summary.TenantID,
		ReturnURL:      pending.ReturnURL,
	}, nil
}
