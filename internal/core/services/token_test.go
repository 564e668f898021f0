package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
	"github.com/harborlane/connect-core/internal/core/ports/driven/mocks"
)

func newTokenFixture() (*mocks.MockConnectionStore, *mocks.MockTokenExchangeClient, *tokenService) {
	store := mocks.NewMockConnectionStore()
	exchange := mocks.NewMockTokenExchangeClient()
	svc := NewTokenService(TokenServiceConfig{
		ConnectionStore: store,
		ExchangeClient:  exchange,
	}).(*tokenService)
	return store, exchange, svc
}

func seedConnection(t *testing.T, store *mocks.MockConnectionStore, token string, expiresIn time.Duration) {
	t.Helper()
	conn := &domain.Connection{
		InstanceID: "abc",
		TenantID:   "tenant-1",
		Status:     domain.StatusActive,
		Secrets:    &domain.ConnectionSecrets{InstanceID: "abc"},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if token != "" {
		exp := time.Now().Add(expiresIn)
		conn.Secrets.AccessToken = token
		conn.ExpiresAt = &exp
	}
	if err := store.Save(context.Background(), conn); err != nil {
		t.Fatalf("seed connection: %v", err)
	}
	store.SaveCalls = 0
}

func TestGetValidAccessToken_FreshToken_NoNetworkNoWrite(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "tok1", 10*time.Minute)

	got, err := svc.GetValidAccessToken(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if got != "tok1" {
		t.Errorf("GetValidAccessToken() = %q, want tok1", got)
	}
	if exchange.Calls() != 0 {
		t.Errorf("exchange calls = %d, want 0", exchange.Calls())
	}
	if store.WriteCalls() != 0 {
		t.Errorf("store writes = %d, want 0", store.WriteCalls())
	}
}

func TestGetValidAccessToken_StaleToken_SingleExchange(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "tok1", 2*time.Minute)
	exchange.Grant = &driven.TokenGrant{AccessToken: "tok2", ExpiresIn: 14400}

	got, err := svc.GetValidAccessToken(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if got != "tok2" {
		t.Errorf("GetValidAccessToken() = %q, want tok2", got)
	}
	if exchange.Calls() != 1 {
		t.Errorf("exchange calls = %d, want exactly 1", exchange.Calls())
	}

	stored := store.Raw("abc")
	if stored.AccessToken() != "tok2" {
		t.Errorf("stored token = %q, want tok2", stored.AccessToken())
	}
	if stored.ExpiresAt == nil {
		t.Fatal("stored expiry is nil after successful refresh")
	}
	wantExpiry := time.Now().Add(4 * time.Hour)
	if diff := stored.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("stored expiry = %v, want about now+4h", stored.ExpiresAt)
	}
}

func TestGetValidAccessToken_NoToken_TriggersExchange(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "", 0)
	exchange.Grant = &driven.TokenGrant{AccessToken: "tok-first", ExpiresIn: 3600}

	got, err := svc.GetValidAccessToken(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if got != "tok-first" {
		t.Errorf("GetValidAccessToken() = %q, want tok-first", got)
	}
	if exchange.Calls() != 1 {
		t.Errorf("exchange calls = %d, want 1", exchange.Calls())
	}

	// Token and expiry are persisted together, never one without the other.
	stored := store.Raw("abc")
	if !stored.HasToken() {
		t.Error("expected token and expiry stored together")
	}
}

func TestGetValidAccessToken_PastExpiry_TriggersExchange(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "tok-old", -time.Hour)
	exchange.Grant = &driven.TokenGrant{AccessToken: "tok-new", ExpiresIn: 3600}

	got, err := svc.GetValidAccessToken(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if got != "tok-new" {
		t.Errorf("GetValidAccessToken() = %q, want tok-new", got)
	}
	if exchange.Calls() != 1 {
		t.Errorf("exchange calls = %d, want 1", exchange.Calls())
	}
}

func TestGetValidAccessToken_InvalidInstance_MarksExpired(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "tok1", time.Minute)
	exchange.Err = fmt.Errorf("exchange returned 401: %w", domain.ErrInstanceInvalid)

	_, err := svc.GetValidAccessToken(context.Background(), "abc")
	if !errors.Is(err, domain.ErrReauthorizationRequired) {
		t.Fatalf("error = %v, want ReauthorizationRequired", err)
	}

	var reauth *domain.ReauthorizationRequiredError
	if !errors.As(err, &reauth) || reauth.InstanceID != "abc" {
		t.Errorf("error does not name the instance: %v", err)
	}

	stored := store.Raw("abc")
	if stored.Status != domain.StatusExpired {
		t.Errorf("stored status = %q, want expired", stored.Status)
	}
	// The cached token material is never touched on this path.
	if stored.AccessToken() != "tok1" {
		t.Errorf("stored token = %q, want untouched tok1", stored.AccessToken())
	}
	if store.UpdateTokensCalls != 0 {
		t.Errorf("UpdateTokens calls = %d, want 0", store.UpdateTokensCalls)
	}
}

func TestGetValidAccessToken_TransientFailure_LeavesStateUnchanged(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "tok1", time.Minute)
	before := *store.Raw("abc")
	exchange.Err = errors.New("read response: connection reset")

	_, err := svc.GetValidAccessToken(context.Background(), "abc")
	if !errors.Is(err, domain.ErrTokenExchangeFailed) {
		t.Fatalf("error = %v, want TokenExchangeFailed", err)
	}
	if errors.Is(err, domain.ErrReauthorizationRequired) {
		t.Error("transient failure must not be classified as reauthorization")
	}

	after := store.Raw("abc")
	if after.Status != before.Status || after.AccessToken() != before.AccessToken() {
		t.Error("stored connection changed on a transient failure")
	}
	if !after.ExpiresAt.Equal(*before.ExpiresAt) {
		t.Error("stored expiry changed on a transient failure")
	}
	if store.WriteCalls() != 0 {
		t.Errorf("store writes = %d, want 0", store.WriteCalls())
	}
}

func TestGetValidAccessToken_ExpiredConnection_NoExchange(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "tok1", time.Hour)
	if err := store.MarkExpired(context.Background(), "abc"); err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	store.MarkExpiredCalls = 0

	_, err := svc.GetValidAccessToken(context.Background(), "abc")
	if !errors.Is(err, domain.ErrReauthorizationRequired) {
		t.Fatalf("error = %v, want ReauthorizationRequired", err)
	}
	if exchange.Calls() != 0 {
		t.Errorf("exchange calls = %d, want 0 for an expired connection", exchange.Calls())
	}
}

func TestGetValidAccessToken_UnknownInstance(t *testing.T) {
	_, exchange, svc := newTokenFixture()

	_, err := svc.GetValidAccessToken(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if exchange.Calls() != 0 {
		t.Errorf("exchange calls = %d, want 0", exchange.Calls())
	}
}

func TestGetValidAccessToken_MissingExpiresIn_DefaultTTL(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "", 0)
	exchange.Grant = &driven.TokenGrant{AccessToken: "tok-x"}

	if _, err := svc.GetValidAccessToken(context.Background(), "abc"); err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}

	stored := store.Raw("abc")
	if stored.ExpiresAt == nil {
		t.Fatal("expiry must be set even when expires_in was omitted")
	}
	wantExpiry := time.Now().Add(DefaultTokenTTL)
	if diff := stored.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Errorf("stored expiry = %v, want about now+%v", stored.ExpiresAt, DefaultTokenTTL)
	}
}

func TestGetValidAccessToken_CancelledCaller_ExchangeStillCompletes(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "", 0)

	exchange.ExchangeFn = func(ctx context.Context, instanceID string) (*driven.TokenGrant, error) {
		// The exchange must run on a context detached from the caller's
		// cancellation so a cancelled consumer cannot poison the cache.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &driven.TokenGrant{AccessToken: "tok-y", ExpiresIn: 3600}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := svc.GetValidAccessToken(ctx, "abc")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if got != "tok-y" {
		t.Errorf("GetValidAccessToken() = %q, want tok-y", got)
	}
	if store.Raw("abc").AccessToken() != "tok-y" {
		t.Error("refreshed token was not persisted for other consumers")
	}
}

func TestGetValidAccessToken_SupersededWrite_StillReturnsToken(t *testing.T) {
	store, exchange, svc := newTokenFixture()
	seedConnection(t, store, "tok-old", 2*time.Minute)

	// A concurrent refresher lands a newer expiry while our exchange is in
	// flight. The monotonic store refuses our write; the freshly granted
	// token is still returned to this caller.
	exchange.ExchangeFn = func(ctx context.Context, instanceID string) (*driven.TokenGrant, error) {
		newer := time.Now().Add(24 * time.Hour)
		raced := store.Raw("abc")
		raced.Secrets.AccessToken = "tok-winner"
		raced.ExpiresAt = &newer
		return &driven.TokenGrant{AccessToken: "tok-race", ExpiresIn: 60}, nil
	}

	got, err := svc.GetValidAccessToken(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetValidAccessToken() error = %v", err)
	}
	if got != "tok-race" {
		t.Errorf("GetValidAccessToken() = %q, want tok-race", got)
	}
	if store.Raw("abc").AccessToken() != "tok-winner" {
		t.Errorf("stored token = %q, monotonic store must keep the newer write", store.Raw("abc").AccessToken())
	}
}
