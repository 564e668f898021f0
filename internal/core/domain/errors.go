package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInstanceInvalid is the invalid-credential signal from the token
	// exchange endpoint: the platform reports the instance no longer exists
	// or was disconnected. Adapters return it wrapped; the lifecycle manager
	// converts it into a ReauthorizationRequiredError.
	ErrInstanceInvalid = errors.New("instance invalid")

	// ErrReauthorizationRequired is the match target for
	// ReauthorizationRequiredError. The instance ID is permanently invalid
	// and the installation flow must be re-run. Never retried automatically.
	ErrReauthorizationRequired = errors.New("reauthorization required")

	// ErrTokenExchangeFailed is the match target for TokenExchangeError.
	// Transient or unexpected exchange failure; safe to retry with backoff.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrPendingInstallInvalid indicates the install correlation token is
	// unknown, already consumed, or expired.
	ErrPendingInstallInvalid = errors.New("pending install invalid")
)

// ReauthorizationRequiredError reports that a connection's instance ID was
// rejected by the platform. Callers match it with
// errors.Is(err, ErrReauthorizationRequired) or errors.As to recover the
// instance ID for their re-installation flow.
type ReauthorizationRequiredError struct {
	InstanceID string
}

func (e *ReauthorizationRequiredError) Error() string {
	return fmt.Sprintf("reauthorization required for instance %s", e.InstanceID)
}

func (e *ReauthorizationRequiredError) Is(target error) bool {
	return target == ErrReauthorizationRequired
}

// TokenExchangeError reports a transient or unexpected token exchange
// failure: network error, malformed response, missing token field. The
// underlying cause is preserved for logging and matching.
type TokenExchangeError struct {
	InstanceID string
	Cause      error
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed for instance %s: %v", e.InstanceID, e.Cause)
}

func (e *TokenExchangeError) Unwrap() error { return e.Cause }

func (e *TokenExchangeError) Is(target error) bool {
	return target == ErrTokenExchangeFailed
}
