package driven

import "context"

// TokenGrant is the result of a successful token exchange.
type TokenGrant struct {
	// AccessToken is the short-lived app-identity token.
	AccessToken string

	// ExpiresIn is the token lifetime in seconds. Zero when the platform
	// omitted the field.
	ExpiresIn int
}

// TokenExchangeClient performs the server-to-server client-credentials
// exchange against the platform's token endpoint.
//
// Implementations must classify an HTTP 400/401 response as the
// invalid-credential signal by returning an error wrapping
// domain.ErrInstanceInvalid, distinct from any other failure. A 2xx response
// without an access_token field is a plain failure, not an invalid-credential
// signal. The exchange is stateless and idempotent per call.
type TokenExchangeClient interface {
	Exchange(ctx context.Context, instanceID string) (*TokenGrant, error)
}
