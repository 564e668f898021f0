package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/harborlane/connect-core/internal/core/domain"
	"github.com/harborlane/connect-core/internal/core/ports/driven"
)

// Ensure Adapter implements AdminAuth
var _ driven.AdminAuth = (*Adapter)(nil)

// DefaultTokenValidity is how long an admin token stays valid.
const DefaultTokenValidity = 12 * time.Hour

// Adapter signs and validates admin API tokens using HS256 JWTs.
type Adapter struct {
	jwtSecret []byte
	validity  time.Duration
}

// NewAdapter creates a new auth adapter with the given JWT secret
func NewAdapter(jwtSecret string) *Adapter {
	return &Adapter{
		jwtSecret: []byte(jwtSecret),
		validity:  DefaultTokenValidity,
	}
}

// NewAdapterWithValidity creates a new auth adapter with custom token validity
func NewAdapterWithValidity(jwtSecret string, validity time.Duration) *Adapter {
	return &Adapter{
		jwtSecret: []byte(jwtSecret),
		validity:  validity,
	}
}

// GenerateToken creates a signed JWT for the given subject
func (a *Adapter) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.validity)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

// ParseToken validates a JWT and extracts its subject
func (a *Adapter) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}

	return claims.Subject, nil
}
