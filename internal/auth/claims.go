// Package auth extracts the identity descriptor the session registry consumes
// from tokens issued by the external OAuth flow. Token verification happens in
// that flow before a token reaches this process; this package only reads claims.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the authentication subsystem supplies to the session registry.
type Identity struct {
	UserID    string
	Label     string
	ExpiresAt time.Time // zero when the token carries no expiry
}

// FromIDToken extracts subject, display name, and expiry from an ID token
// without verifying the signature. Returns an error for malformed tokens or
// tokens with no subject.
func FromIDToken(raw string) (*Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("auth: token has no subject")
	}
	id := &Identity{UserID: sub, Label: sub}
	if name, ok := claims["name"].(string); ok && name != "" {
		id.Label = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		id.ExpiresAt = exp.Time
	}
	return id, nil
}
