// Package testutil mints bearer tokens accepted by portal-api in shared-secret
// auth mode.
package testutil

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Identity describes the account a test token is issued for.
type Identity struct {
	Subject string
	Email   string
	TTL     time.Duration
}

// Secret returns the shared secret portal-api validates test tokens with.
func Secret() (string, error) {
	if s := os.Getenv("LOCAL_AUTH_SHARED_SECRET"); s != "" {
		return s, nil
	}
	if s := os.Getenv("TEST_JWT_SECRET"); s != "" {
		return s, nil
	}
	return "", errors.New("TEST_JWT_SECRET or LOCAL_AUTH_SHARED_SECRET must be set")
}

// Token signs an HS256 token for id. AUTH_AUDIENCE and AUTH_ISSUER are copied into
// the claims when set, matching what the API checks.
func Token(id Identity) (string, error) {
	secret, err := Secret()
	if err != nil {
		return "", err
	}
	return Sign([]byte(secret), id, os.Getenv("AUTH_AUDIENCE"), os.Getenv("AUTH_ISSUER"))
}

// Sign builds the claims for id and signs them with secret.
func Sign(secret []byte, id Identity, audience, issuer string) (string, error) {
	if id.Subject == "" {
		return "", errors.New("subject is required")
	}
	ttl := id.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": id.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}
	if audience != "" {
		claims["aud"] = audience
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
