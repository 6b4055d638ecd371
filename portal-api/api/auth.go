package api

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultJWKSCacheTTL = 15 * time.Minute
	envAuth0TestMode    = "AUTH0_TEST_MODE"
	envTestJWTSecret    = "TEST_JWT_SECRET"
	envLocalAuthMode    = "LOCAL_AUTH_MODE"
	envLocalAuthSecret  = "LOCAL_AUTH_SHARED_SECRET"
	envJWKSCacheTTL     = "JWKS_CACHE_TTL"
)

var errNotAllowed = errors.New("account is not allowed to use this portal")

// emailClaims are checked in order for the address matched against the allow-list.
var emailClaims = []string{"email", "preferred_username", "upn"}

// Auth validates bearer tokens issued by the identity provider and applies the
// sign-in allow-list.
type Auth struct {
	JWKS       *keyfunc.JWKS
	Audience   string
	Issuer     string
	TestMode   bool
	TestSecret []byte
	Allow      *AllowList

	parser      *jwt.Parser
	keyCache    sync.Map
	keyCacheTTL time.Duration
}

type cachedKey struct {
	key       any
	expiresAt time.Time
}

// NewAuth creates an Auth. LOCAL_AUTH_MODE=hs256 or AUTH0_TEST_MODE=1 switch it to
// shared-secret validation for local runs and tests.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string, allow *AllowList) *Auth {
	a := &Auth{JWKS: jwks, Audience: audience, Issuer: issuer, Allow: allow}
	a.keyCacheTTL = EnvDur(envJWKSCacheTTL, defaultJWKSCacheTTL)

	if mode := strings.ToLower(os.Getenv(envLocalAuthMode)); mode != "" {
		if mode != "hs256" {
			panic("unsupported LOCAL_AUTH_MODE value")
		}
		secret := os.Getenv(envLocalAuthSecret)
		if secret == "" {
			panic("LOCAL_AUTH_SHARED_SECRET must be set when LOCAL_AUTH_MODE=hs256")
		}
		a.TestMode = true
		a.TestSecret = []byte(secret)
	} else if os.Getenv(envAuth0TestMode) == "1" {
		secret := os.Getenv(envTestJWTSecret)
		if secret == "" {
			panic("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
		}
		a.TestMode = true
		a.TestSecret = []byte(secret)
	}

	a.parser = newParser(a.TestMode)
	return a
}

func newParser(testMode bool) *jwt.Parser {
	if testMode {
		return jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	}
	return jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
}

// UserIDFromAuthHeader returns the subject of a valid, allowed bearer token.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	if h == "" {
		return "", errMissingAuthorization
	}
	token, err := bearerTokenFromString(h)
	if err != nil {
		return "", err
	}
	return a.UserIDFromBearer(token)
}

// UserIDFromBearer validates a raw token and returns its subject.
func (a *Auth) UserIDFromBearer(token []byte) (string, error) {
	if len(token) == 0 {
		return "", errBadAuthorization
	}
	if a.parser == nil {
		a.parser = newParser(a.TestMode)
	}

	parsed, err := a.parser.Parse(readOnlyString(token), func(t *jwt.Token) (any, error) {
		if a.TestMode {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return a.TestSecret, nil
		}
		return a.keyForToken(t)
	})
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", errors.New("token not valid yet")
	}
	if !claims.VerifyIssuedAt(now, false) {
		return "", errors.New("token used before issued")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return "", errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return "", errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	if !a.Allow.Allows(emailFromClaims(claims)) {
		return "", errNotAllowed
	}
	return sub, nil
}

func emailFromClaims(claims jwt.MapClaims) string {
	for _, name := range emailClaims {
		if v, ok := claims[name].(string); ok && strings.Contains(v, "@") {
			return v
		}
	}
	return ""
}

func (a *Auth) keyForToken(token *jwt.Token) (any, error) {
	if a.JWKS == nil {
		return nil, errors.New("jwks not configured")
	}

	kid, _ := token.Header["kid"].(string)
	if kid != "" && a.keyCacheTTL > 0 {
		if cached, ok := a.keyCache.Load(kid); ok {
			entry := cached.(cachedKey)
			if time.Now().Before(entry.expiresAt) {
				return entry.key, nil
			}
			a.keyCache.Delete(kid)
		}
	}

	key, err := a.JWKS.Keyfunc(token)
	if err != nil {
		return nil, err
	}
	if kid != "" && a.keyCacheTTL > 0 {
		a.keyCache.Store(kid, cachedKey{key: key, expiresAt: time.Now().Add(a.keyCacheTTL)})
	}
	return key, nil
}

// AllowList restricts sign-in to listed addresses and domains. A nil list allows
// every authenticated account.
type AllowList struct {
	emails  map[string]struct{}
	domains map[string]struct{}
}

// ParseAllowList builds a list from comma separated addresses and domains. It
// returns nil when both are empty.
func ParseAllowList(emails, domains string) *AllowList {
	l := &AllowList{emails: map[string]struct{}{}, domains: map[string]struct{}{}}
	for _, e := range strings.Split(emails, ",") {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			l.emails[e] = struct{}{}
		}
	}
	for _, d := range strings.Split(domains, ",") {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "@")
		if d != "" {
			l.domains[d] = struct{}{}
		}
	}
	if len(l.emails) == 0 && len(l.domains) == 0 {
		return nil
	}
	return l
}

// Allows reports whether email matches a listed address exactly or belongs to a
// listed domain. Comparison is case-insensitive.
func (l *AllowList) Allows(email string) bool {
	if l == nil {
		return true
	}
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndexByte(email, '@')
	if at <= 0 {
		return false
	}
	if _, ok := l.emails[email]; ok {
		return true
	}
	_, ok := l.domains[email[at+1:]]
	return ok
}
