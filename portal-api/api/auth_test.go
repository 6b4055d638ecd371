package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

var testSecret = []byte("portal-secret")

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims(email string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "user-42",
		"aud":   "api://portal",
		"iss":   "https://login.example.com/",
		"email": email,
		"exp":   time.Now().Add(10 * time.Minute).Unix(),
		"iat":   time.Now().Add(-time.Minute).Unix(),
	}
}

func testAuth(allow *AllowList) *Auth {
	return &Auth{
		Audience:   "api://portal",
		Issuer:     "https://login.example.com/",
		TestMode:   true,
		TestSecret: testSecret,
		Allow:      allow,
	}
}

func TestBearerTokenParsing(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
		err    error
	}{
		{name: "valid", header: "Bearer a.b.c", want: "a.b.c"},
		{name: "lower case scheme", header: "bearer a.b.c", want: "a.b.c"},
		{name: "extra spaces", header: "  Bearer   a.b.c ", want: "a.b.c"},
		{name: "blank", header: "   ", err: errMissingAuthorization},
		{name: "basic scheme", header: "Basic dXNlcg==", err: errBadAuthorization},
		{name: "not a jwt", header: "Bearer opaque", err: errBadAuthorization},
		{name: "too many segments", header: "Bearer a.b.c.d", err: errBadAuthorization},
	}
	for _, tc := range cases {
		token, err := bearerTokenFromString(tc.header)
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.err, err)
			}
			continue
		}
		if err != nil || string(token) != tc.want {
			t.Fatalf("%s: got %q, %v", tc.name, token, err)
		}
	}
}

func TestUserIDFromAuthHeaderHS256(t *testing.T) {
	auth := testAuth(nil)
	signed := signTestToken(t, validClaims("ada@example.com"))

	userID, err := auth.UserIDFromAuthHeader("Bearer " + signed)
	if err != nil {
		t.Fatalf("unexpected error verifying token: %v", err)
	}
	if userID != "user-42" {
		t.Fatalf("unexpected user id: %s", userID)
	}
	if _, err := auth.UserIDFromAuthHeader(""); !errors.Is(err, errMissingAuthorization) {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestUserIDFromBearerRejectsInvalidTokens(t *testing.T) {
	auth := testAuth(nil)

	expired := validClaims("ada@example.com")
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongAudience := validClaims("ada@example.com")
	wrongAudience["aud"] = "api://other"
	noSubject := validClaims("ada@example.com")
	delete(noSubject, "sub")

	for name, claims := range map[string]jwt.MapClaims{
		"expired":        expired,
		"wrong audience": wrongAudience,
		"no subject":     noSubject,
	} {
		if _, err := auth.UserIDFromBearer([]byte(signTestToken(t, claims))); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims("ada@example.com")).SignedString([]byte("other"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	if _, err := auth.UserIDFromBearer([]byte(forged)); err == nil {
		t.Fatalf("expected signature rejection")
	}
}

func TestUserIDFromBearerAppliesAllowList(t *testing.T) {
	auth := testAuth(ParseAllowList("boss@partner.org", "example.com"))

	cases := []struct {
		claims jwt.MapClaims
		err    error
	}{
		{claims: validClaims("ada@example.com")},
		{claims: validClaims("Boss@Partner.org")},
		{claims: validClaims("eve@partner.org"), err: errNotAllowed},
		{claims: validClaims(""), err: errNotAllowed},
	}
	upn := validClaims("")
	delete(upn, "email")
	upn["upn"] = "grace@EXAMPLE.com"
	cases = append(cases, struct {
		claims jwt.MapClaims
		err    error
	}{claims: upn})

	for i, tc := range cases {
		_, err := auth.UserIDFromBearer([]byte(signTestToken(t, tc.claims)))
		if tc.err == nil && err != nil {
			t.Fatalf("case %d: unexpected error %v", i, err)
		}
		if tc.err != nil && !errors.Is(err, tc.err) {
			t.Fatalf("case %d: expected %v, got %v", i, tc.err, err)
		}
	}
}

func TestParseAllowList(t *testing.T) {
	if l := ParseAllowList(" , ", ""); l != nil {
		t.Fatalf("expected nil list for blank input")
	}
	var open *AllowList
	if !open.Allows("anyone@anywhere.io") {
		t.Fatalf("nil list must allow everyone")
	}

	l := ParseAllowList("ops@vendor.io", "@Example.com, corp.net")
	cases := map[string]bool{
		"ops@vendor.io":     true,
		"dev@vendor.io":     false,
		"a@example.com":     true,
		"a@sub.example.com": false,
		"b@CORP.NET":        true,
		"not-an-address":    false,
		"@example.com":      false,
		"  c@corp.net  ":    true,
	}
	for email, want := range cases {
		if got := l.Allows(email); got != want {
			t.Fatalf("Allows(%q) = %v, want %v", email, got, want)
		}
	}
}

func TestRequireAuthAcceptsQueryToken(t *testing.T) {
	auth := testAuth(nil)
	e := echo.New()
	var seen string
	h := RequireAuth(auth)(func(c echo.Context) error {
		seen = userIDFrom(c)
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/projects/p1/stream?token="+signTestToken(t, validClaims("ada@example.com")), nil)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK || seen != "user-42" {
		t.Fatalf("expected authenticated request, got %d user %q", rec.Code, seen)
	}

	rec = httptest.NewRecorder()
	if err := h(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/projects", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}
}
