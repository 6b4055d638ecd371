package testutil

import (
	"testing"
	"time"

	"portal/portal-api/api"
)

func TestTokenAcceptedByTestModeAuth(t *testing.T) {
	t.Setenv("LOCAL_AUTH_MODE", "")
	t.Setenv("LOCAL_AUTH_SHARED_SECRET", "")
	t.Setenv("AUTH0_TEST_MODE", "1")
	t.Setenv("TEST_JWT_SECRET", "s3cret")
	t.Setenv("AUTH_AUDIENCE", "api://portal")
	t.Setenv("AUTH_ISSUER", "")

	tok, err := Token(Identity{Subject: "user-1", Email: "pm@example.com"})
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	auth := api.NewAuth(nil, "api://portal", "", api.ParseAllowList("", "example.com"))
	sub, err := auth.UserIDFromBearer([]byte(tok))
	if err != nil {
		t.Fatalf("token rejected: %v", err)
	}
	if sub != "user-1" {
		t.Fatalf("expected user-1, got %q", sub)
	}

	other, err := Token(Identity{Subject: "user-2", Email: "x@elsewhere.org"})
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if _, err := auth.UserIDFromBearer([]byte(other)); err == nil {
		t.Fatalf("expected allow-list rejection")
	}
}

func TestSignValidation(t *testing.T) {
	if _, err := Sign([]byte("k"), Identity{}, "", ""); err == nil {
		t.Fatalf("expected error for empty subject")
	}
	if _, err := Sign([]byte("k"), Identity{Subject: "s", TTL: time.Minute}, "", ""); err != nil {
		t.Fatalf("Sign: %v", err)
	}
}

func TestSecretRequired(t *testing.T) {
	t.Setenv("LOCAL_AUTH_SHARED_SECRET", "")
	t.Setenv("TEST_JWT_SECRET", "")
	if _, err := Token(Identity{Subject: "s"}); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
