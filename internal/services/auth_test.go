package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/localmind-ai/localmind-backend/internal/data/repos"
	"github.com/localmind-ai/localmind-backend/internal/data/repos/testutil"
	"github.com/localmind-ai/localmind-backend/internal/services"
)

func newAuthService(t *testing.T) services.AuthService {
	t.Helper()
	log := testutil.Logger(t)
	tx := testutil.Tx(t, testutil.DB(t))
	return services.NewAuthService(tx, log, repos.NewUserRepo(tx, log), "testsecret", time.Hour)
}

func TestLoginCreatesUserOnFirstSight(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token == "" {
		t.Fatalf("expected a token")
	}
	if user.Username != "alice" {
		t.Fatalf("unexpected username: %q", user.Username)
	}

	_, again, err := svc.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second login must reuse the user: %s != %s", again.ID, user.ID)
	}
}

func TestLoginRejectsEmptyUsername(t *testing.T) {
	svc := newAuthService(t)
	for _, name := range []string{"", "   ", strings.Repeat("x", 200)} {
		if _, _, err := svc.Login(context.Background(), name); err == nil {
			t.Fatalf("expected Login(%q) to fail", name)
		}
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	svc := newAuthService(t)
	token, user, err := svc.Login(context.Background(), "bob")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if id != user.ID {
		t.Fatalf("token subject mismatch: %s != %s", id, user.ID)
	}
}

func TestParseTokenRejectsForgeries(t *testing.T) {
	svc := newAuthService(t)
	token, _, err := svc.Login(context.Background(), "carol")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	for _, bad := range []string{"", "not-a-jwt", token + "tampered"} {
		if _, err := svc.ParseToken(bad); err == nil {
			t.Fatalf("expected ParseToken(%q) to fail", bad)
		}
	}

	log := testutil.Logger(t)
	tx := testutil.Tx(t, testutil.DB(t))
	other := services.NewAuthService(tx, log, repos.NewUserRepo(tx, log), "differentsecret", time.Hour)
	if _, err := other.ParseToken(token); err == nil {
		t.Fatalf("token signed with another key must be rejected")
	}
}
