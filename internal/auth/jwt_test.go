package auth

import (
	"errors"
	"testing"
	"time"

	"call-insights/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "call-insights",
		OperatorKey:     "op-key",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestExchangeAndVerify(t *testing.T) {
	m := testManager(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	pair, err := m.Exchange(now, "op-key", "alex")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.ExpiresIn != 900 {
		t.Fatalf("unexpected expires_in %d", pair.ExpiresIn)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Operator != "alex" || claims.Scope != ScopeAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestExchangeRejectsBadKey(t *testing.T) {
	m := testManager(t)
	if _, err := m.Exchange(time.Now(), "wrong", "alex"); !errors.Is(err, ErrBadOperatorKey) {
		t.Fatalf("expected ErrBadOperatorKey, got %v", err)
	}
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := testManager(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	pair, err := m.IssuePair(now, "alex")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := m.Verify(pair.RefreshToken, TokenTypeAccess, now); err == nil {
		t.Fatal("refresh token must not verify as access")
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := testManager(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	pair, err := m.IssuePair(now, "alex")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(16*time.Minute)); err == nil {
		t.Fatal("expected expiry rejection")
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	m := testManager(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	pair, err := m.IssuePair(now, "alex")
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	next, err := m.Refresh(now.Add(time.Hour), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	claims, err := m.Verify(next.AccessToken, TokenTypeAccess, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Verify refreshed: %v", err)
	}
	if claims.Operator != "alex" {
		t.Fatalf("operator lost across refresh: %+v", claims)
	}
}
