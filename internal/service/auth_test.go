package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rolfenpp/ChronoBit-API/internal/domain"
)

type mockIdentityRecorder struct {
	remembered []domain.Identity
}

func (m *mockIdentityRecorder) Remember(ctx context.Context, identity domain.Identity) error {
	m.remembered = append(m.remembered, identity)
	return nil
}

func newTestAuth(rec IdentityRecorder) *AuthService {
	return NewAuthService(AuthConfig{Secret: "test-secret", Issuer: "idp.example.com", Audience: "chronobit"}, rec)
}

func TestAuthJwtRoundTrip(t *testing.T) {
	rec := &mockIdentityRecorder{}
	auth := newTestAuth(rec)

	token, err := auth.Issue("U1", "U1@Example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	result, err := auth.AuthJwt(context.Background(), token)
	if err != nil {
		t.Fatalf("auth failed: %v", err)
	}
	if result.UserID != "U1" || result.Email != "u1@example.com" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(rec.remembered) != 1 || rec.remembered[0].ID != "U1" {
		t.Fatalf("expected identity to be remembered, got %+v", rec.remembered)
	}
}

func TestAuthJwtRejectsExpired(t *testing.T) {
	auth := newTestAuth(nil)

	token, err := auth.Issue("U1", "", -time.Minute)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := auth.AuthJwt(context.Background(), token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestAuthJwtRejectsWrongSecret(t *testing.T) {
	other := NewAuthService(AuthConfig{Secret: "other", Issuer: "idp.example.com", Audience: "chronobit"}, nil)
	token, err := other.Issue("U1", "", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := newTestAuth(nil).AuthJwt(context.Background(), token); err == nil {
		t.Fatalf("expected signature mismatch to be rejected")
	}
}

func TestAuthJwtRejectsWrongAudience(t *testing.T) {
	other := NewAuthService(AuthConfig{Secret: "test-secret", Issuer: "idp.example.com", Audience: "someone-else"}, nil)
	token, err := other.Issue("U1", "", time.Hour)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := newTestAuth(nil).AuthJwt(context.Background(), token); err == nil {
		t.Fatalf("expected audience mismatch to be rejected")
	}
}

func TestAuthJwtRejectsMissingSubject(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "idp.example.com",
		Audience:  jwt.ClaimStrings{"chronobit"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := newTestAuth(nil).AuthJwt(context.Background(), token); err == nil {
		t.Fatalf("expected missing subject to be rejected")
	}
}
