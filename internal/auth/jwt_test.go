package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"finance-tracker/internal/config"
	"finance-tracker/internal/domain"
)

func newService(ttl time.Duration) *TokenService {
	return NewTokenService(config.Config{JWTSecret: "test-secret", JWTExpiresIn: ttl})
}

func TestRoundTrip(t *testing.T) {
	s := newService(time.Hour)
	token, err := s.GenerateToken(42)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.ParseToken(token)
	if err != nil || got != 42 {
		t.Fatalf("ParseToken = %d, %v; want 42", got, err)
	}
}

func TestRejects(t *testing.T) {
	s := newService(time.Hour)

	expired, err := newService(-time.Minute).GenerateToken(1)
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := NewTokenService(config.Config{JWTSecret: "other", JWTExpiresIn: time.Hour}).GenerateToken(1)
	if err != nil {
		t.Fatal(err)
	}
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 1}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	for name, token := range map[string]string{
		"expired":      expired,
		"other secret": foreign,
		"no user":      noUser,
		"alg none":     unsigned,
		"garbage":      "not.a.token",
	} {
		if _, err := s.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestGenerateRejectsBadUser(t *testing.T) {
	if _, err := newService(time.Hour).GenerateToken(0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("GenerateToken(0) = %v", err)
	}
}
