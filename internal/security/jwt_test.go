package security

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestVerifierAcceptsValidToken(t *testing.T) {
	token, err := GenerateToken("secret", "user-123", "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	id, err := NewJWTVerifier("secret").Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-123" || id.Email != "a@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifierRejectsWrongSecretAndExpiry(t *testing.T) {
	token, _ := GenerateToken("secret", "user-123", "", time.Hour)
	if _, err := NewJWTVerifier("other").Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	expired, _ := GenerateToken("secret", "user-123", "", -time.Minute)
	if _, err := NewJWTVerifier("secret").Verify(context.Background(), expired); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	if _, err := NewJWTVerifier("").Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected empty secret to reject, got %v", err)
	}
}

func TestVerifierRequiresSubject(t *testing.T) {
	token, _ := GenerateToken("secret", "", "", time.Hour)
	if _, err := NewJWTVerifier("secret").Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected missing subject to reject, got %v", err)
	}
}
