package auth

import (
	"testing"
	"time"

	"github.com/Hellares/back-consumo-combustible-sub001/internal/common/config"
	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAccessToken(t *testing.T) {
	cfg := config.AuthConfig{
		JWTSecret: "test-secret",
		Issuer:    "fuel-service",
		Audience:  "flota",
	}

	token, expiresAt, err := GenerateAccessToken(cfg, "42", []string{RoleController}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse token: %v", err)
	}
	if claims.Subject != "42" {
		t.Fatalf("expected subject 42, got %q", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != RoleController {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if claims.Issuer != "fuel-service" {
		t.Fatalf("unexpected issuer: %q", claims.Issuer)
	}
}

func TestGenerateAccessTokenRejectsEmptySecret(t *testing.T) {
	_, _, err := GenerateAccessToken(config.AuthConfig{}, "42", nil, time.Hour)
	if err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
