package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "wish-auth", Audience: "authenticated"}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, 30*time.Minute, AccessTokenPayload{UserID: userID, Email: "a@example.com", Role: "authenticated"})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	got, err := claims.UserID()
	if err != nil || got != userID {
		t.Fatalf("expected user %s, got %s (err %v)", userID, got, err)
	}
	if claims.Email != "a@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}

	diff := claims.ExpiresAt.Sub(now.Add(30 * time.Minute))
	if diff < 0 {
		diff = -diff
	}
	if diff >= time.Second {
		t.Fatalf("unexpected expiry %v", claims.ExpiresAt.UTC())
	}
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Minute, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := cfg
	other.Secret = "different"
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatal("expected signature validation error")
	}
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), time.Minute, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	_, err = ParseAccessToken(cfg, token)
	if err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expired error, got %v", err)
	}
}

func TestParseAccessTokenWrongAudience(t *testing.T) {
	cfg := testConfig()
	token, err := MintAccessToken(cfg, time.Now(), time.Minute, AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}
	cfg.Audience = "service_role"
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected audience mismatch")
	}
}

func TestParseAccessTokenRejectsNonUUIDSubject(t *testing.T) {
	cfg := testConfig()
	claims := AccessTokenClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Issuer:    cfg.Issuer,
		Audience:  jwt.ClaimStrings{cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseAccessToken(cfg, token); err == nil {
		t.Fatal("expected invalid subject error")
	}
}

func TestMintAccessTokenValidatesInput(t *testing.T) {
	if _, err := MintAccessToken(config.JWTConfig{}, time.Now(), time.Minute, AccessTokenPayload{UserID: uuid.New()}); err == nil {
		t.Fatal("expected missing secret error")
	}
	if _, err := MintAccessToken(testConfig(), time.Now(), time.Minute, AccessTokenPayload{}); err == nil {
		t.Fatal("expected missing user error")
	}
}
