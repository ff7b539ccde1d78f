package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/config"
	"github.com/angelmondragon/partsdirect-backend/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "partsdirect"}

func validClaims(now time.Time) AccessTokenClaims {
	return AccessTokenClaims{
		UserID:       uuid.New(),
		Role:         enums.UserRoleCustomer,
		CustomerType: enums.PriceTypeWholesale,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Minute)),
		},
	}
}

func TestSignAndParseAccessToken(t *testing.T) {
	claims := validClaims(time.Now().UTC())
	token, err := SignAccessToken(testCfg, claims)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}

	parsed, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if parsed.UserID != claims.UserID {
		t.Fatalf("expected user_id %s, got %s", claims.UserID, parsed.UserID)
	}
	if parsed.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected role %s", parsed.Role)
	}
	if parsed.CustomerType != enums.PriceTypeWholesale {
		t.Fatalf("unexpected customer type %s", parsed.CustomerType)
	}
	if parsed.Issuer != testCfg.Issuer {
		t.Fatalf("issuer mismatch %q", parsed.Issuer)
	}
	if parsed.ID == "" {
		t.Fatal("expected jti to be populated")
	}
}

func TestParseAccessTokenDefaultsCustomerType(t *testing.T) {
	claims := validClaims(time.Now().UTC())
	claims.CustomerType = ""
	token, err := SignAccessToken(testCfg, claims)
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	parsed, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if parsed.CustomerType != enums.PriceTypeRetail {
		t.Fatalf("expected retail default, got %s", parsed.CustomerType)
	}
}

func TestParseAccessTokenRejects(t *testing.T) {
	now := time.Now().UTC()

	expired := validClaims(now.Add(-2 * time.Hour))
	expiredToken, _ := SignAccessToken(testCfg, expired)

	badRole := validClaims(now)
	badRole.Role = "superuser"
	badRoleToken, _ := SignAccessToken(testCfg, badRole)

	wrongIssuer := validClaims(now)
	wrongIssuer.Issuer = "someone-else"
	wrongIssuerToken, _ := SignAccessToken(testCfg, wrongIssuer)

	noExpiry := validClaims(now)
	noExpiry.ExpiresAt = nil
	noExpiryToken, _ := SignAccessToken(testCfg, noExpiry)

	good, _ := SignAccessToken(testCfg, validClaims(now))
	tampered := good[:len(good)-2] + "xx"

	otherSecret, _ := SignAccessToken(config.JWTConfig{Secret: "other", Issuer: "partsdirect"}, validClaims(now))

	cases := map[string]string{
		"expired":      expiredToken,
		"bad role":     badRoleToken,
		"wrong issuer": wrongIssuerToken,
		"no expiry":    noExpiryToken,
		"tampered":     tampered,
		"other secret": otherSecret,
		"garbage":      strings.Repeat("a", 20),
	}
	for name, token := range cases {
		if _, err := ParseAccessToken(testCfg, token); err == nil {
			t.Fatalf("%s: expected parse failure", name)
		}
	}
}

func TestParseAccessTokenRequiresSecret(t *testing.T) {
	if _, err := ParseAccessToken(config.JWTConfig{}, "token"); err == nil {
		t.Fatal("expected missing secret to fail")
	}
}
