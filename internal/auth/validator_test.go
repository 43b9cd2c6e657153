package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "validator-test-secret"
	testIssuer = "workshop-auth"
	testCookie = "access_token"
)

func signTestToken(t *testing.T, claims AccessClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func newTestValidator(t *testing.T, clock func() time.Time) *Validator {
	t.Helper()
	validator, err := NewValidator(ValidatorConfig{
		SigningSecret: []byte(testSecret),
		Issuer:        testIssuer,
		CookieName:    testCookie,
		Clock:         clock,
	})
	if err != nil {
		t.Fatalf("failed to create validator: %v", err)
	}
	return validator
}

func baseClaims(now time.Time) AccessClaims {
	return AccessClaims{
		Email: "user@example.com",
		Roles: []string{"User"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "subject-uuid",
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(30 * time.Minute)),
		},
	}
}

func TestValidateTokenAcceptsSignedClaims(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })

	claims, err := validator.ValidateToken(signTestToken(t, baseClaims(now)))
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if claims.Subject != "subject-uuid" || claims.Email != "user@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.HasRole("User") || claims.HasRole("Admin") {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	issued := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return issued.Add(2 * time.Hour) })

	_, err := validator.ValidateToken(signTestToken(t, baseClaims(issued)))
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestValidateTokenRejectsForeignIssuer(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })

	claims := baseClaims(now)
	claims.Issuer = "someone-else"
	_, err := validator.ValidateToken(signTestToken(t, claims))
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenRejectsMissingSubject(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })

	claims := baseClaims(now)
	claims.Subject = ""
	_, err := validator.ValidateToken(signTestToken(t, claims))
	if !errors.Is(err, ErrMissingSubject) {
		t.Fatalf("expected ErrMissingSubject, got %v", err)
	}
}

func TestValidateRequestReadsCookieThenHeader(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, func() time.Time { return now })
	signed := signTestToken(t, baseClaims(now))

	viaCookie := httptest.NewRequest(http.MethodGet, "/user-metadata", nil)
	viaCookie.AddCookie(&http.Cookie{Name: testCookie, Value: signed})
	if _, err := validator.ValidateRequest(viaCookie); err != nil {
		t.Fatalf("cookie validation failed: %v", err)
	}

	viaHeader := httptest.NewRequest(http.MethodGet, "/user-metadata", nil)
	viaHeader.Header.Set("Authorization", "Bearer "+signed)
	if _, err := validator.ValidateRequest(viaHeader); err != nil {
		t.Fatalf("header validation failed: %v", err)
	}

	bare := httptest.NewRequest(http.MethodGet, "/user-metadata", nil)
	if _, err := validator.ValidateRequest(bare); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}
