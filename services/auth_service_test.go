package services

import (
	"errors"
	"testing"
	"time"

	"github.com/Topaz-Oz/Lience-Plate-Detect/config"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func newTestAuthService() *AuthService {
	return NewAuthService(config.JWTConfig{Secret: testSecret, ExpiryHours: 24})
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString() error: %v", err)
	}
	return tok
}

func validClaims(userID uint) Claims {
	now := time.Now()
	return Claims{
		UserID: userID,
		Email:  "driver@platedetect.local",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestAuthService()

	hash, err := svc.HashPassword("plate-reader-42")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "" || hash == "plate-reader-42" {
		t.Fatalf("HashPassword() = %q, want a bcrypt hash", hash)
	}
	if !svc.CheckPassword(hash, "plate-reader-42") {
		t.Error("CheckPassword(correct) = false, want true")
	}
	if svc.CheckPassword(hash, "plate-reader-43") {
		t.Error("CheckPassword(wrong) = true, want false")
	}

	again, _ := svc.HashPassword("plate-reader-42")
	if again == hash {
		t.Error("two hashes of one password should differ by salt")
	}
}

func TestGenerateTokenClaims(t *testing.T) {
	svc := newTestAuthService()

	tok, err := svc.GenerateToken(42, "admin@platedetect.local", "admin")
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	claims, err := svc.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken() error: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "admin@platedetect.local" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != TokenIssuer || claims.Subject != "42" {
		t.Errorf("iss/sub = %q/%q, want %q/42", claims.Issuer, claims.Subject, TokenIssuer)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		t.Error("exp and iat should be set")
	}
}

func TestValidateTokenRejects(t *testing.T) {
	svc := newTestAuthService()
	expired, _ := NewAuthService(config.JWTConfig{Secret: testSecret, ExpiryHours: -1}).GenerateToken(1, "a@b.c", "user")
	otherSecret, _ := NewAuthService(config.JWTConfig{Secret: "another-secret", ExpiryHours: 1}).GenerateToken(1, "a@b.c", "user")

	foreign := validClaims(1)
	foreign.Issuer = "someone-else"
	noExpiry := validClaims(1)
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"garbage", "invalid.token.string", ReasonTokenInvalid},
		{"expired", expired, ReasonTokenExpired},
		{"wrong secret", otherSecret, ReasonTokenInvalid},
		{"HS384 signature", signClaims(t, jwt.SigningMethodHS384, []byte(testSecret), validClaims(1)), ReasonTokenInvalid},
		{"unsigned", signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims(1)), ReasonTokenInvalid},
		{"foreign issuer", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), foreign), ReasonTokenInvalid},
		{"no expiry", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry), ReasonTokenInvalid},
		{"no user", signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(0)), ReasonTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := svc.ValidateToken(tt.token)
			if claims != nil {
				t.Errorf("ValidateToken() claims = %+v, want nil", claims)
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("ValidateToken() error = %v, want *Error", err)
			}
			if e.Kind != KindAuthentication || e.Reason != tt.reason {
				t.Errorf("error = %s/%s, want %s/%s", e.Kind, e.Reason, KindAuthentication, tt.reason)
			}
			if e.Kind.Status() != 401 {
				t.Errorf("status = %d, want 401", e.Kind.Status())
			}
		})
	}
}
