package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// signedToken builds a token the way the upstream issuer does.
func signedToken(t *testing.T, secret []byte, expiresAt time.Time) string {
	t.Helper()
	claims := &Claims{
		UserID: 7,
		Role:   RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestValidateToken(t *testing.T) {
	InitJWT("test-secret")

	token := signedToken(t, []byte("test-secret"), time.Now().Add(time.Hour))
	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	if claims.UserID != 7 {
		t.Errorf("expected user id 7, got %d", claims.UserID)
	}
	if claims.Role != RoleAdmin {
		t.Errorf("expected role %s, got %s", RoleAdmin, claims.Role)
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	InitJWT("test-secret")

	token := signedToken(t, []byte("test-secret"), time.Now().Add(-time.Hour))
	if _, err := ValidateToken(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	InitJWT("test-secret")

	token := signedToken(t, []byte("other-secret"), time.Now().Add(time.Hour))
	if _, err := ValidateToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestValidateTokenRejectsUnsignedAlg(t *testing.T) {
	InitJWT("test-secret")

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 7}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build token: %v", err)
	}
	if _, err := ValidateToken(token); err == nil {
		t.Fatal("expected none-alg token to be rejected")
	}
}
