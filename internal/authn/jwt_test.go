package authn

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testIssuer = "https://test.example.com"

func TestNewAccessTokenAndValidate(t *testing.T) {
	t.Parallel()
	userID := uuid.New().String()
	secret := "test-secret-key-for-jwt"

	tokenStr, err := NewAccessToken(userID, "alice", false, "editor", secret, 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}

	claims, err := ValidateAccessToken(tokenStr, secret, testIssuer)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}

	if claims.Subject != userID {
		t.Errorf("Subject = %q, want %q", claims.Subject, userID)
	}
	if claims.Username != "alice" || claims.Role != "editor" || claims.IsAdmin {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestNewAccessTokenEmptySecret(t *testing.T) {
	t.Parallel()
	_, err := NewAccessToken(uuid.New().String(), "alice", false, "", "", 15*time.Minute, testIssuer)
	if err == nil {
		t.Fatal("NewAccessToken() with empty secret should return error")
	}
}

func TestValidateAccessTokenExpired(t *testing.T) {
	t.Parallel()
	userID := uuid.New().String()
	secret := "test-secret"

	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    testIssuer,
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-1 * time.Second)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	_, err = ValidateAccessToken(tokenStr, secret, testIssuer)
	if err == nil {
		t.Fatal("ValidateAccessToken() with expired token should return error")
	}
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	t.Parallel()
	tokenStr, err := NewAccessToken(uuid.New().String(), "alice", false, "", "correct-secret", 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}

	_, err = ValidateAccessToken(tokenStr, "wrong-secret", testIssuer)
	if err == nil {
		t.Fatal("ValidateAccessToken() with wrong secret should return error")
	}
}

func TestValidateAccessTokenWrongIssuer(t *testing.T) {
	t.Parallel()
	tokenStr, err := NewAccessToken(uuid.New().String(), "alice", false, "", "test-secret", 15*time.Minute, testIssuer)
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}

	_, err = ValidateAccessToken(tokenStr, "test-secret", "https://wrong.example.com")
	if err == nil {
		t.Fatal("ValidateAccessToken() with wrong issuer should return error")
	}
}

func TestValidateAccessTokenMalformed(t *testing.T) {
	t.Parallel()
	_, err := ValidateAccessToken("not.a.valid.jwt", "secret", testIssuer)
	if err == nil {
		t.Fatal("ValidateAccessToken() with malformed token should return error")
	}
}
