// server/internal/auth/auth_test.go
package auth

import (
	"strings"
	"testing"
	"time"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("driverpassword")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "driverpassword" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !CheckPasswordHash("driverpassword", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrongpassword", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("USR-ABC12345", "driver@dispatch.example.com", "John Smith", "driver", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	claims, err := ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != "USR-ABC12345" || claims.Role != "driver" {
		t.Fatalf("claims round trip mismatch: %+v", claims)
	}

	// A tampered token must not validate.
	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	if _, err := ParseJWT(tampered); err == nil {
		t.Fatal("tampered token accepted")
	}
}
