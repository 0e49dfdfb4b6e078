package authn

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/park285/chess-duel/pkg/duelerr"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	m, err := NewManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	token, err := m.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	sub, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "alice" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestVerifyFailuresAreUniform(t *testing.T) {
	m, err := NewManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	other, err := NewManager("other-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	foreign, err := other.Issue("alice")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	for name, token := range map[string]string{
		"empty":         "",
		"garbage":       "not-a-token",
		"wrong secret":  foreign,
		"no subject":    mustSign(t, "secret", jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())}),
		"expired":       mustSign(t, "secret", jwt.RegisteredClaims{Subject: "alice", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(context.Background(), token)
			if err == nil {
				t.Fatal("expected error")
			}
			if duelerr.KindOf(err) != duelerr.KindAuthorization {
				t.Fatalf("kind = %v", duelerr.KindOf(err))
			}
			if err.Error() != "invalid token" {
				t.Fatalf("message = %q", err.Error())
			}
		})
	}
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	m, err := NewManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "alice"})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Verify(context.Background(), signed); err == nil {
		t.Fatal("alg=none must be rejected")
	}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	if _, err := NewManager("  ", time.Hour); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatal("hash must not equal the password")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatal("expected match")
	}
	if CheckPassword(hash, "hunter3") {
		t.Fatal("expected mismatch")
	}
}

func mustSign(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}
