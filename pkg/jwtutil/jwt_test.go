package jwtutil

import (
	"errors"
	"testing"
	"time"

	"github.com/Snaxxwax/movecrm/pkg/config"
	"github.com/golang-jwt/jwt/v4"
)

func newTestUtil(t *testing.T) *JWTUtil {
	t.Helper()
	util, err := NewJWTUtil(&config.JWTConfig{
		SigningKey:      "test-signing-key",
		ExpirationHours: 24,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return util
}

func TestNewJWTUtilRequiresKey(t *testing.T) {
	if _, err := NewJWTUtil(&config.JWTConfig{}); err == nil {
		t.Error("expected error for missing signing key")
	}
	if _, err := NewJWTUtil(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestGenerateValidateRoundtrip(t *testing.T) {
	util := newTestUtil(t)

	token, err := util.GenerateToken(42, 7, "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Verification is idempotent until expiry.
	for i := 0; i < 3; i++ {
		claims, err := util.ValidateToken(token)
		if err != nil {
			t.Fatalf("unexpected error on validation %d: %v", i, err)
		}
		if claims.UserID != 42 || claims.TenantID != 7 || claims.Role != "admin" {
			t.Errorf("got claims %d/%d/%q, want 42/7/admin",
				claims.UserID, claims.TenantID, claims.Role)
		}
	}
}

func TestValidateExpiredToken(t *testing.T) {
	util := newTestUtil(t)
	// Issue a token whose 24h lifetime already elapsed.
	util.now = func() time.Time { return time.Now().Add(-25 * time.Hour) }

	token, err := util.GenerateToken(42, 7, "staff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	util.now = time.Now
	if _, err := util.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateTamperedToken(t *testing.T) {
	util := newTestUtil(t)

	token, err := util.GenerateToken(42, 7, "customer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Flipping any byte invalidates the whole token; it never resolves to
	// a different identity.
	for _, pos := range []int{1, len(token) / 2, len(token) - 2} {
		tampered := []byte(token)
		if tampered[pos] == 'A' {
			tampered[pos] = 'B'
		} else {
			tampered[pos] = 'A'
		}
		if _, err := util.ValidateToken(string(tampered)); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("position %d: expected ErrTokenInvalid, got %v", pos, err)
		}
	}
}

func TestValidateWrongKey(t *testing.T) {
	util := newTestUtil(t)
	other, err := NewJWTUtil(&config.JWTConfig{SigningKey: "another-key", ExpirationHours: 24})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := other.GenerateToken(42, 7, "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := util.ValidateToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateMalformedToken(t *testing.T) {
	util := newTestUtil(t)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		if _, err := util.ValidateToken(token); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("token %q: expected ErrTokenInvalid, got %v", token, err)
		}
	}
}

func TestValidateIncompleteClaims(t *testing.T) {
	util := newTestUtil(t)

	// A structurally valid token missing the identity tuple is garbage.
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).
		SignedString(util.signingKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := util.ValidateToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestValidateRejectsUnsignedAlg(t *testing.T) {
	util := newTestUtil(t)

	claims := SessionClaims{
		UserID:   42,
		TenantID: 7,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := util.ValidateToken(token); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for alg=none, got %v", err)
	}
}
