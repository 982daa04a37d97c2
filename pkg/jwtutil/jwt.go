package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/Snaxxwax/movecrm/pkg/config"
	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired is returned when a token's signature verifies but its
	// expiry has passed. Callers should prompt for a fresh login.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned for tampered, malformed, or incomplete
	// tokens. These are never partially trusted.
	ErrTokenInvalid = errors.New("invalid token")
)

// SessionClaims represents the JWT claims asserting a user's identity within
// a tenant for a bounded time.
type SessionClaims struct {
	UserID   uint   `json:"user_id"`
	TenantID uint   `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// JWTUtil is a utility for JWT token operations. The signing key is loaded
// once at startup and read-only thereafter.
type JWTUtil struct {
	signingKey []byte
	expiration time.Duration
	now        func() time.Time
}

// NewJWTUtil creates a new JWT utility with the given configuration
func NewJWTUtil(cfg *config.JWTConfig) (*JWTUtil, error) {
	if cfg == nil || cfg.SigningKey == "" {
		return nil, errors.New("JWT signing key not provided")
	}

	expirationHours := cfg.ExpirationHours
	if expirationHours <= 0 {
		expirationHours = 24
	}

	return &JWTUtil{
		signingKey: []byte(cfg.SigningKey),
		expiration: time.Duration(expirationHours) * time.Hour,
		now:        time.Now,
	}, nil
}

// GenerateToken creates a signed token for the given identity tuple
func (j *JWTUtil) GenerateToken(userID, tenantID uint, role string) (string, error) {
	now := j.now()
	claims := SessionClaims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.signingKey)
}

// ValidateToken validates and parses the token. Expired tokens fail with
// ErrTokenExpired; anything else wrong with the token fails with
// ErrTokenInvalid so callers can tell "log in again" from garbage.
func (j *JWTUtil) ValidateToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return j.signingKey, nil
		},
	)

	if err != nil {
		// An expired claim only means "log in again" when the signature
		// checks out; a tampered token is invalid no matter what it claims.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	// A token without a complete identity tuple is garbage, not a session.
	if claims.UserID == 0 || claims.TenantID == 0 || claims.Role == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
