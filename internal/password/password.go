package password

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword is returned when a password does not meet the strength
// policy. The message is safe to show to clients.
var ErrWeakPassword = errors.New("password must be at least 8 characters with uppercase, lowercase, and number")

// Hash produces a randomly-salted bcrypt hash. Two calls with the same
// password yield different hashes, so stored hashes cannot be compared by
// equality across users.
func Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares a password against a stored hash. A malformed hash is a
// mismatch, never an error.
func Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MeetsPolicy checks password strength: length >= 8 with at least one
// uppercase letter, one lowercase letter, and one digit.
func MeetsPolicy(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return ErrWeakPassword
	}
	return nil
}
