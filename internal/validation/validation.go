package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validation failures are safe to return to clients verbatim.
var (
	ErrInvalidEmail = errors.New("invalid email format")
	ErrInvalidSlug  = errors.New("slug can only contain lowercase letters, numbers, and hyphens")
	ErrInvalidPhone = errors.New("invalid phone number length")
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	slugPattern  = regexp.MustCompile(`^[a-z0-9-]+$`)
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	digitPattern = regexp.MustCompile(`\D`)
)

// Email normalizes and validates an email address
func Email(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if len(email) > 255 || !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Slug normalizes and validates a tenant slug: 2-50 chars of lowercase
// letters, digits and hyphens, with no leading or trailing hyphen.
func Slug(slug string) (string, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if len(slug) < 2 || len(slug) > 50 {
		return "", errors.New("slug must be 2-50 characters long")
	}
	if !slugPattern.MatchString(slug) {
		return "", ErrInvalidSlug
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return "", errors.New("slug cannot start or end with hyphen")
	}
	return slug, nil
}

// SanitizeString strips HTML tags and control characters and enforces a
// maximum length, for free-text fields that end up in the database.
func SanitizeString(value string, maxLength int) (string, error) {
	cleaned := tagPattern.ReplaceAllString(value, "")
	cleaned = strings.Map(func(r rune) rune {
		if r < 32 && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, cleaned)
	cleaned = strings.TrimSpace(cleaned)

	if len(cleaned) > maxLength {
		return "", fmt.Errorf("string too long (max %d characters)", maxLength)
	}
	return cleaned, nil
}

// Phone strips formatting and normalizes a phone number. US ten-digit
// numbers are formatted as (XXX) XXX-XXXX; anything else keeps a + prefix.
func Phone(phone string) (string, error) {
	digits := digitPattern.ReplaceAllString(phone, "")
	if len(digits) < 10 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}

	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:]), nil
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:]), nil
	default:
		return "+" + digits, nil
	}
}
