package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator instance
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if err := Validator().Var(email, "required,email"); err != nil {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidatePhone checks that phone is already in E.164 form
func ValidatePhone(phone string) error {
	if err := Validator().Var(phone, "required,e164"); err != nil {
		return fmt.Errorf("invalid E.164 phone number: %q", phone)
	}
	return nil
}

// NormalizePhone strips punctuation and returns an E.164 number.
// Bare ten-digit numbers are treated as North American and get a +1 prefix;
// anything else is assumed to already carry its country code.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	plus := strings.HasPrefix(trimmed, "+")

	var digits strings.Builder
	for _, r := range trimmed {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	candidate := "+" + d
	if !plus && len(d) == 10 {
		candidate = "+1" + d
	}

	if err := ValidatePhone(candidate); err != nil {
		return "", fmt.Errorf("invalid phone number: %q", raw)
	}
	return candidate, nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
