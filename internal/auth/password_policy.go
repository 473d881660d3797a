package auth

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy describes the complexity rules applied to new passwords.
type PasswordPolicy struct {
	MinLength      int
	RequireMixed   bool
	RequireDigits  bool
	RequireSymbols bool
	// MaxBytes caps the encoded length; zero means no limit.
	MaxBytes int
}

// DefaultPasswordPolicy requires eight characters with mixed case, digits and symbols.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      8,
		RequireMixed:   true,
		RequireDigits:  true,
		RequireSymbols: true,
	}
}

// Check returns every rule password violates, in a stable order.
func (p PasswordPolicy) Check(password string) []string {
	var violations []string

	if p.MinLength > 0 && utf8.RuneCountInString(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("The password must be at least %d characters.", p.MinLength))
	}
	if p.MaxBytes > 0 && len(password) > p.MaxBytes {
		violations = append(violations, fmt.Sprintf("The password must not be greater than %d bytes.", p.MaxBytes))
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	if p.RequireMixed && !(upper && lower) {
		violations = append(violations, "The password must contain at least one uppercase and one lowercase letter.")
	}
	if p.RequireDigits && !digit {
		violations = append(violations, "The password must contain at least one number.")
	}
	if p.RequireSymbols && !symbol {
		violations = append(violations, "The password must contain at least one symbol.")
	}

	return violations
}
