package auth

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	maxIdenticalRun   = 3
)

// commonPasswords is a small blocklist of passwords seen constantly in
// credential dumps. Matching is case-insensitive.
var commonPasswords = map[string]struct{}{
	"password":    {},
	"password1":   {},
	"password123": {},
	"123456":      {},
	"12345678":    {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"letmein":     {},
	"welcome":     {},
	"welcome1":    {},
	"iloveyou":    {},
	"admin":       {},
	"abc123":      {},
	"monkey":      {},
	"dragon":      {},
	"sunshine":    {},
	"princess":    {},
	"football":    {},
	"baseball":    {},
}

// PasswordValidation is the outcome of a policy check. Violations are
// ordered by rule and one entry is produced per failed rule.
type PasswordValidation struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations,omitempty"`
}

// ValidatePassword checks a password against the account policy. All rules
// are evaluated rather than stopping at the first failure, so the caller can
// report every problem at once. An empty or all-whitespace password
// short-circuits to a single violation.
func ValidatePassword(password string) PasswordValidation {
	if strings.TrimSpace(password) == "" {
		return PasswordValidation{Violations: []string{"password is required"}}
	}

	var violations []string
	if len(password) < minPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be at most %d characters", maxPasswordLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasUpper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain a lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain a digit")
	}
	if !hasSpecial {
		violations = append(violations, "password must contain a special character")
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		violations = append(violations, "password is too common")
	}
	if hasIdenticalRun(password, maxIdenticalRun+1) {
		violations = append(violations, fmt.Sprintf("password must not repeat the same character %d or more times in a row", maxIdenticalRun+1))
	}

	return PasswordValidation{Valid: len(violations) == 0, Violations: violations}
}

func hasIdenticalRun(s string, length int) bool {
	run := 0
	var prev rune
	for i, r := range s {
		if i > 0 && r == prev {
			run++
		} else {
			run = 1
		}
		if run >= length {
			return true
		}
		prev = r
	}
	return false
}
