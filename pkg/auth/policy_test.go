package auth

import (
	"strings"
	"testing"
)

func TestValidatePasswordAccepted(t *testing.T) {
	res := ValidatePassword("Str0ng#Pass")
	if !res.Valid {
		t.Fatalf("expected valid password, got violations: %v", res.Violations)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %v", res.Violations)
	}
}

func TestValidatePasswordEmptyShortCircuits(t *testing.T) {
	for _, in := range []string{"", "   ", "\t\n"} {
		res := ValidatePassword(in)
		if res.Valid {
			t.Fatalf("expected %q to be invalid", in)
		}
		if len(res.Violations) != 1 || res.Violations[0] != "password is required" {
			t.Fatalf("expected single required violation for %q, got %v", in, res.Violations)
		}
	}
}

func TestValidatePasswordLengthBounds(t *testing.T) {
	res := ValidatePassword("Ab1#xyz") // 7 chars
	if res.Valid {
		t.Fatalf("expected 7-char password to fail")
	}
	if !containsViolation(res, "at least 8") {
		t.Fatalf("expected minimum-length violation, got %v", res.Violations)
	}

	long := "Ab1#" + strings.Repeat("xY9!", 32) // 132 chars
	res = ValidatePassword(long)
	if res.Valid {
		t.Fatalf("expected 132-char password to fail")
	}
	if !containsViolation(res, "at most 128") {
		t.Fatalf("expected maximum-length violation, got %v", res.Violations)
	}

	// Exactly on the bounds passes the length rules.
	if res := ValidatePassword("Ab1#wxyz"); !res.Valid {
		t.Fatalf("expected 8-char password to pass, got %v", res.Violations)
	}
	exact := "Ab1#" + strings.Repeat("xY9!", 31) // 128 chars
	if res := ValidatePassword(exact); !res.Valid {
		t.Fatalf("expected 128-char password to pass, got %v", res.Violations)
	}
}

func TestValidatePasswordCharacterClasses(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"missing uppercase", "lower1#case", "uppercase"},
		{"missing lowercase", "UPPER1#CASE", "lowercase"},
		{"missing digit", "NoDigits#Here", "digit"},
		{"missing special", "NoSpecials12", "special"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ValidatePassword(tc.in)
			if res.Valid {
				t.Fatalf("expected %q to be invalid", tc.in)
			}
			if !containsViolation(res, tc.want) {
				t.Fatalf("expected %q violation, got %v", tc.want, res.Violations)
			}
		})
	}
}

func TestValidatePasswordBlocklistAndRuns(t *testing.T) {
	res := ValidatePassword("Password123")
	if containsViolation(res, "too common") {
		t.Fatalf("blocklist should not match passwords absent from it: %v", res.Violations)
	}
	res = ValidatePassword("password123")
	if !containsViolation(res, "too common") {
		t.Fatalf("expected common-password violation, got %v", res.Violations)
	}

	res = ValidatePassword("aaaa1#xyZ")
	if !containsViolation(res, "in a row") {
		t.Fatalf("expected identical-run violation, got %v", res.Violations)
	}
	if res := ValidatePassword("Aaa1#xyzw"); containsViolation(res, "in a row") {
		t.Fatalf("three identical characters should be allowed: %v", res.Violations)
	}
}

func TestValidatePasswordCollectsAllViolations(t *testing.T) {
	// Short, no upper, no digit, no special: four rules broken at once.
	res := ValidatePassword("abcdefg")
	if res.Valid {
		t.Fatalf("expected invalid password")
	}
	if len(res.Violations) != 4 {
		t.Fatalf("expected 4 violations, got %d: %v", len(res.Violations), res.Violations)
	}
}

func containsViolation(res PasswordValidation, substr string) bool {
	for _, v := range res.Violations {
		if strings.Contains(v, substr) {
			return true
		}
	}
	return false
}
