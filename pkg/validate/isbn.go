// Package validate holds pure validation helpers for catalog fields.
package validate

import (
	"strings"
	"time"
)

const minYearPublished = 1000

// ISBN reports whether s is a plausible ISBN. Hyphens and spaces are
// stripped first; what remains must be exactly 10 or 13 characters, all
// digits. ISBN-10 values with a trailing "X" check character are rejected.
func ISBN(s string) bool {
	cleaned := strings.NewReplacer("-", "", " ", "").Replace(s)
	if len(cleaned) != 10 && len(cleaned) != 13 {
		return false
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// YearPublished reports whether the year is acceptable for a catalog entry.
// Nil is valid (the field is optional); otherwise the year must fall in
// [1000, currentYear+1] to allow forthcoming titles.
func YearPublished(year *int) bool {
	if year == nil {
		return true
	}
	return *year >= minYearPublished && *year <= time.Now().Year()+1
}
