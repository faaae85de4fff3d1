// Package auth covers credential hashing and password policy checks.
package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates inputs longer than 72 bytes, so reject them.
const maxPasswordBytes = 72

// ErrPasswordTooLong is returned when the plaintext exceeds bcrypt's limit.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPassword hashes the plaintext with bcrypt at the default cost.
// The returned string embeds the salt and cost and can be stored directly.
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword validates a plaintext password against a stored bcrypt hash.
func CheckPassword(password, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
