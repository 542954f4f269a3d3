package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordLength is returned for passwords bcrypt cannot hash safely.
var ErrPasswordLength = errors.New("password must be 8 to 72 bytes")

// HashPassword returns a bcrypt hash of plain at the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if len(plain) < 8 || len(plain) > 72 {
		return "", ErrPasswordLength
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a stored hash with a candidate password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
