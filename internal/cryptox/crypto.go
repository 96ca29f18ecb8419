// Package cryptox holds the one-way credential primitives used by the
// identity service: salted password hashing and verification.
package cryptox

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword derives a salted bcrypt hash of password. A cost of zero (or
// anything below bcrypt.MinCost) selects bcrypt.DefaultCost.
//
// Every call draws a fresh salt, so hashing the same password twice yields
// two different strings which both verify. An error means the hash could not
// be produced (random source failure, input over bcrypt's 72 byte limit) and
// must be treated as an internal failure by callers.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(h), nil
}

// VerifyPassword reports whether password matches hash. The comparison is
// constant time; a mismatch or a malformed hash both return false.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
