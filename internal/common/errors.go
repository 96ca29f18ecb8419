// Package common defines shared constants, sentinel errors and small helpers
// used across the service layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal           = errors.New("internal server error")
	ErrAccountAlreadyExists = errors.New("email or username is already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidInput         = errors.New("invalid input")

	// Token errors. Activation lookups that miss and session tokens with a bad
	// signature both report ErrInvalidToken.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
