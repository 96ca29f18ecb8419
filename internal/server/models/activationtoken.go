package models

import "time"

// ActivationToken is a single-use proof of email ownership for UserID.
type ActivationToken struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at t.
func (a *ActivationToken) Expired(t time.Time) bool {
	return !a.ExpiresAt.After(t)
}
