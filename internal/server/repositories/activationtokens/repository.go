// Package activationtokens declares the server-side repository contract for
// the time-boxed tokens that prove control of an email address.
package activationtokens

import (
	"context"

	"github.com/dmitrijs2005/gophaccount/internal/server/models"
)

// Repository stores activation tokens. Every method is a single statement;
// callers needing atomicity across calls bind the repository to a transaction.
type Repository interface {
	// Create stores a new token row.
	Create(ctx context.Context, token *models.ActivationToken) error

	// FindValid returns the row for token if it exists and has not expired.
	// Absent and expired tokens both yield common.ErrorNotFound.
	FindValid(ctx context.Context, token string) (*models.ActivationToken, error)

	// Delete removes one token. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteForUser removes every token issued to userID.
	DeleteForUser(ctx context.Context, userID string) error

	// DeleteExpired purges rows past their expiry and reports how many went.
	DeleteExpired(ctx context.Context) (int64, error)
}
