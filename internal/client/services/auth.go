// Package services contains the account CLI's application services.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophaccount/internal/client/client"
	"github.com/dmitrijs2005/gophaccount/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophaccount/internal/common"
	"github.com/dmitrijs2005/gophaccount/internal/dbx"
)

const (
	keyToken    = "session_token"
	keyUserName = "username"
)

// AuthService drives the account lifecycle from the CLI and keeps the
// current session token in the local database.
type AuthService interface {
	Register(ctx context.Context, email, username string, password []byte) (*client.User, error)
	Verify(ctx context.Context, token string) error
	Resend(ctx context.Context, userID string) error
	Login(ctx context.Context, username string, password []byte) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) (*client.Session, error)
	CurrentUser(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
}

// NewAuthService binds the service to an API client and the session database.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	return &authService{client: c, db: db}
}

func (a *authService) Register(ctx context.Context, email, username string, password []byte) (*client.User, error) {
	return a.client.Register(ctx, email, username, password)
}

func (a *authService) Verify(ctx context.Context, token string) error {
	return a.client.Verify(ctx, token)
}

func (a *authService) Resend(ctx context.Context, userID string) error {
	return a.client.Resend(ctx, userID)
}

// Login authenticates and replaces any stored session.
func (a *authService) Login(ctx context.Context, username string, password []byte) error {
	token, err := a.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, keyToken, []byte(token)); err != nil {
			return err
		}
		return repo.Set(ctx, keyUserName, []byte(username))
	})
}

// Logout forgets the stored session. Tokens cannot be revoked server-side,
// so this is local only.
func (a *authService) Logout(ctx context.Context) error {
	return metadata.NewSQLiteRepository(a.db).Clear(ctx)
}

// WhoAmI asks the server about the stored token. An expired or rejected
// token is dropped locally.
func (a *authService) WhoAmI(ctx context.Context) (*client.Session, error) {
	token, err := metadata.NewSQLiteRepository(a.db).Get(ctx, keyToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, client.ErrNotLoggedIn
		}
		return nil, err
	}

	s, err := a.client.Session(ctx, string(token))
	if err != nil {
		if errors.Is(err, client.ErrUnauthorized) {
			if cerr := a.Logout(ctx); cerr != nil {
				return nil, fmt.Errorf("%w (clear session: %v)", err, cerr)
			}
		}
		return nil, err
	}
	return s, nil
}

// CurrentUser returns the name the stored session was issued for, or "".
func (a *authService) CurrentUser(ctx context.Context) (string, error) {
	name, err := metadata.NewSQLiteRepository(a.db).Get(ctx, keyUserName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil
		}
		return "", err
	}
	return string(name), nil
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}
