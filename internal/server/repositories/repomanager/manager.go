package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophaccount/internal/dbx"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/activationtokens"
	"github.com/dmitrijs2005/gophaccount/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to either a pool or a
// transaction, so a service can compose several of them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	ActivationTokens(db dbx.DBTX) activationtokens.Repository
}
