package repomanager

import (
	"context"
	"database/sql"

	"github.com/webstarter/api/internal/dbx"
	"github.com/webstarter/api/internal/server/repositories/refreshtokens"
	"github.com/webstarter/api/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX so that
// services can run repository calls either directly or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
