package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sealpay/internal/dbx"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/contents"
	"github.com/dmitrijs2005/sealpay/internal/server/repositories/intents"
)

// RepositoryManager vends repositories bound to a DB handle or transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Contents(db dbx.DBTX) contents.Repository
	Intents(db dbx.DBTX) intents.Repository
}
