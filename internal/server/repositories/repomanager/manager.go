package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/filestore/internal/dbx"
	"github.com/dmitrijs2005/filestore/internal/server/repositories/mappings"
)

// RepositoryManager vends repositories bound to a DB handle (a pool or a
// transaction) and owns schema migrations.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Mappings(db dbx.DBTX) mappings.Repository
}
