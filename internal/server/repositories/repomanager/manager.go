// Package repomanager vends repository implementations bound to a DBTX and
// exposes the schema migration hook.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/carevault/carevault/internal/dbx"
	"github.com/carevault/carevault/internal/server/repositories/records"
	"github.com/carevault/carevault/internal/server/repositories/sessions"
	"github.com/carevault/carevault/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Records(db dbx.DBTX) records.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
