package repomanager

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/jmoiron/sqlx"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sqlx.DB) error
	Users(db dbx.DBTX) users.Repository
}
