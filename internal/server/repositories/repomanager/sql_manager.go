// Package repomanager provides a concrete RepositoryManager for SQL stores,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

// SQLRepositoryManager vends SQL-backed repository implementations
// and exposes a schema migration hook for its dialect.
type SQLRepositoryManager struct {
	dialect string
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations points goose at the embedded migrations for the manager's
// dialect and applies everything pending.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, db.DB, migrations.Dir(m.dialect))
}

// NewSQLRepositoryManager constructs a RepositoryManager for a goose dialect
// (dbx.DialectPostgres or dbx.DialectSQLite).
func NewSQLRepositoryManager(dialect string) RepositoryManager {
	return &SQLRepositoryManager{dialect: dialect}
}
