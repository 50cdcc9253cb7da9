package dbx

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect names follow goose's dialect identifiers.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite3"
)

const (
	driverPgx    = "pgx"
	driverSQLite = "sqlite"
)

func init() {
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

// PoolOptions bounds the connection pool independently of request concurrency.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ResolveDSN maps a connection string to a database/sql driver name, the
// driver-level DSN and the migration dialect.
//
//	postgres://... postgresql://...   -> pgx
//	sqlite://path sqlite:path file:... -> modernc sqlite
func ResolveDSN(dsn string) (driver, source, dialect string, err error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return driverPgx, dsn, DialectPostgres, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return driverSQLite, strings.TrimPrefix(dsn, "sqlite://"), DialectSQLite, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return driverSQLite, strings.TrimPrefix(dsn, "sqlite:"), DialectSQLite, nil
	case strings.HasPrefix(dsn, "file:"), dsn == ":memory:":
		return driverSQLite, dsn, DialectSQLite, nil
	default:
		return "", "", "", fmt.Errorf("unsupported database dsn scheme: %q", Redact(dsn))
	}
}

// Open prepares a pool for dsn without touching the network; call Ping (or
// WaitFor) to find out whether the store is actually reachable.
func Open(dsn string, opts PoolOptions) (*sqlx.DB, string, error) {
	driver, source, dialect, err := ResolveDSN(dsn)
	if err != nil {
		return nil, "", err
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, "", fmt.Errorf("db open error: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, dialect, nil
}

// Redact hides everything between "://" and "@" so credentials never reach logs.
func Redact(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***" + rest[at:]
	}
	return dsn
}
