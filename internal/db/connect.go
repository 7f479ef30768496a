package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

const (
	defaultSQLiteDSN   = "file:motivation.db?_pragma=busy_timeout(5000)"
	defaultPostgresDSN = "postgres://localhost:5432/mindengage?sslmode=disable"
)

// Open opens a read-write DB. It does not touch the schema; publishing tools
// call EnsureSchema themselves.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	drvName, dsn, err := resolve(driver, dsn)
	if err != nil {
		return nil, err
	}
	return open(ctx, drvName, dsn)
}

// OpenReadOnly opens the artifact store for serving. sqlite files are opened
// with mode=ro, so a mistyped path fails instead of creating an empty
// database. Postgres sessions default to read-only transactions.
func OpenReadOnly(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	drvName, dsn, err := resolve(driver, dsn)
	if err != nil {
		return nil, err
	}
	switch driver {
	case DriverSQLite:
		if !strings.HasPrefix(dsn, "file:") {
			dsn = "file:" + dsn
		}
		dsn = withParam(dsn, "mode", "ro", "?", "&")
	case DriverPostgres:
		if strings.Contains(dsn, "://") {
			dsn = withParam(dsn, "default_transaction_read_only", "on", "?", "&")
		} else {
			dsn = withParam(dsn, "default_transaction_read_only", "on", " ", " ")
		}
	}
	return open(ctx, drvName, dsn)
}

func resolve(driver Driver, dsn string) (string, string, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		return "sqlite", dsn, nil // modernc driver
	case DriverPostgres:
		if dsn == "" {
			dsn = defaultPostgresDSN
		}
		return "pgx", dsn, nil // pgx stdlib driver
	default:
		return "", "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

func open(ctx context.Context, drvName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// withParam sets key=value unless dsn already names key. first joins the
// first parameter, sep the following ones.
func withParam(dsn, key, value, first, sep string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	if first == "?" && !strings.Contains(dsn, "?") {
		return dsn + "?" + key + "=" + value
	}
	if strings.TrimSpace(dsn) == "" {
		return key + "=" + value
	}
	return dsn + sep + key + "=" + value
}

// EnsureSchema creates the model_artifacts table if it is missing.
func EnsureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

// model_artifacts holds exported bundles by file name; the server only reads it.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS model_artifacts (
  name TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS model_artifacts (
  name TEXT PRIMARY KEY,
  payload TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
