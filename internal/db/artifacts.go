package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PutArtifact inserts or replaces one artifact row.
func PutArtifact(ctx context.Context, db *sql.DB, driver Driver, name string, payload []byte) error {
	q := `INSERT INTO model_artifacts (name, payload, created_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`
	if driver == DriverPostgres {
		q = `INSERT INTO model_artifacts (name, payload, created_at) VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at`
	}
	if _, err := db.ExecContext(ctx, q, name, string(payload), time.Now().Unix()); err != nil {
		return fmt.Errorf("put artifact %q: %w", name, err)
	}
	return nil
}
