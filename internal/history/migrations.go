package history

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStep upgrades the database to version.
type schemaStep struct {
	version int
	name    string
	sql     string
}

// schemaSteps must stay in ascending version order; the applied version is
// kept in PRAGMA user_version.
var schemaSteps = []schemaStep{
	{
		version: 1,
		name:    "uploads table",
		sql: `
CREATE TABLE IF NOT EXISTS uploads (
  id TEXT PRIMARY KEY,
  path TEXT NOT NULL,
  link TEXT NOT NULL,
  delete_hash TEXT NOT NULL UNIQUE,
  digest TEXT,
  size_bytes INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  uploaded_at TEXT NOT NULL,
  delete_after TEXT,
  deleted_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
`,
	},
	{
		version: 2,
		name:    "digest index",
		sql:     `CREATE INDEX IF NOT EXISTS idx_uploads_digest ON uploads(digest);`,
	},
}

func schemaVersion(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}) (int, error) {
	var version int
	if err := q.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// upgradeSchema applies every step newer than the stored version, one
// transaction per step.
func upgradeSchema(ctx context.Context, db *sql.DB) error {
	current, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	latest := schemaSteps[len(schemaSteps)-1].version
	if current > latest {
		return fmt.Errorf("history database schema v%d is newer than supported v%d", current, latest)
	}

	for _, step := range schemaSteps {
		if step.version <= current {
			continue
		}
		if err := applyStep(ctx, db, step); err != nil {
			return err
		}
	}
	return nil
}

func applyStep(ctx context.Context, db *sql.DB, step schemaStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema v%d: %w", step.version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, step.sql); err != nil {
		return fmt.Errorf("apply schema v%d (%s): %w", step.version, step.name, err)
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
		return fmt.Errorf("record schema v%d: %w", step.version, err)
	}
	return tx.Commit()
}
