package tables

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up_20250403101805, Down_20250403101805)
}

func Up_20250403101805(ctx context.Context, tx *sql.Tx) error {
	// a job's id is the id of the post it publishes, which makes enqueue an
	// upsert and cancellation a direct lookup
	_, err := tx.ExecContext(ctx, `
CREATE TABLE jobs (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    name VARCHAR(255) NOT NULL,
    args JSON,
    state VARCHAR(255) NOT NULL,
    not_before TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    error TEXT,
    KEY idx_jobs_state_not_before (state, not_before)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
	`)
	if err != nil {
		return errors.Wrapf(err, "create table")
	}
	return nil
}

func Down_20250403101805(ctx context.Context, tx *sql.Tx) error {
	return nil
}
