package tables

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up_20250403101617, Down_20250403101617)
}

func Up_20250403101617(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
CREATE TABLE posts (
    id VARCHAR(36) NOT NULL PRIMARY KEY,
    content TEXT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'scheduled',
    scheduled_for TIMESTAMP NOT NULL,
    published_at TIMESTAMP NULL DEFAULT NULL,
    error TEXT,
    retry_count INT NOT NULL DEFAULT 0,
    channel_id VARCHAR(36) NOT NULL,
    user_id VARCHAR(36) NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_posts_status_scheduled_for (status, scheduled_for),
    KEY idx_posts_user_id (user_id),
    FOREIGN KEY fk_posts_channel_id (channel_id) REFERENCES channels (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
	`)
	if err != nil {
		return errors.Wrapf(err, "create table")
	}
	return nil
}

func Down_20250403101617(ctx context.Context, tx *sql.Tx) error {
	return nil
}
