package mysql

import (
	"context"

	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/pressly/goose/v3"

	// register the Go-based table migrations
	_ "github.com/crosspostd/crosspost/server/datastore/mysql/migrations/tables"
)

// MigrateTables runs all pending table migrations.
func (ds *Datastore) MigrateTables(ctx context.Context) error {
	if err := goose.SetDialect("mysql"); err != nil {
		return ctxerr.Wrap(ctx, err, "set migration dialect")
	}
	if err := goose.UpContext(ctx, ds.db.DB, "."); err != nil {
		return ctxerr.Wrap(ctx, err, "run table migrations")
	}
	return nil
}

// MigrationStatus returns the current and latest known migration versions.
func (ds *Datastore) MigrationStatus(ctx context.Context) (current, latest int64, err error) {
	if err := goose.SetDialect("mysql"); err != nil {
		return 0, 0, ctxerr.Wrap(ctx, err, "set migration dialect")
	}
	current, err = goose.GetDBVersionContext(ctx, ds.db.DB)
	if err != nil {
		return 0, 0, ctxerr.Wrap(ctx, err, "get migration version")
	}
	migrations, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	if err != nil {
		return 0, 0, ctxerr.Wrap(ctx, err, "collect migrations")
	}
	if last, err := migrations.Last(); err == nil {
		latest = last.Version
	}
	return current, latest, nil
}
