// Package mysql is a MySQL implementation of the crosspost.Datastore
// interface.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/VividCortex/mysqlerr"
	"github.com/WatchBeam/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/crosspostd/crosspost/server/config"
	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

// goquDialect is the query builder dialect used for dynamically-shaped
// queries (static queries are written as plain SQL).
var goquDialect = goqu.Dialect("mysql")

// Datastore is an implementation of crosspost.Datastore backed by MySQL.
type Datastore struct {
	db *sqlx.DB

	logger kitlog.Logger
	clock  clock.Clock
	config config.MysqlConfig
}

// DBOption is used to pass optional arguments to New.
type DBOption func(o *dbOptions)

type dbOptions struct {
	logger kitlog.Logger
	clock  clock.Clock
}

// Logger sets the logger used by the datastore.
func Logger(l kitlog.Logger) DBOption {
	return func(o *dbOptions) {
		o.logger = l
	}
}

// Clock sets the clock used by the datastore.
func Clock(c clock.Clock) DBOption {
	return func(o *dbOptions) {
		o.clock = c
	}
}

// New creates a MySQL datastore.
func New(cfg config.MysqlConfig, opts ...DBOption) (*Datastore, error) {
	options := &dbOptions{
		logger: kitlog.NewNopLogger(),
		clock:  clock.C,
	}
	for _, setOpt := range opts {
		setOpt(options)
	}

	db, err := sqlx.Open("mysql", generateMysqlConnectionString(cfg))
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetime))

	// wait for the database to come up, transient connection failures at
	// startup are common in containerized deployments
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 1 * time.Minute
	if err := backoff.Retry(db.Ping, bo); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db connect: %w", err)
	}

	ds := &Datastore{
		db:     db,
		logger: options.logger,
		clock:  options.clock,
		config: cfg,
	}
	return ds, nil
}

// generateMysqlConnectionString returns a MySQL connection string using the
// provided configuration.
func generateMysqlConnectionString(conf config.MysqlConfig) string {
	return fmt.Sprintf(
		"%s:%s@%s(%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		conf.Username,
		conf.Password,
		conf.Protocol,
		conf.Address,
		conf.Database,
	)
}

type txFn func(tx sqlx.ExtContext) error

// retryableError determines whether a MySQL error can be retried. By default
// errors are considered non-retryable. Only errors that we know have a
// possibility of succeeding on a retry should return true in this function.
func retryableError(err error) bool {
	base := ctxerr.Cause(err)
	if b, ok := base.(*mysql.MySQLError); ok {
		switch b.Number {
		// Consider lock related errors to be retryable
		case mysqlerr.ER_LOCK_DEADLOCK, mysqlerr.ER_LOCK_WAIT_TIMEOUT:
			return true
		}
	}
	return false
}

// withRetryTxx provides a common way to commit/rollback a txFn wrapped in a
// retry with exponential backoff.
func (ds *Datastore) withRetryTxx(ctx context.Context, fn txFn) error {
	operation := func() error {
		tx, err := ds.db.BeginTxx(ctx, nil)
		if err != nil {
			return ctxerr.Wrap(ctx, err, "create transaction")
		}

		if err := fn(tx); err != nil {
			rbErr := tx.Rollback()
			if rbErr != nil && rbErr != sql.ErrTxDone {
				// Consider rollback errors to be non-retryable
				return backoff.Permanent(ctxerr.Wrapf(ctx, err, "got err '%s' rolling back after err", rbErr.Error()))
			}
			if retryableError(err) {
				return err
			}
			// Consider any other errors to be non-retryable
			return backoff.Permanent(err)
		}

		if err := tx.Commit(); err != nil {
			err = ctxerr.Wrap(ctx, err, "commit transaction")
			if retryableError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(operation, bo); err != nil {
		level.Error(ds.logger).Log("err", "transaction failed", "details", err)
		return err
	}
	return nil
}

// HealthCheck returns an error if the MySQL backend is not healthy.
func (ds *Datastore) HealthCheck() error {
	_, err := ds.db.Exec("select 1")
	return err
}

// Close closes the underlying MySQL connections.
func (ds *Datastore) Close() error {
	return ds.db.Close()
}
