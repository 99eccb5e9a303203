package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
)

// Lock attempts to acquire the named lock for the owner, trying in order to
// extend a lock it already holds, take over an expired one, or create it.
func (ds *Datastore) Lock(ctx context.Context, name string, owner string, expiration time.Duration) (bool, error) {
	lockObtainers := []func(context.Context, string, string, time.Duration) (sql.Result, error){
		ds.extendLockIfAlreadyAcquired,
		ds.overwriteLockIfExpired,
		ds.createLock,
	}

	for _, lockFunc := range lockObtainers {
		res, err := lockFunc(ctx, name, owner, expiration)
		if err != nil {
			return false, ctxerr.Wrap(ctx, err, "lock")
		}
		rowsAffected, err := res.RowsAffected()
		if err != nil {
			return false, ctxerr.Wrap(ctx, err, "rows affected")
		}
		if rowsAffected > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (ds *Datastore) createLock(ctx context.Context, name string, owner string, expiration time.Duration) (sql.Result, error) {
	return ds.db.ExecContext(ctx,
		`INSERT IGNORE INTO locks (name, owner, expires_at) VALUES (?, ?, ?)`,
		name, owner, ds.clock.Now().Add(expiration),
	)
}

func (ds *Datastore) extendLockIfAlreadyAcquired(ctx context.Context, name string, owner string, expiration time.Duration) (sql.Result, error) {
	return ds.db.ExecContext(ctx,
		`UPDATE locks SET expires_at = ? WHERE name = ? AND owner = ?`,
		ds.clock.Now().Add(expiration), name, owner,
	)
}

func (ds *Datastore) overwriteLockIfExpired(ctx context.Context, name string, owner string, expiration time.Duration) (sql.Result, error) {
	return ds.db.ExecContext(ctx,
		`UPDATE locks SET owner = ?, expires_at = ? WHERE expires_at < CURRENT_TIMESTAMP AND name = ?`,
		owner, ds.clock.Now().Add(expiration), name,
	)
}

func (ds *Datastore) Unlock(ctx context.Context, name string, owner string) error {
	_, err := ds.db.ExecContext(ctx, `DELETE FROM locks WHERE name = ? AND owner = ?`, name, owner)
	return ctxerr.Wrap(ctx, err, "unlock")
}
