package mysql

import (
	"context"
	"time"

	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/jmoiron/sqlx"
)

// NewJob enqueues a job. The insert is an upsert on the job id (= post id):
// re-enqueueing a post replaces whatever row is there, which makes the
// "send a new job with the same id" retry pattern safe.
func (ds *Datastore) NewJob(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error) {
	query := `
INSERT INTO jobs (
    id,
    name,
    args,
    state,
    error,
    not_before
)
VALUES (?, ?, ?, ?, ?, COALESCE(?, NOW()))
ON DUPLICATE KEY UPDATE
    name = VALUES(name),
    args = VALUES(args),
    state = VALUES(state),
    error = VALUES(error),
    not_before = VALUES(not_before)
`
	var notBefore *time.Time
	if !job.NotBefore.IsZero() {
		notBefore = &job.NotBefore
	}
	_, err := ds.db.ExecContext(ctx, query,
		job.ID, job.Name, job.Args, job.State, job.Error, notBefore)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "insert job")
	}
	return job, nil
}

// GetQueuedJobs returns due queued jobs, oldest update first. Updating a job
// bumps its updated_at, pushing it to the back of the queue so a batch of
// jobs is processed round-robin.
func (ds *Datastore) GetQueuedJobs(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error) {
	query := `
SELECT
    id, created_at, updated_at, name, args, state, not_before, error
FROM
    jobs
WHERE
    state = ? AND
    not_before <= ?
ORDER BY
    updated_at ASC
LIMIT ?
`
	if now.IsZero() {
		now = ds.clock.Now().UTC()
	}

	var jobs []*crosspost.Job
	err := sqlx.SelectContext(ctx, ds.db, &jobs, query, crosspost.JobStateQueued, now, maxNumJobs)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "select queued jobs")
	}
	return jobs, nil
}

func (ds *Datastore) UpdateJob(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error) {
	query := `
UPDATE jobs
SET
    state = ?,
    error = ?,
    not_before = COALESCE(?, NOW())
WHERE
    id = ?
`
	var notBefore *time.Time
	if !job.NotBefore.IsZero() {
		notBefore = &job.NotBefore
	}
	_, err := ds.db.ExecContext(ctx, query, job.State, job.Error, notBefore, id)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "update job")
	}
	return job, nil
}

// CancelJob cancels a pending job. It is deliberately a no-op when the job is
// absent or already consumed: cancellation is point-in-time, an in-flight run
// is not interrupted.
func (ds *Datastore) CancelJob(ctx context.Context, id string) error {
	query := `
UPDATE jobs
SET state = ?
WHERE id = ? AND state = ?
`
	_, err := ds.db.ExecContext(ctx, query, crosspost.JobStateCancelled, id, crosspost.JobStateQueued)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "cancel job")
	}
	return nil
}
