package main

import (
	"context"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/config"
	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/publish"
	"github.com/crosspostd/crosspost/server/worker"
	"github.com/getsentry/sentry-go"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rotisserie/eris"
)

const (
	lockKeyWorker    = "worker"
	lockKeyReconcile = "reconcile"
)

func errHandler(ctx context.Context, logger kitlog.Logger, msg string, err error) {
	level.Error(logger).Log("msg", msg, "err", err)
	sentry.CaptureException(err)
	ctxerr.Handle(ctx, err) //nolint:errcheck
}

// errorReporter is the ctxerr handler registered on the serve context: it
// logs the full annotated chain of errors that reached the top of a call
// stack.
type errorReporter struct {
	logger kitlog.Logger
}

func newErrorReporter(logger kitlog.Logger) *errorReporter {
	return &errorReporter{logger: kitlog.With(logger, "component", "errors")}
}

func (r *errorReporter) Store(ctx context.Context, err error) {
	level.Error(r.logger).Log("chain", eris.ToString(err, true))
}

// cronWorker runs the publish worker loop: poll for the leader lock, process
// all due jobs, repeat.
func cronWorker(
	ctx context.Context,
	ds crosspost.Datastore,
	mediaStore crosspost.MediaStore,
	publishers *publish.Registry,
	logger kitlog.Logger,
	identifier string,
	cfg config.WorkerConfig,
) {
	logger = kitlog.With(logger, "cron", lockKeyWorker)

	w := worker.NewWorker(ds, logger, clock.C)
	w.MaxJobs = cfg.MaxJobsPerRun
	w.Register(&worker.PublishPost{
		Datastore:  ds,
		MediaStore: mediaStore,
		Publishers: publishers,
		Log:        logger,
		Clock:      clock.C,
	})

	ticker := time.NewTicker(10 * time.Second)
	for {
		select {
		case <-ticker.C:
			level.Debug(logger).Log("waiting", "done")
			ticker.Reset(cfg.PollInterval)
		case <-ctx.Done():
			level.Debug(logger).Log("exit", "done with cron.")
			return
		}

		if locked, err := ds.Lock(ctx, lockKeyWorker, identifier, cfg.LockDuration); err != nil {
			level.Error(logger).Log("msg", "Error acquiring lock", "err", err)
			continue
		} else if !locked {
			level.Debug(logger).Log("msg", "Not the leader. Skipping...")
			continue
		}

		workCtx, cancel := context.WithTimeout(ctx, cfg.LockDuration)
		if err := w.ProcessJobs(workCtx); err != nil {
			errHandler(ctx, logger, "Error processing jobs", err)
		}
		cancel()
	}
}

// cronReconcile re-enqueues scheduled posts that lost their publish job, the
// fallout of a crash between the post commit and the job enqueue.
func cronReconcile(
	ctx context.Context,
	ds crosspost.Datastore,
	logger kitlog.Logger,
	identifier string,
) {
	const (
		sweepInterval = 1 * time.Minute
		lockDuration  = 5 * time.Minute
		sweepLimit    = 100
	)

	logger = kitlog.With(logger, "cron", lockKeyReconcile)

	ticker := time.NewTicker(10 * time.Second)
	for {
		select {
		case <-ticker.C:
			ticker.Reset(sweepInterval)
		case <-ctx.Done():
			level.Debug(logger).Log("exit", "done with cron.")
			return
		}

		if locked, err := ds.Lock(ctx, lockKeyReconcile, identifier, lockDuration); err != nil {
			level.Error(logger).Log("msg", "Error acquiring lock", "err", err)
			continue
		} else if !locked {
			level.Debug(logger).Log("msg", "Not the leader. Skipping...")
			continue
		}

		posts, err := ds.ListUnqueuedScheduledPosts(ctx, sweepLimit)
		if err != nil {
			errHandler(ctx, logger, "Error listing unqueued posts", err)
			continue
		}
		for _, p := range posts {
			if _, err := worker.QueuePublishJob(ctx, ds, p.ID, p.ScheduledFor); err != nil {
				errHandler(ctx, logger, "Error re-enqueueing post", err)
				continue
			}
			level.Info(logger).Log("msg", "re-enqueued orphaned post", "post_id", p.ID)
		}
	}
}
