// Package worker implements the processing of jobs stored in the datastore's
// queue. Jobs are picked up by a cron-driven worker loop, dispatched to the
// registered processor by name, and marked with their terminal state once
// processed.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Job defines an interface for jobs that can be run by the Worker.
type Job interface {
	// Name is the unique name of the job.
	Name() string

	// Run performs the actual work.
	Run(ctx context.Context, argsJSON json.RawMessage) error
}

// retryError is returned by a job processor to signal that the same job row
// should be redelivered after a delay instead of reaching a terminal state.
type retryError struct {
	cause error
	delay time.Duration
}

func (e *retryError) Error() string { return e.cause.Error() }
func (e *retryError) Unwrap() error { return e.cause }

// RetryAfter wraps a job processing error so that the worker re-queues the
// job with the given delay. The processor owns the decision to retry and for
// how long, the worker only applies it.
func RetryAfter(err error, delay time.Duration) error {
	return &retryError{cause: err, delay: delay}
}

// Worker runs jobs. NOT SAFE FOR CONCURRENT USE.
type Worker struct {
	ds    crosspost.Datastore
	log   kitlog.Logger
	clock clock.Clock

	// MaxJobs caps the number of jobs fetched per queue pass, defaults to
	// 100 when unset.
	MaxJobs int

	registry map[string]Job
}

func NewWorker(ds crosspost.Datastore, log kitlog.Logger, c clock.Clock) *Worker {
	return &Worker{
		ds:       ds,
		log:      log,
		clock:    c,
		registry: make(map[string]Job),
	}
}

func (w *Worker) Register(jobs ...Job) {
	for _, j := range jobs {
		name := j.Name()
		if _, ok := w.registry[name]; ok {
			panic(fmt.Sprintf("job %s already registered", name))
		}
		w.registry[name] = j
	}
}

// QueueJob enqueues a job for the processor identified by name. The job id is
// caller-chosen (the publish pipeline uses the post id) and enqueuing an
// existing id replaces the previous row. The args value is marshaled as JSON
// and provided to the job processor when the job is executed. A zero
// notBefore makes the job available immediately.
func QueueJob(ctx context.Context, ds crosspost.Datastore, name, id string, args interface{}, notBefore time.Time) (*crosspost.Job, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "marshal args")
	}

	job := &crosspost.Job{
		ID:        id,
		Name:      name,
		Args:      (*json.RawMessage)(&argsJSON),
		State:     crosspost.JobStateQueued,
		NotBefore: notBefore.UTC(),
	}

	return ds.NewJob(ctx, job)
}

// ProcessJobs processes all queued jobs.
func (w *Worker) ProcessJobs(ctx context.Context) error {
	maxNumJobs := w.MaxJobs
	if maxNumJobs <= 0 {
		maxNumJobs = 100
	}

	// process jobs until there are none left or the context is cancelled
	seen := make(map[string]struct{})
	for {
		jobs, err := w.ds.GetQueuedJobs(ctx, maxNumJobs, time.Time{})
		if err != nil {
			return ctxerr.Wrap(ctx, err, "get queued jobs")
		}

		if len(jobs) == 0 {
			break
		}

		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return ctxerr.Wrap(ctx, ctx.Err(), "context done")
			default:
			}

			log := kitlog.With(w.log, "job_id", job.ID, "job_name", job.Name)

			if _, ok := seen[job.ID]; ok {
				level.Debug(log).Log("msg", "some jobs failed or were re-queued, deferring to next cron execution")
				return nil
			}
			seen[job.ID] = struct{}{}

			level.Debug(log).Log("msg", "processing job")

			if err := w.processJob(ctx, job); err != nil {
				var retry *retryError
				if errors.As(err, &retry) {
					level.Debug(log).Log("msg", "re-queueing job", "delay", retry.delay, "err", err)
					job.State = crosspost.JobStateQueued
					job.Error = err.Error()
					job.NotBefore = w.clock.Now().UTC().Add(retry.delay)
				} else {
					level.Error(log).Log("msg", "process job", "err", err)
					job.State = crosspost.JobStateFailure
					job.Error = err.Error()
				}
			} else {
				job.State = crosspost.JobStateSuccess
				job.Error = ""
			}

			// When we update the job, the updated_at timestamp gets updated
			// and the job gets "pushed" to the back of the queue.
			// GetQueuedJobs fetches jobs by updated_at, so it will not return
			// the same job until the queue has been processed once.
			if _, err := w.ds.UpdateJob(ctx, job.ID, job); err != nil {
				level.Error(log).Log("update job", "err", err)
			}
		}
	}

	return nil
}

func (w *Worker) processJob(ctx context.Context, job *crosspost.Job) error {
	j, ok := w.registry[job.Name]
	if !ok {
		return ctxerr.Errorf(ctx, "unknown job: %s", job.Name)
	}

	var args json.RawMessage
	if job.Args != nil {
		args = *job.Args
	}

	return j.Run(ctx, args)
}
