package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/mock"
	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"github.com/tj/assert"
)

type testJob struct {
	name string
	run  func(ctx context.Context, argsJSON json.RawMessage) error
}

func (t testJob) Name() string {
	return t.name
}

func (t testJob) Run(ctx context.Context, argsJSON json.RawMessage) error {
	return t.run(ctx, argsJSON)
}

func TestWorker(t *testing.T) {
	ds := new(mock.Store)

	// set up mocks
	getQueuedJobsCalled := 0
	ds.GetQueuedJobsFunc = func(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error) {
		if getQueuedJobsCalled > 0 {
			return nil, nil
		}
		getQueuedJobsCalled++

		argsJSON := json.RawMessage(`{"arg1":"foo"}`)
		return []*crosspost.Job{
			{
				ID:   "a7f4c9e2-0000-0000-0000-000000000001",
				Name: "test",
				Args: &argsJSON,
			},
		}, nil
	}
	ds.UpdateJobFunc = func(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error) {
		assert.Equal(t, crosspost.JobStateSuccess, job.State)
		assert.Empty(t, job.Error)
		return job, nil
	}

	logger := kitlog.NewNopLogger()
	w := NewWorker(ds, logger, clock.NewMockClock())

	// register a test job
	jobCalled := false
	j := testJob{
		name: "test",
		run: func(ctx context.Context, argsJSON json.RawMessage) error {
			jobCalled = true

			var args map[string]string
			require.NoError(t, json.Unmarshal(argsJSON, &args))
			assert.Equal(t, "foo", args["arg1"])
			return nil
		},
	}

	w.Register(j)

	err := w.ProcessJobs(context.Background())
	require.NoError(t, err)

	require.True(t, ds.GetQueuedJobsFuncInvoked)
	require.True(t, ds.UpdateJobFuncInvoked)

	require.True(t, jobCalled)
}

func TestWorkerFailedJob(t *testing.T) {
	ds := new(mock.Store)

	getQueuedJobsCalled := 0
	ds.GetQueuedJobsFunc = func(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error) {
		if getQueuedJobsCalled > 0 {
			return nil, nil
		}
		getQueuedJobsCalled++
		return []*crosspost.Job{
			{ID: "a7f4c9e2-0000-0000-0000-000000000002", Name: "test", State: crosspost.JobStateQueued},
		}, nil
	}

	ds.UpdateJobFunc = func(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error) {
		// a plain error is terminal: the row is delivered once, failure is
		// its final state
		assert.Equal(t, crosspost.JobStateFailure, job.State)
		assert.Contains(t, job.Error, "boom")
		return job, nil
	}

	w := NewWorker(ds, kitlog.NewNopLogger(), clock.NewMockClock())
	w.Register(testJob{name: "test", run: func(ctx context.Context, argsJSON json.RawMessage) error {
		return errors.New("boom")
	}})

	err := w.ProcessJobs(context.Background())
	require.NoError(t, err)
	require.True(t, ds.UpdateJobFuncInvoked)
}

func TestWorkerRetryRequeues(t *testing.T) {
	ds := new(mock.Store)
	mockClock := clock.NewMockClock()

	getQueuedJobsCalled := 0
	ds.GetQueuedJobsFunc = func(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error) {
		if getQueuedJobsCalled > 0 {
			return nil, nil
		}
		getQueuedJobsCalled++
		return []*crosspost.Job{
			{ID: "a7f4c9e2-0000-0000-0000-000000000003", Name: "test", State: crosspost.JobStateQueued},
		}, nil
	}

	ds.UpdateJobFunc = func(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error) {
		// a retry error re-queues the same row with the requested delay
		assert.Equal(t, crosspost.JobStateQueued, job.State)
		assert.Contains(t, job.Error, "transient")
		assert.Equal(t, mockClock.Now().UTC().Add(4*time.Second), job.NotBefore)
		return job, nil
	}

	w := NewWorker(ds, kitlog.NewNopLogger(), mockClock)
	w.Register(testJob{name: "test", run: func(ctx context.Context, argsJSON json.RawMessage) error {
		return RetryAfter(errors.New("transient"), 4*time.Second)
	}})

	err := w.ProcessJobs(context.Background())
	require.NoError(t, err)
	require.True(t, ds.UpdateJobFuncInvoked)
}

func TestWorkerUnknownJob(t *testing.T) {
	ds := new(mock.Store)

	getQueuedJobsCalled := 0
	ds.GetQueuedJobsFunc = func(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error) {
		if getQueuedJobsCalled > 0 {
			return nil, nil
		}
		getQueuedJobsCalled++
		return []*crosspost.Job{
			{ID: "a7f4c9e2-0000-0000-0000-000000000004", Name: "nope", State: crosspost.JobStateQueued},
		}, nil
	}

	ds.UpdateJobFunc = func(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error) {
		assert.Equal(t, crosspost.JobStateFailure, job.State)
		assert.Contains(t, job.Error, "unknown job")
		return job, nil
	}

	w := NewWorker(ds, kitlog.NewNopLogger(), clock.NewMockClock())

	err := w.ProcessJobs(context.Background())
	require.NoError(t, err)
	require.True(t, ds.UpdateJobFuncInvoked)
}

func TestWorkerStopsOnSeenJob(t *testing.T) {
	ds := new(mock.Store)

	// keep returning the same job, as would happen if updating it fails or
	// it is re-queued with an immediate not_before
	ds.GetQueuedJobsFunc = func(ctx context.Context, maxNumJobs int, now time.Time) ([]*crosspost.Job, error) {
		return []*crosspost.Job{
			{ID: "a7f4c9e2-0000-0000-0000-000000000005", Name: "test", State: crosspost.JobStateQueued},
		}, nil
	}

	updateCalls := 0
	ds.UpdateJobFunc = func(ctx context.Context, id string, job *crosspost.Job) (*crosspost.Job, error) {
		updateCalls++
		return job, nil
	}

	runCalls := 0
	w := NewWorker(ds, kitlog.NewNopLogger(), clock.NewMockClock())
	w.Register(testJob{name: "test", run: func(ctx context.Context, argsJSON json.RawMessage) error {
		runCalls++
		return RetryAfter(errors.New("transient"), time.Second)
	}})

	err := w.ProcessJobs(context.Background())
	require.NoError(t, err)

	// the second encounter of the same id ends the pass instead of spinning
	require.Equal(t, 1, runCalls)
	require.Equal(t, 1, updateCalls)
}

func TestQueueJob(t *testing.T) {
	ds := new(mock.Store)

	notBefore := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	ds.NewJobFunc = func(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error) {
		assert.Equal(t, "a7f4c9e2-0000-0000-0000-000000000006", job.ID)
		assert.Equal(t, "test", job.Name)
		assert.Equal(t, crosspost.JobStateQueued, job.State)
		assert.Equal(t, notBefore, job.NotBefore)
		require.NotNil(t, job.Args)
		assert.JSONEq(t, `{"arg1":"foo"}`, string(*job.Args))
		return job, nil
	}

	_, err := QueueJob(context.Background(), ds, "test", "a7f4c9e2-0000-0000-0000-000000000006",
		map[string]string{"arg1": "foo"}, notBefore)
	require.NoError(t, err)
	require.True(t, ds.NewJobFuncInvoked)
}
