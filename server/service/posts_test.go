package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/mock"
	"github.com/crosspostd/crosspost/server/ptr"
	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"github.com/tj/assert"
)

func newTestService(ds *mock.Store) *Service {
	return NewService(ds, kitlog.NewNopLogger(), clock.NewMockClock())
}

func testChannel(platform string) *crosspost.Channel {
	return &crosspost.Channel{
		ID:             "c1",
		Platform:       platform,
		AccessToken:    "tok",
		RefreshToken:   ptr.String("refresh"),
		TokenExpires:   ptr.Time(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)),
		PlatformUserID: "acct-1",
		UserID:         "u1",
	}
}

func TestSchedulePost(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)
	ctx := context.Background()

	scheduledFor := time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC)

	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		require.Equal(t, "c1", id)
		return testChannel("facebook"), nil
	}
	ds.NewPostFunc = func(ctx context.Context, post *crosspost.Post) (*crosspost.Post, error) {
		assert.NotEmpty(t, post.ID)
		assert.Equal(t, crosspost.PostStatusScheduled, post.Status)
		assert.Equal(t, scheduledFor, post.ScheduledFor)
		require.Len(t, post.Attachments, 1)
		assert.Equal(t, post.ID, post.Attachments[0].PostID)
		return post, nil
	}
	ds.NewJobFunc = func(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error) {
		return job, nil
	}

	post, err := svc.SchedulePost(ctx, crosspost.SchedulePostPayload{
		Content:      "big announcement",
		ScheduledFor: scheduledFor,
		ChannelID:    "c1",
		UserID:       "u1",
		Attachments: []crosspost.AttachmentPayload{
			{ContentType: "image/png", StorageKey: "u1/img.png", SizeBytes: 2048},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, post)

	require.True(t, ds.NewPostFuncInvoked)
	require.True(t, ds.NewJobFuncInvoked)
}

func TestSchedulePostJobMatchesPost(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)
	ctx := context.Background()

	scheduledFor := time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC)

	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		return testChannel("facebook"), nil
	}
	var createdID string
	ds.NewPostFunc = func(ctx context.Context, post *crosspost.Post) (*crosspost.Post, error) {
		createdID = post.ID
		return post, nil
	}
	ds.NewJobFunc = func(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error) {
		// the job id is the post id and it becomes due exactly at the
		// scheduled time
		assert.Equal(t, createdID, job.ID)
		assert.Equal(t, scheduledFor, job.NotBefore)
		assert.Equal(t, crosspost.JobStateQueued, job.State)
		return job, nil
	}

	_, err := svc.SchedulePost(ctx, crosspost.SchedulePostPayload{
		Content:      "hello",
		ScheduledFor: scheduledFor,
		ChannelID:    "c1",
		UserID:       "u1",
	})
	require.NoError(t, err)
	require.True(t, ds.NewJobFuncInvoked)
}

func TestSchedulePostInPastAllowed(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		return testChannel("facebook"), nil
	}
	ds.NewPostFunc = func(ctx context.Context, post *crosspost.Post) (*crosspost.Post, error) {
		return post, nil
	}
	ds.NewJobFunc = func(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error) {
		return job, nil
	}

	// "publish now" is a post scheduled in the past, the job is simply due
	// immediately
	_, err := svc.SchedulePost(context.Background(), crosspost.SchedulePostPayload{
		Content:      "now",
		ScheduledFor: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ChannelID:    "c1",
		UserID:       "u1",
	})
	require.NoError(t, err)
}

func TestSchedulePostValidationGate(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)
	ctx := context.Background()

	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		return testChannel("tiktok"), nil
	}

	// no video attachment for a platform that requires one
	_, err := svc.SchedulePost(ctx, crosspost.SchedulePostPayload{
		Content:      "my tiktok",
		ScheduledFor: time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC),
		ChannelID:    "c1",
		UserID:       "u1",
	})
	require.Error(t, err)

	var vErr *crosspost.ValidationFailedError
	require.True(t, errors.As(err, &vErr))
	require.Contains(t, vErr.ByPlatform, "tiktok")
	assert.Contains(t, vErr.ByPlatform["tiktok"][0], "requires a video attachment")

	// all-or-nothing: nothing persisted, nothing enqueued
	require.False(t, ds.NewPostFuncInvoked)
	require.False(t, ds.NewJobFuncInvoked)
}

func TestSchedulePostContentTooLong(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		return testChannel("instagram"), nil
	}

	_, err := svc.SchedulePost(context.Background(), crosspost.SchedulePostPayload{
		Content:      strings.Repeat("x", 2201),
		ScheduledFor: time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC),
		ChannelID:    "c1",
		UserID:       "u1",
		Attachments: []crosspost.AttachmentPayload{
			{ContentType: "image/jpeg", StorageKey: "u1/a.jpg"},
		},
	})
	require.Error(t, err)

	var vErr *crosspost.ValidationFailedError
	require.True(t, errors.As(err, &vErr))
	require.Contains(t, vErr.ByPlatform, "instagram")
	require.False(t, ds.NewPostFuncInvoked)
}

func TestSchedulePostChannelOwnership(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		ch := testChannel("facebook")
		ch.UserID = "someone-else"
		return ch, nil
	}

	_, err := svc.SchedulePost(context.Background(), crosspost.SchedulePostPayload{
		Content:      "hello",
		ScheduledFor: time.Date(2026, 9, 15, 18, 0, 0, 0, time.UTC),
		ChannelID:    "c1",
		UserID:       "u1",
	})
	require.Error(t, err)
	require.False(t, ds.NewPostFuncInvoked)
}

func TestCancelPost(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)
	ctx := context.Background()

	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		return &crosspost.Post{ID: "p1", Status: crosspost.PostStatusScheduled}, nil
	}
	ds.CancelJobFunc = func(ctx context.Context, id string) error {
		assert.Equal(t, "p1", id)
		return nil
	}
	ds.UpdatePostFunc = func(ctx context.Context, post *crosspost.Post) error {
		assert.Equal(t, crosspost.PostStatusCancelled, post.Status)
		return nil
	}

	require.NoError(t, svc.CancelPost(ctx, "p1"))
	require.True(t, ds.CancelJobFuncInvoked)
	require.True(t, ds.UpdatePostFuncInvoked)
}

func TestCancelPostFailedPost(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	// a failed post awaiting retry can still be cancelled
	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		return &crosspost.Post{ID: "p1", Status: crosspost.PostStatusFailed, RetryCount: 2}, nil
	}
	ds.CancelJobFunc = func(ctx context.Context, id string) error { return nil }
	ds.UpdatePostFunc = func(ctx context.Context, post *crosspost.Post) error {
		assert.Equal(t, crosspost.PostStatusCancelled, post.Status)
		return nil
	}

	require.NoError(t, svc.CancelPost(context.Background(), "p1"))
	require.True(t, ds.UpdatePostFuncInvoked)
}

func TestCancelPostPublished(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		return &crosspost.Post{ID: "p1", Status: crosspost.PostStatusPublished}, nil
	}

	err := svc.CancelPost(context.Background(), "p1")
	require.Error(t, err)

	var invalid *crosspost.InvalidArgumentError
	require.True(t, errors.As(err, &invalid))
	require.False(t, ds.CancelJobFuncInvoked)
	require.False(t, ds.UpdatePostFuncInvoked)
}

func TestCancelPostIdempotent(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		return &crosspost.Post{ID: "p1", Status: crosspost.PostStatusCancelled}, nil
	}

	// cancelling twice is a no-op, not an error
	require.NoError(t, svc.CancelPost(context.Background(), "p1"))
	require.False(t, ds.CancelJobFuncInvoked)
	require.False(t, ds.UpdatePostFuncInvoked)
}

func TestListScheduledPosts(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	status := crosspost.PostStatusScheduled
	ds.ListPostsFunc = func(ctx context.Context, opts crosspost.ListPostsOptions) ([]*crosspost.Post, error) {
		assert.Equal(t, "u1", opts.UserID)
		require.NotNil(t, opts.Status)
		assert.Equal(t, status, *opts.Status)
		return []*crosspost.Post{{ID: "p1"}, {ID: "p2"}}, nil
	}

	posts, err := svc.ListScheduledPosts(context.Background(), "u1", &status)
	require.NoError(t, err)
	require.Len(t, posts, 2)
}

func TestListScheduledPostsInvalidStatus(t *testing.T) {
	ds := new(mock.Store)
	svc := newTestService(ds)

	bogus := crosspost.PostStatus("sent")
	_, err := svc.ListScheduledPosts(context.Background(), "u1", &bogus)
	require.Error(t, err)
	require.False(t, ds.ListPostsFuncInvoked)
}
