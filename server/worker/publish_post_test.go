package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/mock"
	"github.com/crosspostd/crosspost/server/publish"
	kitlog "github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"github.com/tj/assert"
)

type fakePublisher struct {
	platform string
	err      error
	lastReq  *publish.Request
	calls    int
}

func (f *fakePublisher) Platform() string { return f.platform }

func (f *fakePublisher) PublishPost(ctx context.Context, req *publish.Request) error {
	f.calls++
	f.lastReq = req
	return f.err
}

type notFoundErr struct{}

func (notFoundErr) Error() string    { return "not found" }
func (notFoundErr) IsNotFound() bool { return true }

func testPublishPost(ds *mock.Store, ms *mock.MediaStore, pub *fakePublisher, c clock.Clock) *PublishPost {
	return &PublishPost{
		Datastore:  ds,
		MediaStore: ms,
		Publishers: publish.NewRegistry(pub),
		Log:        kitlog.NewNopLogger(),
		Clock:      c,
	}
}

func publishArgs(t *testing.T, postID string) json.RawMessage {
	t.Helper()
	argsJSON, err := json.Marshal(&PublishPostArgs{PostID: postID})
	require.NoError(t, err)
	return argsJSON
}

func TestPublishPostSuccess(t *testing.T) {
	ds := new(mock.Store)
	ms := new(mock.MediaStore)
	pub := &fakePublisher{platform: "tiktok"}
	mockClock := clock.NewMockClock()

	post := &crosspost.Post{
		ID:        "p1",
		Content:   "hello",
		Status:    crosspost.PostStatusScheduled,
		ChannelID: "c1",
	}
	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		require.Equal(t, "p1", id)
		return post, nil
	}
	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		require.Equal(t, "c1", id)
		return &crosspost.Channel{
			ID:             "c1",
			Platform:       "tiktok",
			AccessToken:    "tok",
			PlatformUserID: "open-id",
		}, nil
	}
	ds.ListAttachmentsFunc = func(ctx context.Context, postID string) ([]*crosspost.Attachment, error) {
		return []*crosspost.Attachment{
			{ID: "a1", PostID: "p1", ContentType: "video/mp4", StorageKey: "p1/a1", SizeBytes: 1024},
		}, nil
	}
	ms.SignedMediaURLFunc = func(ctx context.Context, key string) (string, error) {
		return "https://media.example.com/" + key, nil
	}
	ms.DeleteMediaFunc = func(ctx context.Context, key string) error {
		assert.Equal(t, "p1/a1", key)
		return nil
	}
	ds.DeletePostAttachmentsFunc = func(ctx context.Context, postID string) error {
		assert.Equal(t, "p1", postID)
		return nil
	}
	ds.UpdatePostFunc = func(ctx context.Context, p *crosspost.Post) error {
		assert.Equal(t, crosspost.PostStatusPublished, p.Status)
		require.NotNil(t, p.PublishedAt)
		assert.Equal(t, mockClock.Now().UTC(), *p.PublishedAt)
		assert.Empty(t, p.Error)
		return nil
	}

	j := testPublishPost(ds, ms, pub, mockClock)
	err := j.Run(context.Background(), publishArgs(t, "p1"))
	require.NoError(t, err)

	require.Equal(t, 1, pub.calls)
	require.NotNil(t, pub.lastReq)
	assert.Equal(t, "hello", pub.lastReq.Content)
	assert.Equal(t, "tok", pub.lastReq.AccessToken)
	assert.Equal(t, "open-id", pub.lastReq.PlatformUserID)
	require.Len(t, pub.lastReq.Media, 1)
	assert.Equal(t, "https://media.example.com/p1/a1", pub.lastReq.Media[0].URL)

	require.True(t, ms.DeleteMediaFuncInvoked)
	require.True(t, ds.DeletePostAttachmentsFuncInvoked)
	require.True(t, ds.UpdatePostFuncInvoked)
}

func TestPublishPostFailureSchedulesRetries(t *testing.T) {
	// walk the post through its whole failure lifecycle and check the
	// backoff schedule derived from the retry count
	cases := []struct {
		retryCountBefore int
		wantDelay        time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("retry_count_%d", tc.retryCountBefore), func(t *testing.T) {
			ds := new(mock.Store)
			ms := new(mock.MediaStore)
			pub := &fakePublisher{platform: "facebook", err: errors.New("API rate limit exceeded")}

			post := &crosspost.Post{
				ID:         "p1",
				Status:     crosspost.PostStatusScheduled,
				ChannelID:  "c1",
				RetryCount: tc.retryCountBefore,
			}
			ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
				return post, nil
			}
			ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
				return &crosspost.Channel{ID: "c1", Platform: "facebook"}, nil
			}
			ds.ListAttachmentsFunc = func(ctx context.Context, postID string) ([]*crosspost.Attachment, error) {
				return nil, nil
			}
			ds.UpdatePostFunc = func(ctx context.Context, p *crosspost.Post) error {
				assert.Equal(t, crosspost.PostStatusFailed, p.Status)
				// the platform error lands verbatim on the post
				assert.Equal(t, "API rate limit exceeded", p.Error)
				assert.Equal(t, tc.retryCountBefore+1, p.RetryCount)
				return nil
			}

			j := testPublishPost(ds, ms, pub, clock.NewMockClock())
			err := j.Run(context.Background(), publishArgs(t, "p1"))
			require.Error(t, err)

			var retry *retryError
			require.True(t, errors.As(err, &retry))
			assert.Equal(t, tc.wantDelay, retry.delay)
			require.True(t, ds.UpdatePostFuncInvoked)
		})
	}
}

func TestPublishPostRetryCeiling(t *testing.T) {
	ds := new(mock.Store)
	ms := new(mock.MediaStore)
	pub := &fakePublisher{platform: "facebook", err: errors.New("still broken")}

	// fourth attempt: three retries already consumed
	post := &crosspost.Post{
		ID:         "p1",
		Status:     crosspost.PostStatusFailed,
		ChannelID:  "c1",
		RetryCount: crosspost.MaxPublishRetries,
	}
	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		return post, nil
	}
	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		return &crosspost.Channel{ID: "c1", Platform: "facebook"}, nil
	}
	ds.ListAttachmentsFunc = func(ctx context.Context, postID string) ([]*crosspost.Attachment, error) {
		return nil, nil
	}
	ds.UpdatePostFunc = func(ctx context.Context, p *crosspost.Post) error {
		assert.Equal(t, crosspost.PostStatusFailed, p.Status)
		assert.Equal(t, crosspost.MaxPublishRetries+1, p.RetryCount)
		assert.True(t, p.PermanentlyFailed())
		return nil
	}

	j := testPublishPost(ds, ms, pub, clock.NewMockClock())
	err := j.Run(context.Background(), publishArgs(t, "p1"))
	require.Error(t, err)

	// no retry this time, the error is terminal and the job ends in failure
	var retry *retryError
	require.False(t, errors.As(err, &retry))
}

func TestPublishPostSkipsTerminalStatuses(t *testing.T) {
	for _, status := range []crosspost.PostStatus{crosspost.PostStatusPublished, crosspost.PostStatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			ds := new(mock.Store)
			ms := new(mock.MediaStore)
			pub := &fakePublisher{platform: "facebook"}

			ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
				return &crosspost.Post{ID: "p1", Status: status, ChannelID: "c1"}, nil
			}

			j := testPublishPost(ds, ms, pub, clock.NewMockClock())
			err := j.Run(context.Background(), publishArgs(t, "p1"))
			require.NoError(t, err)

			require.Equal(t, 0, pub.calls)
			require.False(t, ds.UpdatePostFuncInvoked)
		})
	}
}

func TestPublishPostCancelledDuringAttempt(t *testing.T) {
	ds := new(mock.Store)
	ms := new(mock.MediaStore)
	pub := &fakePublisher{platform: "facebook", err: errors.New("boom")}

	postCalls := 0
	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		postCalls++
		if postCalls == 1 {
			return &crosspost.Post{ID: "p1", Status: crosspost.PostStatusScheduled, ChannelID: "c1"}, nil
		}
		// by the time the failure is recorded, the post was cancelled
		return &crosspost.Post{ID: "p1", Status: crosspost.PostStatusCancelled, ChannelID: "c1"}, nil
	}
	ds.ChannelFunc = func(ctx context.Context, id string) (*crosspost.Channel, error) {
		return &crosspost.Channel{ID: "c1", Platform: "facebook"}, nil
	}
	ds.ListAttachmentsFunc = func(ctx context.Context, postID string) ([]*crosspost.Attachment, error) {
		return nil, nil
	}

	j := testPublishPost(ds, ms, pub, clock.NewMockClock())
	err := j.Run(context.Background(), publishArgs(t, "p1"))
	require.NoError(t, err)

	// no failed status written, no retry scheduled
	require.False(t, ds.UpdatePostFuncInvoked)
}

func TestPublishPostMissingPost(t *testing.T) {
	ds := new(mock.Store)
	ms := new(mock.MediaStore)
	pub := &fakePublisher{platform: "facebook"}

	ds.PostFunc = func(ctx context.Context, id string) (*crosspost.Post, error) {
		return nil, notFoundErr{}
	}

	j := testPublishPost(ds, ms, pub, clock.NewMockClock())
	err := j.Run(context.Background(), publishArgs(t, "p1"))
	require.Error(t, err)
	require.True(t, crosspost.IsNotFound(err))

	var retry *retryError
	require.False(t, errors.As(err, &retry))
	require.Equal(t, 0, pub.calls)
}

func TestQueuePublishJob(t *testing.T) {
	ds := new(mock.Store)

	notBefore := time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)
	ds.NewJobFunc = func(ctx context.Context, job *crosspost.Job) (*crosspost.Job, error) {
		// job id is the post id
		assert.Equal(t, "p1", job.ID)
		assert.Equal(t, publishPostJobName, job.Name)
		assert.Equal(t, notBefore, job.NotBefore)
		require.NotNil(t, job.Args)
		assert.JSONEq(t, `{"post_id":"p1"}`, string(*job.Args))
		return job, nil
	}

	_, err := QueuePublishJob(context.Background(), ds, "p1", notBefore)
	require.NoError(t, err)
	require.True(t, ds.NewJobFuncInvoked)
}
