package crosspost

import (
	"context"
	"io"
	"time"
)

// Datastore combines all the methods for the relational storage backing the
// scheduling pipeline.
type Datastore interface {
	///////////////////////////////////////////////////////////////////////////////
	// PostStore

	NewPost(ctx context.Context, post *Post) (*Post, error)
	// Post retrieves a post by id, without attachments or channel hydrated.
	Post(ctx context.Context, id string) (*Post, error)
	// ListPosts returns the matching posts ordered by scheduled_for
	// ascending, with attachments and channel hydrated.
	ListPosts(ctx context.Context, opts ListPostsOptions) ([]*Post, error)
	// UpdatePost writes the post's mutable fields (status, published_at,
	// error, retry_count). Last write wins, there is no locking discipline
	// for concurrent edits.
	UpdatePost(ctx context.Context, post *Post) error
	DeletePost(ctx context.Context, id string) error

	// ListUnqueuedScheduledPosts returns posts stuck in scheduled status with
	// no live queued job, used by the reconciliation sweep to close the
	// "post committed but enqueue failed" gap.
	ListUnqueuedScheduledPosts(ctx context.Context, limit int) ([]*Post, error)

	///////////////////////////////////////////////////////////////////////////////
	// AttachmentStore

	NewAttachment(ctx context.Context, att *Attachment) (*Attachment, error)
	ListAttachments(ctx context.Context, postID string) ([]*Attachment, error)
	DeletePostAttachments(ctx context.Context, postID string) error

	///////////////////////////////////////////////////////////////////////////////
	// ChannelStore (read-only for this pipeline)

	Channel(ctx context.Context, id string) (*Channel, error)

	///////////////////////////////////////////////////////////////////////////////
	// JobStore

	// NewJob enqueues a job. Enqueuing an id that already exists replaces
	// the existing row (upsert), which is what makes re-enqueueing a retry
	// with the same post id safe.
	NewJob(ctx context.Context, job *Job) (*Job, error)
	GetQueuedJobs(ctx context.Context, maxNumJobs int, now time.Time) ([]*Job, error)
	UpdateJob(ctx context.Context, id string, job *Job) (*Job, error)
	// CancelJob marks a queued job cancelled. It is a no-op if the job is
	// absent or was already consumed.
	CancelJob(ctx context.Context, id string) error

	///////////////////////////////////////////////////////////////////////////////
	// Locks (cron leader election)

	Lock(ctx context.Context, name string, owner string, expiration time.Duration) (bool, error)
	Unlock(ctx context.Context, name string, owner string) error
}

// MediaStore is the blob storage holding attachment media files, keyed by the
// attachment's storage key.
type MediaStore interface {
	PutMedia(ctx context.Context, key string, contentType string, media io.ReadSeeker) error
	// SignedMediaURL returns a time-limited URL a platform publisher can
	// fetch the media from.
	SignedMediaURL(ctx context.Context, key string) (string, error)
	DeleteMedia(ctx context.Context, key string) error
}
