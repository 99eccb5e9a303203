package crosspost

import (
	"time"
)

// PostStatus is the lifecycle status of a scheduled post.
type PostStatus string

// The possible statuses of a post.
//
//	scheduled ──(publish ok)──────► published
//	scheduled ──(publish failed)──► failed ──(retries left)──► scheduled again
//	failed (retries exhausted) ───► permanently failed, no further attempts
//	scheduled/failed ──(cancel)───► cancelled
//
// Note that "failed" covers both "failed, will retry" and "failed for good";
// PermanentlyFailed distinguishes the two.
const (
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
	PostStatusCancelled PostStatus = "cancelled"
)

func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusScheduled, PostStatusPublished, PostStatusFailed, PostStatusCancelled:
		return true
	}
	return false
}

// MaxPublishRetries is the number of automatic publish retries after the
// initial attempt. Once RetryCount exceeds this value the post stays failed.
const MaxPublishRetries = 3

// Post is the unit of scheduled work: a piece of content to be published to a
// channel at a future time. A post's id doubles as its job id in the queue,
// which is what makes cancellation and idempotent re-enqueue possible without
// a separate lookup table.
type Post struct {
	ID           string     `json:"id" db:"id"`
	Content      string     `json:"content" db:"content"`
	Status       PostStatus `json:"status" db:"status"`
	ScheduledFor time.Time  `json:"scheduled_for" db:"scheduled_for"`
	PublishedAt  *time.Time `json:"published_at" db:"published_at"`
	Error        string     `json:"error,omitempty" db:"error"`
	RetryCount   int        `json:"retry_count" db:"retry_count"`
	ChannelID    string     `json:"channel_id" db:"channel_id"`
	UserID       string     `json:"user_id" db:"user_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`

	// Attachments is filled by list/detail loads, not stored on the posts
	// table itself.
	Attachments []*Attachment `json:"attachments,omitempty" db:"-"`
	// Channel is filled by list loads.
	Channel *Channel `json:"channel,omitempty" db:"-"`
}

// PermanentlyFailed reports whether the post failed and exhausted its
// automatic retries.
func (p *Post) PermanentlyFailed() bool {
	return p.Status == PostStatusFailed && p.RetryCount > MaxPublishRetries
}

// Attachment is a media file linked to a post. Attachments are transient
// working data: their backing objects are deleted once the post is published.
type Attachment struct {
	ID          string    `json:"id" db:"id"`
	PostID      string    `json:"post_id" db:"post_id"`
	ContentType string    `json:"content_type" db:"content_type"`
	StorageKey  string    `json:"storage_key" db:"storage_key"`
	SizeBytes   int64     `json:"size_bytes" db:"size_bytes"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SchedulePostPayload is the input to Service.SchedulePost.
type SchedulePostPayload struct {
	Content      string              `json:"content"`
	ScheduledFor time.Time           `json:"scheduled_for"`
	ChannelID    string              `json:"channel_id"`
	UserID       string              `json:"user_id"`
	Attachments  []AttachmentPayload `json:"attachments"`
}

// AttachmentPayload references media already uploaded to the media store.
type AttachmentPayload struct {
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ListPostsOptions controls the posts returned by ListPosts.
type ListPostsOptions struct {
	UserID string
	// Status restricts results to a single status when set.
	Status *PostStatus
}
