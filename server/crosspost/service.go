package crosspost

import "context"

// Service orchestrates the lifecycle of scheduled posts, mediating between
// the datastore, the job queue and the platform publishers.
type Service interface {
	// SchedulePost runs the validation gate against the resolved channel's
	// platform, persists the post and its attachments, and enqueues the
	// publish job with id = post id and not_before = ScheduledFor. A
	// ScheduledFor in the past is accepted: the job simply runs immediately,
	// which is how "publish now" is expressed. On validation failure it
	// returns a *ValidationFailedError and persists nothing.
	SchedulePost(ctx context.Context, payload SchedulePostPayload) (*Post, error)

	// CancelPost cancels the pending job for the post and marks the post
	// cancelled. Cancelling an already-cancelled post is a no-op; cancelling
	// a published post is an error. An in-flight publish is not interrupted.
	CancelPost(ctx context.Context, postID string) error

	// ListScheduledPosts returns the user's posts, optionally restricted to
	// a status, ordered by scheduled_for ascending, with attachments and
	// channel hydrated.
	ListScheduledPosts(ctx context.Context, userID string, status *PostStatus) ([]*Post, error)
}
