package service

import (
	"context"

	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/worker"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
)

func (svc *Service) SchedulePost(ctx context.Context, payload crosspost.SchedulePostPayload) (*crosspost.Post, error) {
	invalid := &crosspost.InvalidArgumentError{}
	if payload.ChannelID == "" {
		invalid.Append("channel_id", "missing required argument")
	}
	if payload.UserID == "" {
		invalid.Append("user_id", "missing required argument")
	}
	if payload.ScheduledFor.IsZero() {
		invalid.Append("scheduled_for", "missing required argument")
	}
	if invalid.HasErrors() {
		return nil, ctxerr.Wrap(ctx, invalid)
	}

	channel, err := svc.ds.Channel(ctx, payload.ChannelID)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "resolve channel")
	}
	if channel.UserID != payload.UserID {
		return nil, ctxerr.Wrap(ctx, crosspost.NewInvalidArgumentError("channel_id", "channel does not belong to user"))
	}

	spec, ok := crosspost.PlatformSpecByCode(channel.Platform)
	if !ok {
		return nil, ctxerr.Errorf(ctx, "unknown platform: %s", channel.Platform)
	}

	// the validation gate is all-or-nothing: a violation on the target
	// platform means nothing is persisted and no job is enqueued
	if violations := crosspost.ValidatePost(payload.Content, payload.Attachments, spec); len(violations) > 0 {
		return nil, ctxerr.Wrap(ctx, &crosspost.ValidationFailedError{ByPlatform: violations})
	}

	post := &crosspost.Post{
		ID:           uuid.NewString(),
		Content:      payload.Content,
		Status:       crosspost.PostStatusScheduled,
		ScheduledFor: payload.ScheduledFor.UTC(),
		ChannelID:    payload.ChannelID,
		UserID:       payload.UserID,
	}
	for _, att := range payload.Attachments {
		post.Attachments = append(post.Attachments, &crosspost.Attachment{
			ID:          uuid.NewString(),
			PostID:      post.ID,
			ContentType: att.ContentType,
			StorageKey:  att.StorageKey,
			SizeBytes:   att.SizeBytes,
		})
	}

	post, err = svc.ds.NewPost(ctx, post)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "create post")
	}

	// a scheduled_for in the past simply makes the job due immediately,
	// which is how "publish now" is expressed
	if _, err := worker.QueuePublishJob(ctx, svc.ds, post.ID, post.ScheduledFor); err != nil {
		// the post is committed but has no job: the reconciliation sweep
		// will pick it up, so report the enqueue failure without undoing
		// the post
		level.Error(svc.logger).Log("msg", "enqueue publish job", "post_id", post.ID, "err", err)
		return nil, ctxerr.Wrap(ctx, err, "enqueue publish job")
	}

	level.Debug(svc.logger).Log("msg", "post scheduled", "post_id", post.ID, "scheduled_for", post.ScheduledFor)
	return post, nil
}

func (svc *Service) CancelPost(ctx context.Context, postID string) error {
	post, err := svc.ds.Post(ctx, postID)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "load post")
	}

	switch post.Status {
	case crosspost.PostStatusPublished:
		return ctxerr.Wrap(ctx, crosspost.NewInvalidArgumentError("post_id", "post is already published"))
	case crosspost.PostStatusCancelled:
		// cancelling twice is fine
		return nil
	}

	// cancel the job first: if this succeeds and the status update fails,
	// the worst case is a cancelled job for a still-scheduled post, which
	// the reconciliation sweep re-enqueues. The reverse order could publish
	// a post the user believes cancelled.
	if err := svc.ds.CancelJob(ctx, postID); err != nil {
		return ctxerr.Wrap(ctx, err, "cancel publish job")
	}

	post.Status = crosspost.PostStatusCancelled
	if err := svc.ds.UpdatePost(ctx, post); err != nil {
		return ctxerr.Wrap(ctx, err, "mark post cancelled")
	}

	level.Debug(svc.logger).Log("msg", "post cancelled", "post_id", post.ID)
	return nil
}

func (svc *Service) ListScheduledPosts(ctx context.Context, userID string, status *crosspost.PostStatus) ([]*crosspost.Post, error) {
	if userID == "" {
		return nil, ctxerr.Wrap(ctx, crosspost.NewInvalidArgumentError("user_id", "missing required argument"))
	}
	if status != nil && !status.IsValid() {
		return nil, ctxerr.Wrap(ctx, crosspost.NewInvalidArgumentError("status", "invalid status filter"))
	}

	posts, err := svc.ds.ListPosts(ctx, crosspost.ListPostsOptions{UserID: userID, Status: status})
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "list posts")
	}
	return posts, nil
}
