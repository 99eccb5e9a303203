package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/WatchBeam/clock"
	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/crosspostd/crosspost/server/publish"
	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Name of the publish post job as registered in the worker.
const publishPostJobName = "publish_post"

// PublishPostArgs is the payload of a publish job. It carries only the post
// id: everything else is re-read from the datastore at execution time so a
// post edited between scheduling and publication goes out with its current
// content.
type PublishPostArgs struct {
	PostID string `json:"post_id"`
}

// PublishPost is the job processor that pushes a due post to its platform.
type PublishPost struct {
	Datastore  crosspost.Datastore
	MediaStore crosspost.MediaStore
	Publishers *publish.Registry
	Log        kitlog.Logger
	Clock      clock.Clock
}

// Name returns the name of the job.
func (p *PublishPost) Name() string {
	return publishPostJobName
}

// Run executes the publish job.
func (p *PublishPost) Run(ctx context.Context, argsJSON json.RawMessage) error {
	var args PublishPostArgs
	if err := json.Unmarshal(argsJSON, &args); err != nil {
		return ctxerr.Wrap(ctx, err, "unmarshal args")
	}

	post, err := p.Datastore.Post(ctx, args.PostID)
	if err != nil {
		// a missing post is a structural failure, not a publish failure:
		// there is nothing to mark failed and nothing to retry
		return ctxerr.Wrap(ctx, err, "load post")
	}

	// the job may have been delivered after the post reached a terminal
	// state (cancelled while due, or already published by a concurrent run)
	if post.Status == crosspost.PostStatusPublished || post.Status == crosspost.PostStatusCancelled {
		level.Debug(p.Log).Log("msg", "skipping post in terminal status", "post_id", post.ID, "status", post.Status)
		return nil
	}

	channel, err := p.Datastore.Channel(ctx, post.ChannelID)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "load channel")
	}

	publisher, err := p.Publishers.For(channel.Platform)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "resolve publisher")
	}

	req, err := p.buildRequest(ctx, post, channel)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "build publish request")
	}

	if err := publisher.PublishPost(ctx, req); err != nil {
		return p.recordFailure(ctx, post.ID, err)
	}

	return p.recordSuccess(ctx, post)
}

func (p *PublishPost) buildRequest(ctx context.Context, post *crosspost.Post, channel *crosspost.Channel) (*publish.Request, error) {
	attachments, err := p.Datastore.ListAttachments(ctx, post.ID)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "list attachments")
	}

	if len(attachments) > 0 && p.MediaStore == nil {
		return nil, ctxerr.New(ctx, "post has media attachments but no media store is configured")
	}

	media := make([]publish.Media, 0, len(attachments))
	for _, att := range attachments {
		url, err := p.MediaStore.SignedMediaURL(ctx, att.StorageKey)
		if err != nil {
			return nil, ctxerr.Wrapf(ctx, err, "sign media URL for attachment %s", att.ID)
		}
		media = append(media, publish.Media{
			URL:         url,
			ContentType: att.ContentType,
			SizeBytes:   att.SizeBytes,
		})
	}

	return &publish.Request{
		PostID:         post.ID,
		Content:        post.Content,
		AccessToken:    channel.AccessToken,
		PlatformUserID: channel.PlatformUserID,
		Media:          media,
	}, nil
}

// recordSuccess marks the post published and releases its media. Attachment
// blobs are working data for the publication, once the platform accepted the
// post they are deleted.
func (p *PublishPost) recordSuccess(ctx context.Context, post *crosspost.Post) error {
	attachments, err := p.Datastore.ListAttachments(ctx, post.ID)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "list attachments for cleanup")
	}
	for _, att := range attachments {
		if err := p.MediaStore.DeleteMedia(ctx, att.StorageKey); err != nil {
			// best effort, an orphaned blob costs storage but not
			// correctness
			level.Error(p.Log).Log("msg", "delete media", "attachment_id", att.ID, "err", err)
		}
	}
	if err := p.Datastore.DeletePostAttachments(ctx, post.ID); err != nil {
		return ctxerr.Wrap(ctx, err, "delete post attachments")
	}

	now := p.Clock.Now().UTC()
	post.Status = crosspost.PostStatusPublished
	post.PublishedAt = &now
	post.Error = ""
	if err := p.Datastore.UpdatePost(ctx, post); err != nil {
		return ctxerr.Wrap(ctx, err, "mark post published")
	}

	level.Info(p.Log).Log("msg", "post published", "post_id", post.ID)
	return nil
}

// recordFailure marks the post failed with the publisher's error and decides
// whether to retry. The post is re-read first so the retry count reflects
// concurrent updates, the post row is the single authority on attempts made.
func (p *PublishPost) recordFailure(ctx context.Context, postID string, pubErr error) error {
	post, err := p.Datastore.Post(ctx, postID)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "reload post after publish failure")
	}
	if post.Status == crosspost.PostStatusCancelled {
		// cancelled while the publish attempt was in flight, let it rest
		return nil
	}

	post.Status = crosspost.PostStatusFailed
	post.Error = pubErr.Error()
	post.RetryCount++
	if err := p.Datastore.UpdatePost(ctx, post); err != nil {
		return ctxerr.Wrap(ctx, err, "mark post failed")
	}

	if post.RetryCount > crosspost.MaxPublishRetries {
		level.Error(p.Log).Log("msg", "post permanently failed", "post_id", post.ID, "retries", post.RetryCount-1, "err", pubErr)
		return ctxerr.Wrapf(ctx, pubErr, "publish post %s", post.ID)
	}

	// exponential backoff: 2s, 4s, 8s for the three retries
	delay := time.Duration(1<<post.RetryCount) * time.Second
	level.Info(p.Log).Log("msg", "publish failed, will retry", "post_id", post.ID, "retry", post.RetryCount, "delay", delay, "err", pubErr)
	return RetryAfter(pubErr, delay)
}

// QueuePublishJob enqueues the publish job for a post, due at notBefore. The
// job id is the post id, so re-enqueueing the same post replaces its pending
// job instead of adding a second one.
func QueuePublishJob(ctx context.Context, ds crosspost.Datastore, postID string, notBefore time.Time) (*crosspost.Job, error) {
	return QueueJob(ctx, ds, publishPostJobName, postID, &PublishPostArgs{PostID: postID}, notBefore)
}
