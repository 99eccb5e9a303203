package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// NewPost creates the post and its attachment rows in a single transaction,
// so a post never exists half-created.
func (ds *Datastore) NewPost(ctx context.Context, post *crosspost.Post) (*crosspost.Post, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	if post.Status == "" {
		post.Status = crosspost.PostStatusScheduled
	}

	err := ds.withRetryTxx(ctx, func(tx sqlx.ExtContext) error {
		query := `
INSERT INTO posts (
    id,
    content,
    status,
    scheduled_for,
    error,
    retry_count,
    channel_id,
    user_id
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`
		if _, err := tx.ExecContext(ctx, query,
			post.ID, post.Content, post.Status, post.ScheduledFor, post.Error,
			post.RetryCount, post.ChannelID, post.UserID,
		); err != nil {
			if isDuplicate(err) {
				return ctxerr.Wrap(ctx, alreadyExists("Post", post.ID))
			}
			return ctxerr.Wrap(ctx, err, "insert post")
		}

		for _, att := range post.Attachments {
			if att.ID == "" {
				att.ID = uuid.NewString()
			}
			att.PostID = post.ID
			if err := insertAttachment(ctx, tx, att); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Post retrieves a post by id. Attachments and channel are not hydrated, use
// ListPosts or ListAttachments when they are needed.
func (ds *Datastore) Post(ctx context.Context, id string) (*crosspost.Post, error) {
	query := `
SELECT
    id, content, status, scheduled_for, published_at, error, retry_count,
    channel_id, user_id, created_at, updated_at
FROM posts
WHERE id = ?
`
	var post crosspost.Post
	if err := sqlx.GetContext(ctx, ds.db, &post, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ctxerr.Wrap(ctx, notFound("Post").WithID(id))
		}
		return nil, ctxerr.Wrap(ctx, err, "select post")
	}
	return &post, nil
}

// ListPosts returns the posts matching opts ordered by scheduled_for
// ascending, with attachments and channel hydrated.
func (ds *Datastore) ListPosts(ctx context.Context, opts crosspost.ListPostsOptions) ([]*crosspost.Post, error) {
	stmt := goquDialect.From("posts").Select(
		"id", "content", "status", "scheduled_for", "published_at", "error",
		"retry_count", "channel_id", "user_id", "created_at", "updated_at",
	).Order(goqu.C("scheduled_for").Asc())

	if opts.UserID != "" {
		stmt = stmt.Where(goqu.C("user_id").Eq(opts.UserID))
	}
	if opts.Status != nil {
		stmt = stmt.Where(goqu.C("status").Eq(string(*opts.Status)))
	}

	query, args, err := stmt.Prepared(true).ToSQL()
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "build list posts query")
	}

	var posts []*crosspost.Post
	if err := sqlx.SelectContext(ctx, ds.db, &posts, query, args...); err != nil {
		return nil, ctxerr.Wrap(ctx, err, "select posts")
	}
	if len(posts) == 0 {
		return posts, nil
	}

	if err := ds.hydrateAttachments(ctx, posts); err != nil {
		return nil, err
	}
	if err := ds.hydrateChannels(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (ds *Datastore) hydrateAttachments(ctx context.Context, posts []*crosspost.Post) error {
	byID := make(map[string]*crosspost.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	query, args, err := sqlx.In(`
SELECT id, post_id, content_type, storage_key, size_bytes, created_at
FROM attachments
WHERE post_id IN (?)
ORDER BY created_at ASC
`, ids)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "build attachments query")
	}

	var atts []*crosspost.Attachment
	if err := sqlx.SelectContext(ctx, ds.db, &atts, query, args...); err != nil {
		return ctxerr.Wrap(ctx, err, "select attachments")
	}
	for _, att := range atts {
		if p := byID[att.PostID]; p != nil {
			p.Attachments = append(p.Attachments, att)
		}
	}
	return nil
}

func (ds *Datastore) hydrateChannels(ctx context.Context, posts []*crosspost.Post) error {
	idSet := make(map[string]struct{}, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		if _, ok := idSet[p.ChannelID]; !ok {
			idSet[p.ChannelID] = struct{}{}
			ids = append(ids, p.ChannelID)
		}
	}

	query, args, err := sqlx.In(channelSelect+` WHERE id IN (?)`, ids)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "build channels query")
	}

	var channels []*crosspost.Channel
	if err := sqlx.SelectContext(ctx, ds.db, &channels, query, args...); err != nil {
		return ctxerr.Wrap(ctx, err, "select channels")
	}
	byID := make(map[string]*crosspost.Channel, len(channels))
	for _, ch := range channels {
		byID[ch.ID] = ch
	}
	for _, p := range posts {
		p.Channel = byID[p.ChannelID]
	}
	return nil
}

// UpdatePost writes the post's mutable fields. Last write wins.
func (ds *Datastore) UpdatePost(ctx context.Context, post *crosspost.Post) error {
	query := `
UPDATE posts
SET
    status = ?,
    published_at = ?,
    error = ?,
    retry_count = ?
WHERE id = ?
`
	res, err := ds.db.ExecContext(ctx, query,
		post.Status, post.PublishedAt, post.Error, post.RetryCount, post.ID)
	if err != nil {
		return ctxerr.Wrap(ctx, err, "update post")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		// distinguish "no change" from "no row": a no-op update still matches
		var exists bool
		if err := sqlx.GetContext(ctx, ds.db, &exists, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = ?)`, post.ID); err != nil {
			return ctxerr.Wrap(ctx, err, "check post exists")
		}
		if !exists {
			return ctxerr.Wrap(ctx, notFound("Post").WithID(post.ID))
		}
	}
	return nil
}

// DeletePost deletes the post and its attachment rows.
func (ds *Datastore) DeletePost(ctx context.Context, id string) error {
	return ds.withRetryTxx(ctx, func(tx sqlx.ExtContext) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attachments WHERE post_id = ?`, id); err != nil {
			return ctxerr.Wrap(ctx, err, "delete post attachments")
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
		if err != nil {
			return ctxerr.Wrap(ctx, err, "delete post")
		}
		if rows, _ := res.RowsAffected(); rows == 0 {
			return ctxerr.Wrap(ctx, notFound("Post").WithID(id))
		}
		return nil
	})
}

// ListUnqueuedScheduledPosts returns posts stuck in scheduled status with no
// live queued job, i.e. the victims of a "post committed, enqueue failed"
// partial failure. Used by the reconciliation sweep.
func (ds *Datastore) ListUnqueuedScheduledPosts(ctx context.Context, limit int) ([]*crosspost.Post, error) {
	query := `
SELECT
    p.id, p.content, p.status, p.scheduled_for, p.published_at, p.error,
    p.retry_count, p.channel_id, p.user_id, p.created_at, p.updated_at
FROM posts p
LEFT JOIN jobs j ON j.id = p.id AND j.state = ?
WHERE p.status = ? AND j.id IS NULL
ORDER BY p.scheduled_for ASC
LIMIT ?
`
	var posts []*crosspost.Post
	err := sqlx.SelectContext(ctx, ds.db, &posts, query,
		crosspost.JobStateQueued, crosspost.PostStatusScheduled, limit)
	if err != nil {
		return nil, ctxerr.Wrap(ctx, err, "select unqueued scheduled posts")
	}
	return posts, nil
}
