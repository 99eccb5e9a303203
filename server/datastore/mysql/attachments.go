package mysql

import (
	"context"

	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func insertAttachment(ctx context.Context, tx sqlx.ExtContext, att *crosspost.Attachment) error {
	query := `
INSERT INTO attachments (
    id,
    post_id,
    content_type,
    storage_key,
    size_bytes
)
VALUES (?, ?, ?, ?, ?)
`
	if _, err := tx.ExecContext(ctx, query,
		att.ID, att.PostID, att.ContentType, att.StorageKey, att.SizeBytes,
	); err != nil {
		return ctxerr.Wrap(ctx, err, "insert attachment")
	}
	return nil
}

func (ds *Datastore) NewAttachment(ctx context.Context, att *crosspost.Attachment) (*crosspost.Attachment, error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if err := insertAttachment(ctx, ds.db, att); err != nil {
		return nil, err
	}
	return att, nil
}

func (ds *Datastore) ListAttachments(ctx context.Context, postID string) ([]*crosspost.Attachment, error) {
	query := `
SELECT id, post_id, content_type, storage_key, size_bytes, created_at
FROM attachments
WHERE post_id = ?
ORDER BY created_at ASC
`
	var atts []*crosspost.Attachment
	if err := sqlx.SelectContext(ctx, ds.db, &atts, query, postID); err != nil {
		return nil, ctxerr.Wrap(ctx, err, "select attachments")
	}
	return atts, nil
}

func (ds *Datastore) DeletePostAttachments(ctx context.Context, postID string) error {
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM attachments WHERE post_id = ?`, postID); err != nil {
		return ctxerr.Wrap(ctx, err, "delete post attachments")
	}
	return nil
}
