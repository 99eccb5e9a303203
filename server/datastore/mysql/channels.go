package mysql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/crosspostd/crosspost/server/contexts/ctxerr"
	"github.com/crosspostd/crosspost/server/crosspost"
	"github.com/jmoiron/sqlx"
)

const channelSelect = `
SELECT
    id, platform, access_token, refresh_token, token_expires,
    platform_user_id, username, user_id, created_at, updated_at
FROM channels`

// Channel retrieves a connected channel by id. The scheduling pipeline only
// ever reads channels; their lifecycle is owned by the account-connection
// flows outside this server.
func (ds *Datastore) Channel(ctx context.Context, id string) (*crosspost.Channel, error) {
	var channel crosspost.Channel
	if err := sqlx.GetContext(ctx, ds.db, &channel, channelSelect+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ctxerr.Wrap(ctx, notFound("Channel").WithID(id))
		}
		return nil, ctxerr.Wrap(ctx, err, "select channel")
	}
	return &channel, nil
}
