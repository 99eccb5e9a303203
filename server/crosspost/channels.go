package crosspost

import "time"

// Channel is a connected social-media account a post can be published to. The
// scheduling pipeline consumes channels read-only: an opaque credential bundle
// plus a platform code used for publisher dispatch. Connecting channels
// (OAuth) is owned by the web application layer.
type Channel struct {
	ID             string     `json:"id" db:"id"`
	Platform       string     `json:"platform" db:"platform"`
	AccessToken    string     `json:"-" db:"access_token"`
	RefreshToken   *string    `json:"-" db:"refresh_token"`
	TokenExpires   *time.Time `json:"token_expires" db:"token_expires"`
	PlatformUserID string     `json:"platform_user_id" db:"platform_user_id"`
	Username       string     `json:"username" db:"username"`
	UserID         string     `json:"user_id" db:"user_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
