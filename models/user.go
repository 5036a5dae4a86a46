package models

import "time"

// User represents a registered account. The Spotify fields are populated by
// the OAuth connect flow and cleared again on disconnect, so they are
// pointers.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`

	SpotifyUserID         *string    `json:"spotify_user_id,omitempty"`
	SpotifyAccessToken    *string    `json:"-"`
	SpotifyRefreshToken   *string    `json:"-"`
	SpotifyTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SpotifyConnected reports whether the user has a linked Spotify account
// with a stored access token.
func (u *User) SpotifyConnected() bool {
	return u.SpotifyAccessToken != nil && *u.SpotifyAccessToken != "" && u.SpotifyTokenExpiresAt != nil
}

// SpotifyTokenExpired reports whether the linked token has passed its expiry.
// Only meaningful when SpotifyConnected is true.
func (u *User) SpotifyTokenExpired() bool {
	return u.SpotifyTokenExpiresAt == nil || !u.SpotifyTokenExpiresAt.After(time.Now())
}
