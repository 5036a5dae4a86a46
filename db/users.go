package db

import (
	"database/sql"
	"time"

	"github.com/rewindfm/rewind/models"
)

const userColumns = `id, username, email, password_hash, spotify_user_id,
	spotify_access_token, spotify_refresh_token, spotify_token_expires_at,
	created_at, updated_at`

// CreateUser adds a new user to the database
func (db *DB) CreateUser(user *models.User) (int64, error) {
	now := time.Now().UTC()

	result, err := db.Exec(`
	INSERT INTO users (username, email, password_hash, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, now, now)

	if err != nil {
		return 0, err
	}

	return result.LastInsertId()
}

func (db *DB) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}

	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.SpotifyUserID, &user.SpotifyAccessToken, &user.SpotifyRefreshToken,
		&user.SpotifyTokenExpiresAt, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return user, nil
}

// GetUserByID retrieves a user by primary key. Returns nil when absent.
func (db *DB) GetUserByID(id int64) (*models.User, error) {
	return db.scanUser(db.QueryRow(`
	SELECT `+userColumns+`
	FROM users WHERE id = ?`, id))
}

// GetUserByUsername retrieves a user by username. Returns nil when absent.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	return db.scanUser(db.QueryRow(`
	SELECT `+userColumns+`
	FROM users WHERE username = ?`, username))
}

// UpdateSpotifyTokens stores the credentials obtained from the OAuth code
// exchange on the user row.
func (db *DB) UpdateSpotifyTokens(userID int64, spotifyUserID, accessToken, refreshToken string, expiresAt time.Time) error {
	now := time.Now().UTC()

	_, err := db.Exec(`
	UPDATE users
	SET spotify_user_id = ?, spotify_access_token = ?, spotify_refresh_token = ?,
	    spotify_token_expires_at = ?, updated_at = ?
	WHERE id = ?`,
		spotifyUserID, accessToken, refreshToken, expiresAt.UTC(), now, userID)

	return err
}

// ClearSpotifyTokens disconnects the user's Spotify account.
func (db *DB) ClearSpotifyTokens(userID int64) error {
	now := time.Now().UTC()

	_, err := db.Exec(`
	UPDATE users
	SET spotify_user_id = NULL, spotify_access_token = NULL,
	    spotify_refresh_token = NULL, spotify_token_expires_at = NULL,
	    updated_at = ?
	WHERE id = ?`,
		now, userID)

	return err
}
