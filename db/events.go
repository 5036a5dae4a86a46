package db

import (
	"fmt"
	"strings"

	"github.com/rewindfm/rewind/models"
)

// insertBatchSize bounds how many rows go into a single INSERT statement so
// peak memory and statement size stay flat for large exports.
const insertBatchSize = 1000

const eventColumnCount = 23

var eventInsertPrefix = `
	INSERT INTO play_events (
		user_id, upload_id, ts, username, platform, ms_played,
		conn_country, ip_addr, user_agent,
		track_name, artist_name, album_name, spotify_track_uri,
		episode_name, episode_show_name, spotify_episode_uri,
		reason_start, reason_end, shuffle, skipped, offline,
		offline_timestamp, incognito_mode
	) VALUES `

// InsertPlayEvents writes normalized records in chunks of insertBatchSize
// inside one transaction, so the whole slice becomes visible all at once or
// not at all.
func (db *DB) InsertPlayEvents(events []*models.PlayEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback()

	rowPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", eventColumnCount), ", ") + ")"

	for start := 0; start < len(events); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*eventColumnCount)
		for i, e := range chunk {
			placeholders[i] = rowPlaceholder
			args = append(args,
				e.UserID, e.UploadID, e.TS.UTC(), e.Username, e.Platform, e.MsPlayed,
				e.ConnCountry, e.IPAddr, e.UserAgent,
				e.TrackName, e.ArtistName, e.AlbumName, e.SpotifyTrackURI,
				e.EpisodeName, e.EpisodeShowName, e.SpotifyEpisodeURI,
				e.ReasonStart, e.ReasonEnd, e.Shuffle, e.Skipped, e.Offline,
				e.OfflineTimestamp, e.IncognitoMode)
		}

		query := eventInsertPrefix + strings.Join(placeholders, ", ")
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("insert play events: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteUserData removes all uploads and play events owned by one user and
// reports how many rows of each went away. Other users' rows are untouched.
func (db *DB) DeleteUserData(userID int64) (uploads int64, events int64, err error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("begin delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM play_events WHERE user_id = ?`, userID)
	if err != nil {
		return 0, 0, err
	}
	events, err = res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	res, err = tx.Exec(`DELETE FROM uploads WHERE user_id = ?`, userID)
	if err != nil {
		return 0, 0, err
	}
	uploads, err = res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	return uploads, events, tx.Commit()
}

// CountPlayEvents returns the number of play events stored for an upload.
func (db *DB) CountPlayEvents(uploadID int64) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM play_events WHERE upload_id = ?`, uploadID).Scan(&count)
	return count, err
}

// StreamingTotals computes the user's overall listening summary.
func (db *DB) StreamingTotals(userID int64) (*models.StreamingStats, error) {
	stats := &models.StreamingStats{}

	err := db.QueryRow(`
	SELECT COUNT(*), COALESCE(SUM(ms_played), 0)
	FROM play_events
	WHERE user_id = ?`, userID).Scan(&stats.TotalRecords, &stats.TotalMilliseconds)

	if err != nil {
		return nil, err
	}

	stats.TotalHoursPlayed = roundHours(stats.TotalMilliseconds)
	return stats, nil
}
