package db

import (
	"math"
	"time"

	"github.com/rewindfm/rewind/models"
)

// monthNames is the fixed table used for month_label values.
var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

func roundHours(ms int64) float64 {
	return math.Round(float64(ms)/3600000*100) / 100
}

// TopTracks runs the ranked track aggregation for one user. start and end are
// optional inclusive calendar dates; end is widened to cover its entire day.
// Records without a track name (podcast episodes) are excluded. Groups are
// ordered by play count descending; ties break on track name ascending so the
// ranking is deterministic. Ranks are dense, assigned by output order.
func (db *DB) TopTracks(userID int64, start, end *time.Time, limit int) ([]*models.TrackStat, error) {
	query := `
	SELECT track_name, artist_name, album_name, COUNT(*) AS play_count, SUM(ms_played) AS total_ms
	FROM play_events
	WHERE user_id = ? AND track_name <> ''`
	args := []any{userID}

	if start != nil {
		query += ` AND ts >= ?`
		args = append(args, start.UTC())
	}
	if end != nil {
		query += ` AND ts < ?`
		args = append(args, end.UTC().AddDate(0, 0, 1))
	}

	query += `
	GROUP BY track_name, artist_name, album_name
	ORDER BY play_count DESC, track_name ASC
	LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []*models.TrackStat{}

	for rows.Next() {
		var totalMs int64
		stat := &models.TrackStat{}
		err := rows.Scan(&stat.TrackName, &stat.ArtistName, &stat.AlbumName, &stat.PlayCount, &totalMs)
		if err != nil {
			return nil, err
		}
		stat.Rank = len(stats) + 1
		stat.TotalHoursPlayed = roundHours(totalMs)
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// MonthlyStats buckets all of the user's play events by calendar year-month
// of the event instant and sums listening time per bucket. Timestamps are
// stored in UTC, so taking the leading "YYYY-MM" of the stored value is the
// plain calendar month of the instant. Only months present in the data are
// returned, ascending.
func (db *DB) MonthlyStats(userID int64) ([]*models.MonthStat, error) {
	rows, err := db.Query(`
	SELECT substr(ts, 1, 7) AS month, SUM(ms_played) AS total_ms, COUNT(*) AS play_count
	FROM play_events
	WHERE user_id = ?
	GROUP BY month
	ORDER BY month ASC`, userID)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := []*models.MonthStat{}

	for rows.Next() {
		var totalMs int64
		stat := &models.MonthStat{}
		err := rows.Scan(&stat.Month, &totalMs, &stat.PlayCount)
		if err != nil {
			return nil, err
		}
		stat.MonthLabel = monthLabel(stat.Month)
		stat.TotalHours = roundHours(totalMs)
		stats = append(stats, stat)
	}

	return stats, rows.Err()
}

// monthLabel turns "2023-07" into "July 2023". Malformed keys come back
// unchanged rather than failing the whole aggregation.
func monthLabel(month string) string {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return month
	}
	return monthNames[t.Month()-1] + " " + t.Format("2006")
}

// TopTrackURIs returns the user's most-played distinct Spotify track URIs,
// most played first, for playlist creation. Grouping directly on the URI
// keeps the result free of duplicates.
func (db *DB) TopTrackURIs(userID int64, limit int) ([]string, error) {
	rows, err := db.Query(`
	SELECT spotify_track_uri, COUNT(*) AS play_count
	FROM play_events
	WHERE user_id = ? AND spotify_track_uri <> '' AND track_name <> ''
	GROUP BY spotify_track_uri
	ORDER BY play_count DESC, spotify_track_uri ASC
	LIMIT ?`, userID, limit)

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uris := []string{}

	for rows.Next() {
		var uri string
		var count int
		if err := rows.Scan(&uri, &count); err != nil {
			return nil, err
		}
		uris = append(uris, uri)
	}

	return uris, rows.Err()
}
