package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rewindfm/rewind/models"
)

// rawEvent mirrors one object of a Streaming_History JSON array. Every field
// is optional in the export, so everything is a pointer and defaults are
// applied during normalization.
type rawEvent struct {
	TS                *string `json:"ts"`
	Username          *string `json:"username"`
	Platform          *string `json:"platform"`
	MsPlayed          *int64  `json:"ms_played"`
	ConnCountry       *string `json:"conn_country"`
	IPAddr            *string `json:"ip_addr_decrypted"`
	UserAgent         *string `json:"user_agent_decrypted"`
	TrackName         *string `json:"master_metadata_track_name"`
	ArtistName        *string `json:"master_metadata_album_artist_name"`
	AlbumName         *string `json:"master_metadata_album_album_name"`
	SpotifyTrackURI   *string `json:"spotify_track_uri"`
	EpisodeName       *string `json:"episode_name"`
	EpisodeShowName   *string `json:"episode_show_name"`
	SpotifyEpisodeURI *string `json:"spotify_episode_uri"`
	ReasonStart       *string `json:"reason_start"`
	ReasonEnd         *string `json:"reason_end"`
	Shuffle           *bool   `json:"shuffle"`
	Skipped           *bool   `json:"skipped"`
	Offline           *bool   `json:"offline"`
	OfflineTimestamp  *int64  `json:"offline_timestamp"`
	IncognitoMode     *bool   `json:"incognito_mode"`
}

// TimestampError reports an absent or unparseable event timestamp. It fails
// the whole file: a record without an instant can't be bucketed or filtered.
type TimestampError struct {
	Raw string
}

func (e *TimestampError) Error() string {
	if e.Raw == "" {
		return "event timestamp is missing"
	}
	return fmt.Sprintf("unparseable event timestamp %q", e.Raw)
}

// timestampLayouts covers the ISO-8601 shapes seen in exports, with and
// without fractional seconds or an offset.
var timestampLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
}

// parseTimestamp parses an ISO-8601 instant. A literal trailing "Z" is
// treated as the "+00:00" offset first. The result is returned in UTC.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, &TimestampError{Raw: raw}
	}

	s := raw
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, &TimestampError{Raw: raw}
}

// Normalize maps one streaming-history file's JSON array to play events owned
// by the given user and upload. Missing optional fields become their defaults
// (empty string, false, 0, nil); only a bad timestamp is an error, and it
// aborts the whole file.
func Normalize(data []byte, userID, uploadID int64) ([]*models.PlayEvent, error) {
	var raw []rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode streaming history: %w", err)
	}

	events := make([]*models.PlayEvent, 0, len(raw))
	for _, r := range raw {
		ts, err := parseTimestamp(strVal(r.TS))
		if err != nil {
			return nil, err
		}

		events = append(events, &models.PlayEvent{
			UserID:            userID,
			UploadID:          uploadID,
			TS:                ts,
			Username:          strVal(r.Username),
			Platform:          strVal(r.Platform),
			MsPlayed:          intVal(r.MsPlayed),
			ConnCountry:       strVal(r.ConnCountry),
			IPAddr:            r.IPAddr,
			UserAgent:         strVal(r.UserAgent),
			TrackName:         strVal(r.TrackName),
			ArtistName:        strVal(r.ArtistName),
			AlbumName:         strVal(r.AlbumName),
			SpotifyTrackURI:   strVal(r.SpotifyTrackURI),
			EpisodeName:       strVal(r.EpisodeName),
			EpisodeShowName:   strVal(r.EpisodeShowName),
			SpotifyEpisodeURI: strVal(r.SpotifyEpisodeURI),
			ReasonStart:       strVal(r.ReasonStart),
			ReasonEnd:         strVal(r.ReasonEnd),
			Shuffle:           boolVal(r.Shuffle),
			Skipped:           boolVal(r.Skipped),
			Offline:           boolVal(r.Offline),
			OfflineTimestamp:  r.OfflineTimestamp,
			IncognitoMode:     boolVal(r.IncognitoMode),
		})
	}

	return events, nil
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intVal(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func boolVal(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
