package models

// TrackStat is one row of the ranked track aggregation.
type TrackStat struct {
	Rank             int     `json:"rank"`
	TrackName        string  `json:"track_name"`
	ArtistName       string  `json:"artist_name"`
	AlbumName        string  `json:"album_name"`
	PlayCount        int     `json:"play_count"`
	TotalHoursPlayed float64 `json:"total_hours_played"`
}

// MonthStat is one calendar-month bucket of listening time.
type MonthStat struct {
	Month      string  `json:"month"`
	MonthLabel string  `json:"month_label"`
	TotalHours float64 `json:"total_hours"`
	PlayCount  int     `json:"play_count"`
}

// StreamingStats is the overall listening summary for a user.
type StreamingStats struct {
	TotalRecords      int     `json:"total_records"`
	TotalHoursPlayed  float64 `json:"total_hours_played"`
	TotalMilliseconds int64   `json:"total_milliseconds"`
}
