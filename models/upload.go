package models

import "time"

// UploadStatus is the processing state of one archive submission. The status
// moves out of StatusUploaded exactly once and is never revisited after that.
type UploadStatus string

const (
	StatusUploaded  UploadStatus = "uploaded"
	StatusCompleted UploadStatus = "completed"
	StatusFailed    UploadStatus = "failed"
)

// Upload records one streaming-history archive submission and its outcome.
type Upload struct {
	ID               int64        `json:"id"`
	UserID           int64        `json:"-"`
	FilePath         string       `json:"file_path"`
	FileSize         int64        `json:"file_size"`
	UploadDate       time.Time    `json:"upload_date"`
	Processed        bool         `json:"processed"`
	ProcessingStatus UploadStatus `json:"processing_status"`
}

// PlayEvent is one normalized listening record from a streaming-history
// export. Track fields are empty strings for podcast episodes, which carry
// the episode fields instead. Rows are immutable once persisted apart from
// bulk deletion.
type PlayEvent struct {
	ID       int64
	UserID   int64
	UploadID int64

	TS       time.Time
	Username string
	Platform string
	MsPlayed int64

	ConnCountry string
	IPAddr      *string
	UserAgent   string

	TrackName       string
	ArtistName      string
	AlbumName       string
	SpotifyTrackURI string

	EpisodeName       string
	EpisodeShowName   string
	SpotifyEpisodeURI string

	ReasonStart      string
	ReasonEnd        string
	Shuffle          bool
	Skipped          bool
	Offline          bool
	OfflineTimestamp *int64
	IncognitoMode    bool

	CreatedAt time.Time
}
