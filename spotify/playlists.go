package spotify

import (
	"context"
	"fmt"
	"net/http"
)

// addTracksBatchSize is the Spotify API ceiling for one add-items call.
const addTracksBatchSize = 100

// Playlist is the subset of a created playlist the caller needs back.
type Playlist struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// CreatePlaylist creates a private playlist owned by spotifyUserID.
func (s *Service) CreatePlaylist(ctx context.Context, accessToken, spotifyUserID, name, description string) (*Playlist, error) {
	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      false,
	}

	playlist := &Playlist{}
	url := fmt.Sprintf("%s/users/%s/playlists", s.apiBase, spotifyUserID)
	if err := s.doJSON(ctx, http.MethodPost, url, accessToken, body, playlist); err != nil {
		return nil, fmt.Errorf("create playlist: %w", err)
	}

	return playlist, nil
}

// AddTracks adds the track URIs to a playlist in batches of at most 100 per
// call. A failed batch is logged and skipped rather than aborting the rest;
// the return value is how many tracks actually made it in. An error comes
// back only when not a single batch succeeded.
func (s *Service) AddTracks(ctx context.Context, accessToken, playlistID string, uris []string) (int, error) {
	if len(uris) == 0 {
		return 0, nil
	}

	added := 0
	var lastErr error

	url := fmt.Sprintf("%s/playlists/%s/tracks", s.apiBase, playlistID)
	for start := 0; start < len(uris); start += addTracksBatchSize {
		end := start + addTracksBatchSize
		if end > len(uris) {
			end = len(uris)
		}
		batch := uris[start:end]

		body := map[string]any{"uris": batch}
		if err := s.doJSON(ctx, http.MethodPost, url, accessToken, body, nil); err != nil {
			s.logger.Printf("add tracks batch %d-%d failed: %v", start, end, err)
			lastErr = err
			continue
		}
		added += len(batch)
	}

	if added == 0 && lastErr != nil {
		return 0, fmt.Errorf("add tracks: %w", lastErr)
	}

	return added, nil
}
