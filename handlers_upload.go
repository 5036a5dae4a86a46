package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rewindfm/rewind/models"
	"github.com/rewindfm/rewind/session"
)

const (
	defaultTrackLimit = 50
	minTrackLimit     = 1
	maxTrackLimit     = 200
)

// parseTrackLimit reads the limit query parameter. Absent means the default;
// a non-integer is rejected; anything out of range is clamped into [1, 200].
func parseTrackLimit(query url.Values) (int, error) {
	raw := query.Get("limit")
	if raw == "" {
		return defaultTrackLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}

	if limit < minTrackLimit {
		limit = minTrackLimit
	}
	if limit > maxTrackLimit {
		limit = maxTrackLimit
	}
	return limit, nil
}

// parseDateRange reads the optional start_date/end_date parameters as
// YYYY-MM-DD calendar dates. Malformed dates are rejected, not defaulted.
func parseDateRange(query url.Values) (start, end *time.Time, err error) {
	if raw := query.Get("start_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, fmt.Errorf("start_date must be YYYY-MM-DD")
		}
		start = &t
	}

	if raw := query.Get("end_date"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, nil, fmt.Errorf("end_date must be YYYY-MM-DD")
		}
		end = &t
	}

	return start, end, nil
}

func (app *application) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".zip") {
		jsonError(w, "File must be a ZIP archive", http.StatusBadRequest)
		return
	}

	userDir := filepath.Join(app.cfg.UploadDir, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		app.logger.Printf("Error creating upload dir: %v", err)
		jsonError(w, "Error saving file", http.StatusInternalServerError)
		return
	}

	name := fmt.Sprintf("spotify_data_%s_%s.zip",
		time.Now().Format("20060102_150405"), uuid.NewString()[:8])
	archivePath := filepath.Join(userDir, name)

	dst, err := os.Create(archivePath)
	if err != nil {
		app.logger.Printf("Error creating archive file: %v", err)
		jsonError(w, "Error saving file", http.StatusInternalServerError)
		return
	}

	size, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		jsonError(w, "Error saving file", http.StatusInternalServerError)
		return
	}

	uploadID, err := app.db.CreateUpload(&models.Upload{
		UserID:   userID,
		FilePath: archivePath,
		FileSize: size,
	})
	if err != nil {
		app.logger.Printf("Error creating upload record: %v", err)
		jsonError(w, "Error recording upload", http.StatusInternalServerError)
		return
	}

	result := app.ingest.Run(archivePath, userID, uploadID)

	status := models.StatusCompleted
	if result.Failed() {
		status = models.StatusFailed
	}
	if err := app.db.FinishUpload(uploadID, status); err != nil {
		app.logger.Printf("Error updating upload %d status: %v", uploadID, err)
	}

	if result.Failed() {
		app.logger.Printf("Upload %d failed at %s stage: %v", uploadID, result.Stage, result.Err)
		jsonError(w, fmt.Sprintf("Error processing file: %v", result.Err), http.StatusInternalServerError)
		return
	}

	upload, err := app.db.GetUpload(uploadID)
	if err != nil || upload == nil {
		jsonError(w, "Error loading upload", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"message": "File uploaded and processed successfully",
		"upload":  upload,
	})
}

func (app *application) handleListUploads(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	uploads, err := app.db.ListUploads(userID)
	if err != nil {
		app.logger.Printf("Error listing uploads: %v", err)
		jsonError(w, "Error listing uploads", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, uploads)
}

func (app *application) handleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	stats, err := app.db.StreamingTotals(userID)
	if err != nil {
		app.logger.Printf("Error computing stats: %v", err)
		jsonError(w, "Error computing stats", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, stats)
}

func (app *application) handleTopTracks(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	limit, err := parseTrackLimit(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, end, err := parseDateRange(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tracks, err := app.db.TopTracks(userID, start, end, limit)
	if err != nil {
		app.logger.Printf("Error aggregating top tracks: %v", err)
		jsonError(w, "Error aggregating top tracks", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, tracks)
}

func (app *application) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	stats, err := app.db.MonthlyStats(userID)
	if err != nil {
		app.logger.Printf("Error aggregating monthly stats: %v", err)
		jsonError(w, "Error aggregating monthly stats", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, stats)
}

func (app *application) handleGeneratePlaylist(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	limit, err := parseTrackLimit(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, end, err := parseDateRange(r.URL.Query())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tracks, err := app.db.TopTracks(userID, start, end, limit)
	if err != nil {
		app.logger.Printf("Error generating playlist: %v", err)
		jsonError(w, "Error generating playlist", http.StatusInternalServerError)
		return
	}

	uris, err := app.db.TopTrackURIs(userID, limit)
	if err != nil {
		app.logger.Printf("Error collecting track URIs: %v", err)
		jsonError(w, "Error generating playlist", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"tracks":      tracks,
		"track_uris":  uris,
		"track_count": len(uris),
	})
}

func (app *application) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	uploads, events, err := app.db.DeleteUserData(userID)
	if err != nil {
		app.logger.Printf("Error deleting user data: %v", err)
		jsonError(w, "Error deleting data", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message":         "All streaming data deleted",
		"deleted_uploads": uploads,
		"deleted_events":  events,
	})
}

func (app *application) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	user, ok := app.currentUser(w, r)
	if !ok {
		return
	}

	if !user.SpotifyConnected() || user.SpotifyUserID == nil {
		jsonError(w, "Spotify account not connected", http.StatusBadRequest)
		return
	}
	if user.SpotifyTokenExpired() {
		jsonError(w, "Spotify token expired, reconnect your account", http.StatusUnauthorized)
		return
	}

	uris, err := app.db.TopTrackURIs(user.ID, defaultTrackLimit)
	if err != nil {
		app.logger.Printf("Error collecting track URIs: %v", err)
		jsonError(w, "Error creating playlist", http.StatusInternalServerError)
		return
	}
	if len(uris) == 0 {
		jsonError(w, "No streaming history to build a playlist from", http.StatusBadRequest)
		return
	}

	token := *user.SpotifyAccessToken
	name := "Rewind Top Tracks " + time.Now().Format("Jan 2006")
	description := "Your most played tracks, generated from your streaming history"

	playlist, err := app.spotify.CreatePlaylist(r.Context(), token, *user.SpotifyUserID, name, description)
	if err != nil {
		app.logger.Printf("Error creating playlist: %v", err)
		jsonError(w, "Error creating playlist on Spotify", http.StatusBadGateway)
		return
	}

	added, err := app.spotify.AddTracks(r.Context(), token, playlist.ID, uris)
	if err != nil {
		app.logger.Printf("Error adding tracks to playlist %s: %v", playlist.ID, err)
		jsonError(w, "Playlist created but no tracks could be added", http.StatusBadGateway)
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"playlist_id":   playlist.ID,
		"playlist_name": playlist.Name,
		"playlist_url":  playlist.ExternalURLs.Spotify,
		"tracks_added":  added,
	})
}
