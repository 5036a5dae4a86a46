package main

import (
	"net/http"

	"github.com/justinas/alice"
	"github.com/rewindfm/rewind/session"
)

func (app *application) routes() http.Handler {
	mux := http.NewServeMux()

	// Account routes
	mux.HandleFunc("/api/auth/register", app.handleRegister)
	mux.HandleFunc("/api/auth/login", app.handleLogin)
	mux.HandleFunc("/api/auth/logout", session.WithAuth(app.handleLogout, app.sessions))
	mux.HandleFunc("/api/auth/me", session.WithAuth(app.handleMe, app.sessions))

	// Spotify connect routes. The callback is hit by Spotify's redirect, so
	// it carries no session; the state parameter identifies the user.
	mux.HandleFunc("/api/auth/spotify/auth-url", session.WithAuth(app.handleSpotifyAuthURL, app.sessions))
	mux.HandleFunc("/api/auth/spotify/callback", app.handleSpotifyCallback)
	mux.HandleFunc("/api/auth/spotify/exchange-code", session.WithAuth(app.handleSpotifyExchangeCode, app.sessions))
	mux.HandleFunc("/api/auth/spotify/status", session.WithAuth(app.handleSpotifyStatus, app.sessions))
	mux.HandleFunc("/api/auth/spotify/disconnect", session.WithAuth(app.handleSpotifyDisconnect, app.sessions))

	// Streaming history routes
	mux.HandleFunc("/api/upload", session.WithAuth(app.handleUpload, app.sessions))
	mux.HandleFunc("/api/upload/list", session.WithAuth(app.handleListUploads, app.sessions))
	mux.HandleFunc("/api/upload/stats", session.WithAuth(app.handleStats, app.sessions))
	mux.HandleFunc("/api/upload/top-tracks", session.WithAuth(app.handleTopTracks, app.sessions))
	mux.HandleFunc("/api/upload/monthly-stats", session.WithAuth(app.handleMonthlyStats, app.sessions))
	mux.HandleFunc("/api/upload/generate-playlist", session.WithAuth(app.handleGeneratePlaylist, app.sessions))
	mux.HandleFunc("/api/upload/delete-all", session.WithAuth(app.handleDeleteAll, app.sessions))
	mux.HandleFunc("/api/upload/create-playlist", session.WithAuth(app.handleCreatePlaylist, app.sessions))

	standard := alice.New(app.logRequest)
	return standard.Then(mux)
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.logger.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
