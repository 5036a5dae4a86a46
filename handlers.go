package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/rewindfm/rewind/models"
	"github.com/rewindfm/rewind/session"
)

// jsonResponse returns a JSON response
func jsonResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

func jsonError(w http.ResponseWriter, message string, statusCode int) {
	jsonResponse(w, statusCode, map[string]string{"error": message})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (app *application) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if body.Username == "" || body.Email == "" || body.Password == "" {
		jsonError(w, "username, email and password are required", http.StatusBadRequest)
		return
	}
	if body.Password != body.PasswordConfirm {
		jsonError(w, "Passwords do not match", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, "Error creating account", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Username:     body.Username,
		Email:        body.Email,
		PasswordHash: string(hash),
	}

	userID, err := app.db.CreateUser(user)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			jsonError(w, "Username or email already taken", http.StatusBadRequest)
			return
		}
		app.logger.Printf("Error creating user: %v", err)
		jsonError(w, "Error creating account", http.StatusInternalServerError)
		return
	}

	created, err := app.db.GetUserByID(userID)
	if err != nil || created == nil {
		jsonError(w, "Error creating account", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusCreated, created)
}

func (app *application) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := app.db.GetUserByUsername(body.Username)
	if err != nil {
		app.logger.Printf("Error loading user %q: %v", body.Username, err)
		jsonError(w, "Error logging in", http.StatusInternalServerError)
		return
	}

	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
		jsonError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	sess := app.sessions.Create(user.ID)
	app.sessions.SetCookie(w, sess)

	jsonResponse(w, http.StatusOK, user)
}

func (app *application) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	app.sessions.Logout(w, r)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

func (app *application) handleMe(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	user, ok := app.currentUser(w, r)
	if !ok {
		return
	}

	jsonResponse(w, http.StatusOK, user)
}

// currentUser loads the authenticated user's row. Writes the error response
// itself and returns ok=false when that fails.
func (app *application) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID, ok := session.GetUserID(r.Context())
	if !ok {
		jsonError(w, "Authentication required", http.StatusUnauthorized)
		return nil, false
	}

	user, err := app.db.GetUserByID(userID)
	if err != nil || user == nil {
		jsonError(w, "Error loading user", http.StatusInternalServerError)
		return nil, false
	}

	return user, true
}

// oauthState travels through the Spotify authorization flow so the callback,
// which arrives without a session, can find its user again.
type oauthState struct {
	UserID     int64  `json:"user_id"`
	RedirectTo string `json:"redirect_to"`
}

func (app *application) handleSpotifyAuthURL(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	redirectTo := r.URL.Query().Get("redirect_to")
	if redirectTo == "" {
		redirectTo = "dashboard"
	}

	state, err := json.Marshal(oauthState{UserID: userID, RedirectTo: redirectTo})
	if err != nil {
		jsonError(w, "Error building authorization URL", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{
		"auth_url": app.spotify.AuthCodeURL(string(state)),
	})
}

// frontendRedirect sends the browser back to the frontend with query flags,
// mirroring the flow the SPA expects after the OAuth round trip.
func (app *application) frontendRedirect(w http.ResponseWriter, r *http.Request, page string, params url.Values) {
	target := strings.TrimSuffix(app.cfg.FrontendURL, "/") + "/" + page
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (app *application) handleSpotifyCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		app.frontendRedirect(w, r, "top-tracks", url.Values{"error": {errParam}})
		return
	}

	code := query.Get("code")
	if code == "" {
		app.frontendRedirect(w, r, "top-tracks", url.Values{"error": {"no_code"}})
		return
	}

	rawState := query.Get("state")
	if rawState == "" {
		app.frontendRedirect(w, r, "top-tracks", url.Values{"error": {"no_state"}})
		return
	}

	var state oauthState
	if err := json.Unmarshal([]byte(rawState), &state); err != nil {
		app.frontendRedirect(w, r, "top-tracks", url.Values{"error": {"invalid_state"}})
		return
	}
	if state.RedirectTo == "" {
		state.RedirectTo = "dashboard"
	}

	if err := app.connectSpotify(r, state.UserID, code); err != nil {
		app.logger.Printf("Spotify connect failed for user %d: %v", state.UserID, err)
		app.frontendRedirect(w, r, state.RedirectTo, url.Values{"error": {err.flag}})
		return
	}

	app.frontendRedirect(w, r, state.RedirectTo, url.Values{"spotify_connected": {"true"}})
}

func (app *application) handleSpotifyExchangeCode(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		jsonError(w, "Authorization code is required", http.StatusBadRequest)
		return
	}

	if err := app.connectSpotify(r, userID, body.Code); err != nil {
		jsonError(w, err.message, http.StatusBadRequest)
		return
	}

	user, err := app.db.GetUserByID(userID)
	if err != nil || user == nil || user.SpotifyUserID == nil {
		jsonError(w, "Error loading user", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"success":         true,
		"spotify_user_id": *user.SpotifyUserID,
	})
}

// connectError carries both a human message and the short flag the frontend
// redirect flow uses.
type connectError struct {
	flag    string
	message string
	cause   error
}

func (e *connectError) Error() string {
	return fmt.Sprintf("%s: %v", e.message, e.cause)
}

// connectSpotify runs the three-call linking sequence: exchange the code for
// tokens, fetch the profile for the external user id, persist both on the
// user row. A failure at any step aborts the whole sequence; there is no
// retry.
func (app *application) connectSpotify(r *http.Request, userID int64, code string) *connectError {
	ctx := r.Context()

	token, err := app.spotify.Exchange(ctx, code)
	if err != nil {
		return &connectError{flag: "token_exchange_failed", message: "Failed to exchange code for token", cause: err}
	}

	profile, err := app.spotify.Profile(ctx, token.AccessToken)
	if err != nil {
		return &connectError{flag: "profile_fetch_failed", message: "Failed to fetch Spotify profile", cause: err}
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}

	if err := app.db.UpdateSpotifyTokens(userID, profile.ID, token.AccessToken, token.RefreshToken, expiresAt); err != nil {
		return &connectError{flag: "user_not_found", message: "Failed to store Spotify credentials", cause: err}
	}

	return nil
}

func (app *application) handleSpotifyStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	user, ok := app.currentUser(w, r)
	if !ok {
		return
	}

	if !user.SpotifyConnected() {
		jsonResponse(w, http.StatusOK, map[string]any{"connected": false})
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"connected":       true,
		"expired":         user.SpotifyTokenExpired(),
		"spotify_user_id": user.SpotifyUserID,
	})
}

func (app *application) handleSpotifyDisconnect(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	userID, _ := session.GetUserID(r.Context())

	if err := app.db.ClearSpotifyTokens(userID); err != nil {
		jsonError(w, "Error disconnecting Spotify", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"status": "disconnected"})
}
