package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/rewindfm/rewind/db"
)

const cookieName = "session"

// Session is one logged-in browser session.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager stores sessions in sqlite with an in-memory cache in front, so a
// restart doesn't log everyone out but the hot path stays off the database.
type Manager struct {
	db       *db.DB
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewManager(database *db.DB) *Manager {
	return &Manager{
		db:       database,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new 24-hour session for a user.
func (m *Manager) Create(userID int64) *Session {
	b := make([]byte, 32)
	rand.Read(b)
	sessionID := base64.URLEncoding.EncodeToString(b)

	now := time.Now().UTC()

	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(24 * time.Hour),
	}

	m.mu.Lock()
	m.sessions[sessionID] = session
	m.mu.Unlock()

	_, err := m.db.Exec(`
	INSERT INTO sessions (id, user_id, created_at, expires_at)
	VALUES (?, ?, ?, ?)`,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		log.Printf("Error storing session in database: %v", err)
	}

	return session
}

// Get retrieves a session by ID, falling back to the database when the
// in-memory cache misses. Expired sessions are deleted on sight.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if !exists {
		session = &Session{ID: sessionID}
		err := m.db.QueryRow(`
		SELECT user_id, created_at, expires_at
		FROM sessions WHERE id = ?`, sessionID).Scan(
			&session.UserID, &session.CreatedAt, &session.ExpiresAt)
		if err != nil {
			return nil, false
		}

		m.mu.Lock()
		m.sessions[sessionID] = session
		m.mu.Unlock()
	}

	if time.Now().UTC().After(session.ExpiresAt) {
		m.Delete(sessionID)
		return nil, false
	}

	return session, true
}

// Delete removes a session from the cache and the database.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if _, err := m.db.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		log.Printf("Error deleting session from database: %v", err)
	}
}

// SetCookie sets the session cookie on the response.
func (m *Manager) SetCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  session.ExpiresAt,
	})
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// Logout tears down the request's session, if any, and clears the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(cookieName); err == nil {
		m.Delete(cookie.Value)
	}
	m.ClearCookie(w)
}

// WithAuth wraps a handler and rejects requests without a valid session with
// a JSON 401. The authenticated user id travels in the request context.
func WithAuth(handler http.HandlerFunc, m *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(cookieName)
		if err != nil {
			unauthorized(w)
			return
		}

		session, exists := m.Get(cookie.Value)
		if !exists {
			unauthorized(w)
			return
		}

		r = r.WithContext(WithUserID(r.Context(), session.UserID))
		handler(w, r)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error": "Authentication required"}`))
}

type contextKey int

const userIDKey contextKey = iota

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDKey).(int64)
	return userID, ok
}
