package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rewindfm/rewind/config"
	"github.com/rewindfm/rewind/db"
	"github.com/rewindfm/rewind/ingest"
	"github.com/rewindfm/rewind/session"
	"github.com/rewindfm/rewind/spotify"
)

func newTestApp(t *testing.T) *application {
	t.Helper()

	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return &application{
		cfg: &config.Config{
			UploadDir:   t.TempDir(),
			FrontendURL: "http://localhost:5173",
		},
		db:       database,
		sessions: session.NewManager(database),
		spotify:  spotify.NewService(spotify.Config{ClientID: "id", ClientSecret: "secret"}),
		ingest:   ingest.NewProcessor(database),
		logger:   log.New(io.Discard, "", 0),
	}
}

// registerAndLogin creates an account through the API and returns the
// session cookie from the login response.
func registerAndLogin(t *testing.T, server *httptest.Server, username string) *http.Cookie {
	t.Helper()

	body := `{"username":"` + username + `","email":"` + username + `@example.com","password":"pw123456","password_confirm":"pw123456"}`
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}

	login := `{"username":"` + username + `","password":"pw123456"}`
	resp, err = http.Post(server.URL+"/api/auth/login", "application/json", strings.NewReader(login))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "session" {
			return cookie
		}
	}
	t.Fatal("login response set no session cookie")
	return nil
}

func authedRequest(t *testing.T, method, url string, cookie *http.Cookie, body io.Reader) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(cookie)
	return req
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestParseTrackLimit(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 50, false},
		{"10", 10, false},
		{"1", 1, false},
		{"0", 1, false},
		{"-5", 1, false},
		{"200", 200, false},
		{"500", 200, false},
		{"abc", 0, true},
		{"10.5", 0, true},
	}

	for _, tc := range cases {
		query := url.Values{}
		if tc.raw != "" {
			query.Set("limit", tc.raw)
		}
		got, err := parseTrackLimit(query)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseTrackLimit(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseTrackLimit(%q): %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseTrackLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseDateRange(t *testing.T) {
	query := url.Values{"start_date": {"2023-01-01"}, "end_date": {"2023-06-30"}}
	start, end, err := parseDateRange(query)
	if err != nil {
		t.Fatalf("parseDateRange: %v", err)
	}
	if start == nil || start.Format("2006-01-02") != "2023-01-01" {
		t.Errorf("start = %v", start)
	}
	if end == nil || end.Format("2006-01-02") != "2023-06-30" {
		t.Errorf("end = %v", end)
	}

	start, end, err = parseDateRange(url.Values{})
	if err != nil || start != nil || end != nil {
		t.Errorf("empty query should yield nil bounds, got %v %v %v", start, end, err)
	}

	if _, _, err := parseDateRange(url.Values{"start_date": {"01/02/2023"}}); err == nil {
		t.Error("expected error for malformed start_date")
	}
}

func TestRoutesRequireAuth(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	paths := []string{
		"/api/upload/list",
		"/api/upload/stats",
		"/api/upload/top-tracks",
		"/api/upload/monthly-stats",
	}
	for _, path := range paths {
		resp, err := http.Get(server.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without session = %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	registerAndLogin(t, server, "listener")

	resp, err := http.Post(server.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"listener","password":"wrong"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("login with bad password = %d, want 401", resp.StatusCode)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	registerAndLogin(t, server, "listener")

	body := `{"username":"listener","email":"other@example.com","password":"pw123456","password_confirm":"pw123456"}`
	resp, err := http.Post(server.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("duplicate register = %d, want 400", resp.StatusCode)
	}
}

// uploadBody builds a multipart form carrying filename with the given bytes
// under the "file" field.
func uploadBody(t *testing.T, filename string, content []byte) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	writer.Close()
	return &buf, writer.FormDataContentType()
}

func historyZip(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("Spotify Extended Streaming History/Streaming_History_Audio_2023.json")
	if err != nil {
		t.Fatal(err)
	}
	entry.Write([]byte(`[
		{"ts":"2023-05-01T10:00:00Z","ms_played":180000,"master_metadata_track_name":"Song A","master_metadata_album_artist_name":"Artist X","master_metadata_album_album_name":"Album","spotify_track_uri":"spotify:track:aaa"},
		{"ts":"2023-05-01T11:00:00Z","ms_played":180000,"master_metadata_track_name":"Song A","master_metadata_album_artist_name":"Artist X","master_metadata_album_album_name":"Album","spotify_track_uri":"spotify:track:aaa"},
		{"ts":"2023-06-02T12:00:00Z","ms_played":240000,"master_metadata_track_name":"Song B","master_metadata_album_artist_name":"Artist Y","master_metadata_album_album_name":"Album","spotify_track_uri":"spotify:track:bbb"}
	]`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadAndStatsFlow(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	cookie := registerAndLogin(t, server, "listener")
	client := server.Client()

	body, contentType := uploadBody(t, "my_spotify_data.zip", historyZip(t))
	req := authedRequest(t, http.MethodPost, server.URL+"/api/upload", cookie, body)
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("upload status = %d: %s", resp.StatusCode, detail)
	}

	var uploadResp struct {
		Message string `json:"message"`
		Upload  struct {
			ProcessingStatus string `json:"processing_status"`
		} `json:"upload"`
	}
	decodeJSON(t, resp, &uploadResp)
	if uploadResp.Upload.ProcessingStatus != "completed" {
		t.Errorf("processing_status = %q, want completed", uploadResp.Upload.ProcessingStatus)
	}

	// Totals over the three persisted events.
	resp, err = client.Do(authedRequest(t, http.MethodGet, server.URL+"/api/upload/stats", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	var stats struct {
		TotalRecords     int     `json:"total_records"`
		TotalHoursPlayed float64 `json:"total_hours_played"`
	}
	decodeJSON(t, resp, &stats)
	if stats.TotalRecords != 3 {
		t.Errorf("total_records = %d, want 3", stats.TotalRecords)
	}

	// Ranked tracks: Song A twice, Song B once.
	resp, err = client.Do(authedRequest(t, http.MethodGet, server.URL+"/api/upload/top-tracks", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	var top []struct {
		Rank      int    `json:"rank"`
		TrackName string `json:"track_name"`
		PlayCount int    `json:"play_count"`
	}
	decodeJSON(t, resp, &top)
	if len(top) != 2 {
		t.Fatalf("expected 2 top tracks, got %d", len(top))
	}
	if top[0].TrackName != "Song A" || top[0].PlayCount != 2 || top[0].Rank != 1 {
		t.Errorf("rank 1 wrong: %+v", top[0])
	}

	// Monthly buckets: May and June 2023, ascending.
	resp, err = client.Do(authedRequest(t, http.MethodGet, server.URL+"/api/upload/monthly-stats", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	var monthly []struct {
		Month      string `json:"month"`
		MonthLabel string `json:"month_label"`
		PlayCount  int    `json:"play_count"`
	}
	decodeJSON(t, resp, &monthly)
	if len(monthly) != 2 {
		t.Fatalf("expected 2 months, got %d", len(monthly))
	}
	if monthly[0].Month != "2023-05" || monthly[1].MonthLabel != "June 2023" {
		t.Errorf("months wrong: %+v", monthly)
	}

	// generate-playlist returns the deduplicated URI list.
	resp, err = client.Do(authedRequest(t, http.MethodPost, server.URL+"/api/upload/generate-playlist", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	var generated struct {
		TrackURIs  []string `json:"track_uris"`
		TrackCount int      `json:"track_count"`
	}
	decodeJSON(t, resp, &generated)
	if generated.TrackCount != 2 || len(generated.TrackURIs) != 2 {
		t.Fatalf("generate-playlist wrong: %+v", generated)
	}
	if generated.TrackURIs[0] != "spotify:track:aaa" {
		t.Errorf("most played URI should come first: %v", generated.TrackURIs)
	}

	// Wipe everything and confirm the totals go back to zero.
	resp, err = client.Do(authedRequest(t, http.MethodPost, server.URL+"/api/upload/delete-all", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	var deleted struct {
		DeletedUploads int64 `json:"deleted_uploads"`
		DeletedEvents  int64 `json:"deleted_events"`
	}
	decodeJSON(t, resp, &deleted)
	if deleted.DeletedUploads != 1 || deleted.DeletedEvents != 3 {
		t.Errorf("delete-all = %+v, want 1 upload / 3 events", deleted)
	}

	resp, err = client.Do(authedRequest(t, http.MethodGet, server.URL+"/api/upload/stats", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	decodeJSON(t, resp, &stats)
	if stats.TotalRecords != 0 {
		t.Errorf("total_records after delete-all = %d, want 0", stats.TotalRecords)
	}
}

func TestUploadRejectsNonZip(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	cookie := registerAndLogin(t, server, "listener")

	body, contentType := uploadBody(t, "history.json", []byte(`[]`))
	req := authedRequest(t, http.MethodPost, server.URL+"/api/upload", cookie, body)
	req.Header.Set("Content-Type", contentType)

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-zip upload = %d, want 400", resp.StatusCode)
	}
}

func TestUploadCorruptZipMarksFailed(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	cookie := registerAndLogin(t, server, "listener")

	body, contentType := uploadBody(t, "broken.zip", []byte("not a zip archive"))
	req := authedRequest(t, http.MethodPost, server.URL+"/api/upload", cookie, body)
	req.Header.Set("Content-Type", contentType)

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("corrupt upload = %d, want 500", resp.StatusCode)
	}

	listResp, err := server.Client().Do(authedRequest(t, http.MethodGet, server.URL+"/api/upload/list", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	var list []struct {
		ProcessingStatus string `json:"processing_status"`
	}
	decodeJSON(t, listResp, &list)
	if len(list) != 1 || list[0].ProcessingStatus != "failed" {
		t.Errorf("upload should be recorded as failed: %+v", list)
	}
}

func TestTopTracksBadLimit(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	cookie := registerAndLogin(t, server, "listener")

	resp, err := server.Client().Do(authedRequest(t, http.MethodGet,
		server.URL+"/api/upload/top-tracks?limit=abc", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("limit=abc = %d, want 400", resp.StatusCode)
	}
}

func TestCreatePlaylistRequiresSpotify(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	cookie := registerAndLogin(t, server, "listener")

	resp, err := server.Client().Do(authedRequest(t, http.MethodPost,
		server.URL+"/api/upload/create-playlist", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("create-playlist without Spotify link = %d, want 400", resp.StatusCode)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.routes())
	defer server.Close()

	cookie := registerAndLogin(t, server, "listener")
	client := server.Client()

	resp, err := client.Do(authedRequest(t, http.MethodPost, server.URL+"/api/auth/logout", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout = %d", resp.StatusCode)
	}

	resp, err = client.Do(authedRequest(t, http.MethodGet, server.URL+"/api/auth/me", cookie, nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me after logout = %d, want 401", resp.StatusCode)
	}
}
