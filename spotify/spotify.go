package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	spotifyauth "golang.org/x/oauth2/spotify"
	"golang.org/x/time/rate"
)

// Config carries the application credentials for the Spotify Web API. It is
// injected; the service never reads global state.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Service is a thin client for the parts of the Spotify Web API this
// application touches: the authorization-code exchange, profile lookup and
// playlist creation. Every call is a single attempt with an explicit timeout;
// there is no retry.
type Service struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiBase    string
	logger     *log.Logger
}

func NewService(cfg Config) *Service {
	return &Service{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     spotifyauth.Endpoint,
		},
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		// Stay well under Spotify's rolling rate window.
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		apiBase: "https://api.spotify.com/v1",
		logger:  log.New(os.Stdout, "spotify: ", log.LstdFlags|log.Lmsgprefix),
	}
}

// AuthCodeURL builds the authorization URL the user is sent to. show_dialog
// forces the consent screen so reconnecting a different account works.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}

// Exchange trades an authorization code for a token pair.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return token, nil
}

// Profile is the subset of the Spotify user profile the application stores.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Profile fetches the profile of the user the access token belongs to.
func (s *Service) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	profile := &Profile{}
	if err := s.doJSON(ctx, http.MethodGet, s.apiBase+"/me", accessToken, nil, profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// doJSON performs one rate-limited request with a bearer token, optionally
// sending body as JSON and decoding the response into out.
func (s *Service) doJSON(ctx context.Context, method, url, accessToken string, body, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("spotify API error (%d): %s", resp.StatusCode, detail)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode spotify response: %w", err)
		}
	}

	return nil
}
