package b2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DefaultAuthURL is the fixed control host for the account authorization
// handshake. The API and download hosts are resolved from its response.
const DefaultAuthURL = "https://api.backblaze.com"

const authorizePath = apiPrefix + "b2_authorize_account"

// grant is the credential bundle produced by one successful handshake.
// Fields are set all together or not at all; a zero grant means
// unauthenticated.
type grant struct {
	accountID   string
	apiURL      string
	downloadURL string
	token       string
}

func (g grant) valid() bool {
	return g.token != ""
}

// Session owns the B2 credentials and the state produced by the account
// authorization handshake. The handshake runs lazily on first use and is
// collapsed through a singleflight group so concurrent unauthenticated
// callers trigger exactly one round trip and all observe its result.
type Session struct {
	keyID      string
	appKey     string
	authURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.RWMutex
	cur    grant
	flight singleflight.Group
}

// NewSession creates a Session for the given account credentials.
// httpClient and logger may be nil, in which case defaults are used.
func NewSession(keyID, appKey string, httpClient *http.Client, logger *slog.Logger) *Session {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Session{
		keyID:      keyID,
		appKey:     appKey,
		authURL:    DefaultAuthURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// SetAuthURL overrides the control host URL. Tests and private deployments
// use this; production callers keep DefaultAuthURL.
func (s *Session) SetAuthURL(u string) {
	s.authURL = u
}

// Authorize ensures the session holds a valid token. It is a no-op when a
// token is already set and force is false; force always re-handshakes.
func (s *Session) Authorize(ctx context.Context, force bool) error {
	_, err := s.credentials(ctx, force)
	return err
}

// AccountID returns the resolved account id, or "" when unauthenticated.
func (s *Session) AccountID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cur.accountID
}

// Invalidate drops the current grant so the next call re-handshakes.
// Called when any request observes a 401.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.cur = grant{}
	s.mu.Unlock()

	s.logger.Debug("session invalidated")
}

// credentials returns the current grant, performing the handshake when no
// valid grant exists or force is set. Concurrent callers share one flight.
func (s *Session) credentials(ctx context.Context, force bool) (grant, error) {
	if !force {
		s.mu.RLock()
		cur := s.cur
		s.mu.RUnlock()

		if cur.valid() {
			return cur, nil
		}
	}

	v, err, _ := s.flight.Do("authorize", func() (any, error) {
		// Re-check inside the flight: a caller that blocked on another
		// handshake uses its result instead of repeating it.
		if !force {
			s.mu.RLock()
			cur := s.cur
			s.mu.RUnlock()

			if cur.valid() {
				return cur, nil
			}
		}

		g, err := s.handshake(ctx)
		if err != nil {
			return grant{}, err
		}

		s.mu.Lock()
		s.cur = g
		s.mu.Unlock()

		return g, nil
	})
	if err != nil {
		return grant{}, err
	}

	return v.(grant), nil
}

// authorizeRecord mirrors the b2_authorize_account JSON response.
type authorizeRecord struct {
	AccountID          string `json:"accountId"`
	APIURL             string `json:"apiUrl"`
	DownloadURL        string `json:"downloadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

// handshake performs the Basic-auth handshake against the control host and
// returns the resulting grant. Any non-200 status fails with *AuthError
// carrying the server message.
func (s *Session) handshake(ctx context.Context) (grant, error) {
	s.logger.Info("authorizing account", slog.String("auth_url", s.authURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.authURL+authorizePath, http.NoBody)
	if err != nil {
		return grant{}, fmt.Errorf("b2: creating authorize request: %w", err)
	}

	req.SetBasicAuth(s.keyID, s.appKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return grant{}, fmt.Errorf("b2: authorize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body) //nolint:errcheck // best-effort read for error message

		var rec errorRecord
		if jsonErr := json.Unmarshal(body, &rec); jsonErr != nil {
			rec = errorRecord{Message: string(body)}
		}

		return grant{}, &AuthError{Status: resp.StatusCode, Code: rec.Code, Message: rec.Message}
	}

	var rec authorizeRecord
	if decErr := json.NewDecoder(resp.Body).Decode(&rec); decErr != nil {
		return grant{}, fmt.Errorf("b2: decoding authorize response: %w", decErr)
	}

	g, err := rec.toGrant()
	if err != nil {
		return grant{}, err
	}

	s.logger.Info("authorization complete",
		slog.String("account_id", g.accountID),
		slog.String("api_url", g.apiURL),
		slog.String("download_url", g.downloadURL),
	)

	return g, nil
}

// toGrant validates the handshake response and builds the grant.
// All fields must be present so the grant is set all-or-nothing.
func (r *authorizeRecord) toGrant() (grant, error) {
	if r.AccountID == "" || r.APIURL == "" || r.DownloadURL == "" || r.AuthorizationToken == "" {
		return grant{}, fmt.Errorf("b2: incomplete authorize response")
	}

	for _, u := range []string{r.APIURL, r.DownloadURL} {
		parsed, err := url.Parse(u)
		if err != nil || parsed.Host == "" {
			return grant{}, fmt.Errorf("b2: invalid service URL %q in authorize response", u)
		}
	}

	return grant{
		accountID:   r.AccountID,
		apiURL:      r.APIURL,
		downloadURL: r.DownloadURL,
		token:       r.AuthorizationToken,
	}, nil
}
