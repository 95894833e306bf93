package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"nowplaying/internal/common"
	"nowplaying/internal/config"

	"github.com/uptrace/bunrouter"
	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type memoryTokens struct {
	token *oauth2.Token
	err   error
	saved []*oauth2.Token
}

func (m *memoryTokens) GetLastToken(ctx context.Context) (*oauth2.Token, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.token == nil {
		return nil, errors.New("no token")
	}
	return m.token, nil
}

func (m *memoryTokens) SaveToken(ctx context.Context, token *oauth2.Token) error {
	m.saved = append(m.saved, token)
	return nil
}

func newTestService(t *testing.T, tokens TokenStore) *Service {
	t.Helper()
	cfg := &config.Config{
		SpotifyId:     "client-id",
		SpotifySecret: "client-secret",
		RedirectURI:   "http://localhost:5000/callback",
	}
	s, err := NewService(zap.NewNop().Sugar(), cfg, tokens)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return s
}

// fakeAPI serves /me and /me/player, answering 401 when authorized is false.
func fakeAPI(t *testing.T, authorized bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !authorized || r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"status": 401, "message": "Invalid access token"}}`))
			return
		}
		switch r.URL.Path {
		case "/me":
			_, _ = w.Write([]byte(`{"id": "user-1", "display_name": "Tester"}`))
		case "/me/player":
			_, _ = w.Write([]byte(`{"is_playing": true, "item": {"name": "Song A", "artists": [{"name": "Artist X"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "access", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)}
}

func TestPlayerState_BeforeLogin(t *testing.T) {
	s := newTestService(t, &memoryTokens{})

	_, err := s.PlayerState(context.Background())
	if !errors.Is(err, common.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestInit(t *testing.T) {
	tests := []struct {
		name       string
		tokens     *memoryTokens
		authorized bool
		wantErr    bool
	}{
		{
			name:       "Success - Stored Token",
			tokens:     &memoryTokens{token: validToken()},
			authorized: true,
		},
		{
			name:    "Error - No Stored Token",
			tokens:  &memoryTokens{err: errors.New("redis: nil")},
			wantErr: true,
		},
		{
			name:       "Error - Token Rejected",
			tokens:     &memoryTokens{token: validToken()},
			authorized: false,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := fakeAPI(t, tt.authorized)
			s := newTestService(t, tt.tokens)
			s.opts = []spotify.ClientOption{spotify.WithBaseURL(server.URL + "/")}

			user, err := s.Init(context.Background())
			if tt.wantErr {
				if !errors.Is(err, common.ErrNotAuthenticated) {
					t.Fatalf("expected ErrNotAuthenticated, got %v", err)
				}
				if _, err := s.PlayerState(context.Background()); !errors.Is(err, common.ErrNotAuthenticated) {
					t.Errorf("client should stay unset after a failed init, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if user.ID != "user-1" {
				t.Errorf("expected user-1, got %q", user.ID)
			}

			state, err := s.PlayerState(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !state.Playing || state.Item == nil || state.Item.Name != "Song A" {
				t.Errorf("unexpected player state: %+v", state)
			}
		})
	}
}

func TestLogin_WaitsForCallback(t *testing.T) {
	server := fakeAPI(t, true)
	s := newTestService(t, &memoryTokens{})
	s.opts = []spotify.ClientOption{spotify.WithBaseURL(server.URL + "/")}

	client := spotify.New(oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(validToken())), s.opts...)
	s.ch <- client

	user, err := s.Login(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.DisplayName != "Tester" {
		t.Errorf("expected Tester, got %q", user.DisplayName)
	}
}

func TestLogin_Cancelled(t *testing.T) {
	s := newTestService(t, &memoryTokens{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Login(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAuthURL(t *testing.T) {
	s := newTestService(t, &memoryTokens{})

	u, err := url.Parse(s.AuthURL())
	if err != nil {
		t.Fatalf("invalid auth url: %v", err)
	}

	q := u.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("expected client_id, got %q", q.Get("client_id"))
	}
	if q.Get("state") != s.state || len(s.state) != 16 {
		t.Errorf("expected the 16 character state, got %q", q.Get("state"))
	}
	if q.Get("redirect_uri") != "http://localhost:5000/callback" {
		t.Errorf("unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
	if !strings.Contains(q.Get("scope"), "user-read-playback-state") {
		t.Errorf("expected playback scope, got %q", q.Get("scope"))
	}
}

func TestCallback_StateMismatch(t *testing.T) {
	tokens := &memoryTokens{}
	s := newTestService(t, tokens)

	router := bunrouter.New()
	router.GET("/callback", s.Callback)

	req := httptest.NewRequest(http.MethodGet, "/callback?state=wrong&code=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if len(tokens.saved) != 0 {
		t.Error("no token should be saved on a state mismatch")
	}
	if _, err := s.PlayerState(context.Background()); !errors.Is(err, common.ErrNotAuthenticated) {
		t.Errorf("expected no client after a rejected callback, got %v", err)
	}
}

// redirectTransport sends every request to target, whatever its host.
type redirectTransport struct {
	target *url.URL
}

func (rt redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	out.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

// tokenEndpoint fakes the accounts service token exchange.
func tokenEndpoint(t *testing.T, status int, body string) *http.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad token request: %v", err)
		}
		if r.PostForm.Get("code") != "auth-code" {
			t.Errorf("expected the authorization code to be exchanged, got %q", r.PostForm.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{Transport: redirectTransport{target: target}}
}

func callback(s *Service, exchange *http.Client) *httptest.ResponseRecorder {
	router := bunrouter.New()
	router.GET("/callback", s.Callback)

	req := httptest.NewRequest(http.MethodGet, "/callback?state="+s.state+"&code=auth-code", nil)
	req = req.WithContext(context.WithValue(req.Context(), oauth2.HTTPClient, exchange))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCallback_Success(t *testing.T) {
	api := fakeAPI(t, true)
	exchange := tokenEndpoint(t, http.StatusOK,
		`{"access_token": "access", "token_type": "Bearer", "expires_in": 3600, "refresh_token": "refresh"}`)

	tokens := &memoryTokens{}
	s := newTestService(t, tokens)
	s.opts = []spotify.ClientOption{spotify.WithBaseURL(api.URL + "/")}

	rec := callback(s, exchange)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Authorization Complete") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	if len(tokens.saved) != 1 || tokens.saved[0].AccessToken != "access" {
		t.Fatalf("expected the exchanged token to be saved once, got %+v", tokens.saved)
	}
	if !s.Authenticated() {
		t.Error("expected a client to be installed")
	}

	state, err := s.PlayerState(context.Background())
	if err != nil {
		t.Fatalf("unexpected error after login: %v", err)
	}
	if state.Item == nil || state.Item.Name != "Song A" {
		t.Errorf("unexpected player state: %+v", state)
	}

	select {
	case client := <-s.ch:
		if client == nil {
			t.Error("expected a client to be handed to Login")
		}
	default:
		t.Error("expected the callback to hand the client to Login")
	}
}

func TestCallback_TokenExchangeFails(t *testing.T) {
	exchange := tokenEndpoint(t, http.StatusBadRequest,
		`{"error": "invalid_grant", "error_description": "Invalid authorization code"}`)

	tokens := &memoryTokens{}
	s := newTestService(t, tokens)

	rec := callback(s, exchange)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	if len(tokens.saved) != 0 {
		t.Error("no token should be saved when the exchange fails")
	}
	if s.Authenticated() {
		t.Error("no client should be installed when the exchange fails")
	}
	select {
	case <-s.ch:
		t.Error("Login should not be woken when the exchange fails")
	default:
	}
}
