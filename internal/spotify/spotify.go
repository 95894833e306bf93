package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"nowplaying/internal/common"
	"nowplaying/internal/config"

	"github.com/uptrace/bunrouter"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.step.sm/crypto/randutil"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

var ErrStateMismatch = errors.New("oauth state mismatch")

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	GetLastToken(ctx context.Context) (*oauth2.Token, error)
	SaveToken(ctx context.Context, token *oauth2.Token) error
}

// Service owns the Spotify session: the login flow and the authenticated
// client the poller reads playback from.
type Service struct {
	logger *zap.SugaredLogger
	auth   *spotifyauth.Authenticator
	tokens TokenStore
	state  string
	opts   []spotify.ClientOption

	mu     sync.RWMutex
	client *spotify.Client
	ch     chan *spotify.Client
}

func NewService(logger *zap.SugaredLogger, cfg *config.Config, tokens TokenStore) (*Service, error) {
	state, err := randutil.Alphanumeric(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate oauth state: %w", err)
	}

	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(spotifyauth.ScopeUserReadCurrentlyPlaying, spotifyauth.ScopeUserReadPlaybackState),
		spotifyauth.WithClientID(cfg.SpotifyId),
		spotifyauth.WithClientSecret(cfg.SpotifySecret),
	)

	return &Service{
		logger: logger,
		auth:   auth,
		tokens: tokens,
		state:  state,
		ch:     make(chan *spotify.Client, 1),
	}, nil
}

// Init restores the session from the stored token. It fails with
// common.ErrNotAuthenticated when there is no token or it is no longer valid.
func (s *Service) Init(ctx context.Context) (*spotify.PrivateUser, error) {
	token, err := s.tokens.GetLastToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: no stored token: %w", common.ErrNotAuthenticated, err)
	}

	client := spotify.New(s.auth.Client(ctx, token), s.opts...)
	// Get current user to check if token is valid still
	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: stored token rejected: %w", common.ErrNotAuthenticated, err)
	}

	s.setClient(client)
	return user, nil
}

// Login restores the session or, failing that, waits for the user to
// complete the browser login through Callback.
func (s *Service) Login(ctx context.Context) (*spotify.PrivateUser, error) {
	user, err := s.Init(ctx)
	if err == nil {
		return user, nil
	}
	s.logger.Debug(err)
	s.logger.Info("Please log in to Spotify by visiting the following page in your browser: ", s.AuthURL())

	var client *spotify.Client
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case client = <-s.ch:
	}

	return client.CurrentUser(ctx)
}

func (s *Service) AuthURL() string {
	return s.auth.AuthURL(s.state)
}

// Callback completes the authorization code flow started by AuthURL.
func (s *Service) Callback(w http.ResponseWriter, req bunrouter.Request) error {
	if st := req.URL.Query().Get("state"); st != s.state {
		s.logger.Warnf("%v: %q", ErrStateMismatch, st)
		http.NotFound(w, req.Request)
		return nil
	}

	tok, err := s.auth.Token(req.Context(), s.state, req.Request)
	if err != nil {
		s.logger.Error("Couldn't get token: ", err)
		http.Error(w, "Couldn't get token", http.StatusForbidden)
		return nil
	}

	// the session outlives the callback request
	client := spotify.New(s.auth.Client(context.Background(), tok), s.opts...)
	s.setClient(client)

	if err := s.tokens.SaveToken(req.Context(), tok); err != nil {
		s.logger.Warn("Failed to save token, the next start will need a new login: ", err)
	}

	select {
	case s.ch <- client:
	default:
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "Authorization Complete")
	return nil
}

// PlayerState reads the playback state through the authenticated client.
func (s *Service) PlayerState(ctx context.Context, opts ...spotify.RequestOption) (*spotify.PlayerState, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return nil, common.ErrNotAuthenticated
	}
	return client.PlayerState(ctx, opts...)
}

// Authenticated reports whether a Spotify client is installed.
func (s *Service) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client != nil
}

func (s *Service) setClient(client *spotify.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}
