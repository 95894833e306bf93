package app

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"nowplaying/internal/common"
	"nowplaying/internal/config"
	"nowplaying/internal/nowplaying"

	"github.com/google/uuid"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

//go:embed index.html
var indexPage []byte

// Authorizer drives the browser side of the Spotify login.
type Authorizer interface {
	AuthURL() string
	Callback(w http.ResponseWriter, req bunrouter.Request) error
}

// Server serves the now-playing page and its JSON snapshot.
type Server struct {
	logger *zap.SugaredLogger
	store  *nowplaying.Store
	auth   Authorizer
	router *bunrouter.Router
	http   *http.Server
	ready  atomic.Bool
}

func NewServer(logger *zap.SugaredLogger, cfg *config.Config, store *nowplaying.Store, auth Authorizer) *Server {
	s := &Server{
		logger: logger,
		store:  store,
		auth:   auth,
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() *bunrouter.Router {
	router := bunrouter.New(
		bunrouter.WithMiddleware(corsMiddleware),
		bunrouter.WithMiddleware(s.requestLogger),
	)

	router.GET("/", s.index)
	router.GET("/album-art", s.player)
	router.GET("/login", s.login)
	router.GET("/callback", s.auth.Callback)

	group := router.NewGroup("/api").Use(s.serverIsReady)

	group.GET("/ping", func(w http.ResponseWriter, req bunrouter.Request) error {
		_, err := w.Write([]byte("pong"))
		return err
	})
	group.GET("/player", s.player)

	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// MarkReady opens the /api group once the Spotify session is set up.
func (s *Server) MarkReady() {
	s.ready.Store(true)
}

// Start begins listening and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}

	s.logger.Info("Server started on ", ln.Addr())
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly: ", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.http.Shutdown(ctx)
}

func (s *Server) index(w http.ResponseWriter, req bunrouter.Request) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(indexPage)
	return err
}

func (s *Server) player(w http.ResponseWriter, req bunrouter.Request) error {
	return bunrouter.JSON(w, s.store.NowPlaying())
}

func (s *Server) login(w http.ResponseWriter, req bunrouter.Request) error {
	http.Redirect(w, req.Request, s.auth.AuthURL(), http.StatusFound)
	return nil
}

func (s *Server) serverIsReady(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		if !s.ready.Load() {
			return bunrouter.JSON(w, common.ErrorResponse{Message: "not ready yet"})
		}
		return next(w, req)
	}
}

func (s *Server) requestLogger(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		id := req.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		err := next(w, req)
		s.logger.Debugw("Handled request",
			"id", id,
			"method", req.Method,
			"path", req.URL.Path,
			"duration", time.Since(start),
			"error", err,
		)
		return err
	}
}

func corsMiddleware(next bunrouter.HandlerFunc) bunrouter.HandlerFunc {
	return func(w http.ResponseWriter, req bunrouter.Request) error {
		h := w.Header()

		h.Set("Access-Control-Allow-Origin", "*")

		// CORS preflight.
		if req.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Methods", "GET")
			h.Set("Access-Control-Allow-Headers", "content-type")
			h.Set("Access-Control-Max-Age", "86400")
			return nil
		}

		return next(w, req)
	}
}
