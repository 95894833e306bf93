package main

import (
	"context"
	"errors"
	"fmt"

	"nowplaying/internal/app"
	"nowplaying/internal/config"
	"nowplaying/internal/nowplaying"
	"nowplaying/internal/redis"
	"nowplaying/internal/spotify"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// AppOptions wires the application. The caller supplies *config.Config.
var AppOptions = fx.Options(
	fx.Provide(
		newLogger,
		newSugaredLogger,
		newTokenStore,
		spotify.NewService,
		newPlaybackSource,
		newAuthorizer,
		nowplaying.NewStore,
		nowplaying.NewPoller,
		app.NewServer,
	),
	fx.Invoke(registerHooks),
)

// newLogger creates the zap logger, at debug level when verbose logging is on
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Debug {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

func newSugaredLogger(logger *zap.Logger) *zap.SugaredLogger {
	return logger.Sugar()
}

func newTokenStore(lc fx.Lifecycle, cfg *config.Config, logger *zap.SugaredLogger) spotify.TokenStore {
	store := redis.NewStore(cfg, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store
}

func newPlaybackSource(svc *spotify.Service) nowplaying.PlaybackSource {
	return svc
}

func newAuthorizer(svc *spotify.Service) app.Authorizer {
	return svc
}

type loginSession interface {
	Login(ctx context.Context) (*spotifyapi.PrivateUser, error)
	Authenticated() bool
}

type readyMarker interface {
	MarkReady()
}

// awaitLogin opens the /api routes once the Spotify client is installed, even
// when reading the profile after login fails.
func awaitLogin(ctx context.Context, logger *zap.SugaredLogger, session loginSession, srv readyMarker) {
	user, err := session.Login(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if !session.Authenticated() {
			logger.Error("Spotify login failed: ", err)
			return
		}
		logger.Warn("Logged in to Spotify, but couldn't read the profile: ", err)
	} else {
		logger.Info("You are logged in as: ", user.DisplayName, " (", user.ID, ")")
	}
	srv.MarkReady()
}

// registerHooks starts the web server, the poller and the Spotify login, and
// stops them in reverse on shutdown.
func registerHooks(lc fx.Lifecycle, logger *zap.SugaredLogger, srv *app.Server, poller *nowplaying.Poller, svc *spotify.Service) {
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := srv.Start(ctx); err != nil {
				cancel()
				return err
			}

			go func() {
				defer close(done)
				poller.Run(runCtx)
			}()

			go awaitLogin(runCtx, logger, svc, srv)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return stopAll(ctx, done, srv)
		},
	})
}

type stopper interface {
	Stop(ctx context.Context) error
}

// stopAll waits for the poller to exit, then shuts the server down. The
// server is stopped even when the poller misses the deadline.
func stopAll(ctx context.Context, pollerDone <-chan struct{}, srv stopper) error {
	var waitErr error
	select {
	case <-pollerDone:
	case <-ctx.Done():
		waitErr = fmt.Errorf("poller did not stop: %w", ctx.Err())
	}
	return errors.Join(waitErr, srv.Stop(ctx))
}
