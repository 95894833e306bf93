package nowplaying

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"nowplaying/internal/common"
	"nowplaying/internal/config"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks nowplaying/internal/nowplaying PlaybackSource

// PlaybackSource reports the playback state of the authenticated account.
// *spotify.Client satisfies it.
type PlaybackSource interface {
	PlayerState(ctx context.Context, opts ...spotify.RequestOption) (*spotify.PlayerState, error)
}

// Sleeper blocks for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Poller keeps a Store in sync with the remote playback state. It is the
// only writer of the store.
type Poller struct {
	logger      *zap.SugaredLogger
	source      PlaybackSource
	store       *Store
	sleeper     Sleeper
	interval    time.Duration
	timeout     time.Duration
	maxAttempts int

	// last applied track, poller-local
	last    common.Track
	applied bool
	checks  uint64
	// set after a failed request, cleared by the next answered one
	failing bool
}

func NewPoller(logger *zap.SugaredLogger, cfg *config.Config, source PlaybackSource, store *Store) *Poller {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Poller{
		logger:      logger,
		source:      source,
		store:       store,
		sleeper:     timerSleeper{},
		interval:    cfg.PollInterval,
		timeout:     cfg.RequestTimeout,
		maxAttempts: attempts,
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Poller started, checking every ", p.interval)
	defer p.logger.Info("Poller stopped")

	for {
		p.Update(ctx)
		if err := p.sleeper.Sleep(ctx, p.interval); err != nil {
			return
		}
	}
}

// Update runs one poll cycle and applies the result to the store.
func (p *Poller) Update(ctx context.Context) {
	p.checks++
	p.logger.Debugf("Updating song info %d", p.checks)

	track, playing := p.PollOnce(ctx)
	if ctx.Err() != nil {
		return
	}

	if !playing {
		if p.applied {
			p.logger.Info("No song is currently playing")
		}
		p.applied = false
		p.last = common.Track{}
		p.store.Clear()
		return
	}

	if p.applied && p.last.Same(track) {
		return
	}

	p.logger.Infof("Now playing: '%s' by %s", track.Title, track.Artists)
	p.store.Set(track)
	p.last = track
	p.applied = true
}

// PollOnce fetches the current playback and normalizes it. Rate limited
// requests are retried with exponential backoff; any other failure, or
// running out of attempts, reports nothing playing.
func (p *Poller) PollOnce(ctx context.Context) (common.Track, bool) {
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		state, err := p.fetch(ctx)
		if err == nil {
			if p.failing {
				p.logger.Info("Playback state reachable again")
				p.failing = false
			}
			return trackFromState(state)
		}

		if !isRateLimited(err) {
			if errors.Is(err, common.ErrNotAuthenticated) {
				p.logger.Debug("Waiting for Spotify login")
			} else if p.failing {
				p.logger.Debug("Still failing to get playback state: ", err)
			} else {
				p.logger.Error("Failed to get playback state: ", err)
				p.failing = true
			}
			return common.Track{}, false
		}

		wait := backoff(attempt)
		p.logger.Warnf("Rate limit exceeded, waiting %s (attempt %d/%d)", wait, attempt+1, p.maxAttempts)
		if err := p.sleeper.Sleep(ctx, wait); err != nil {
			return common.Track{}, false
		}
	}

	p.logger.Error("Giving up on playback state after ", p.maxAttempts, " rate limited attempts")
	return common.Track{}, false
}

func (p *Poller) fetch(ctx context.Context) (*spotify.PlayerState, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.source.PlayerState(ctx)
}

func backoff(attempt int) time.Duration {
	return time.Second << attempt
}

func isRateLimited(err error) bool {
	var serr spotify.Error
	if errors.As(err, &serr) {
		return serr.Status == http.StatusTooManyRequests
	}
	var perr *spotify.Error
	if errors.As(err, &perr) && perr != nil {
		return perr.Status == http.StatusTooManyRequests
	}
	return false
}

func trackFromState(state *spotify.PlayerState) (common.Track, bool) {
	if state == nil || !state.Playing || state.Item == nil {
		return common.Track{}, false
	}

	item := state.Item
	names := make([]string, 0, len(item.Artists))
	for _, artist := range item.Artists {
		names = append(names, artist.Name)
	}

	track := common.Track{
		Title:   item.Name,
		Artists: strings.Join(names, ", "),
	}
	if track.Title == "" || track.Artists == "" {
		return common.Track{}, false
	}

	if len(item.Album.Images) > 0 {
		track.AlbumArt = item.Album.Images[0].URL
	}
	return track, true
}
