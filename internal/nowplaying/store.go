package nowplaying

import (
	"sync"

	"nowplaying/internal/common"
)

// Store holds the latest now-playing snapshot. It has a single writer, the
// Poller, and any number of readers.
type Store struct {
	mu      sync.RWMutex
	track   common.Track
	playing bool
	version uint64
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns a copy of the current record and whether a track is playing.
func (s *Store) Snapshot() (common.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.track, s.playing
}

// NowPlaying returns the JSON view of the current record.
func (s *Store) NowPlaying() common.NowPlaying {
	return common.NewNowPlaying(s.Snapshot())
}

// Set replaces the whole record with track.
func (s *Store) Set(track common.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.track = track
	s.playing = true
	s.version++
}

// Clear empties the record. Clearing an empty record is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.track = common.Track{}
	s.playing = false
	s.version++
}

// Version counts the writes applied to the record.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
