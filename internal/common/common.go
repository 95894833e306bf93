package common

import "errors"

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrMissingCredentials = errors.New("missing spotify credentials")
)

type ErrorResponse struct {
	Message string `json:"message"`
}

// Track is the normalized metadata of the track currently playing.
type Track struct {
	Title    string
	Artists  string
	AlbumArt string
}

// Same reports whether t and other identify the same track. Album art is not
// part of a track's identity.
func (t Track) Same(other Track) bool {
	return t.Title == other.Title && t.Artists == other.Artists
}

// NowPlaying is the snapshot served to the browser. Fields are null when
// nothing is playing.
type NowPlaying struct {
	AlbumArt *string `json:"album_art"`
	Title    *string `json:"title"`
	Artists  *string `json:"artists"`
}

// NewNowPlaying builds the JSON view of a snapshot. A playing track whose
// album lists no images keeps its title and artists and reports a null
// album_art, so not all three fields are present together in that case.
func NewNowPlaying(track Track, playing bool) NowPlaying {
	if !playing {
		return NowPlaying{}
	}

	np := NowPlaying{
		Title:   &track.Title,
		Artists: &track.Artists,
	}
	if track.AlbumArt != "" {
		np.AlbumArt = &track.AlbumArt
	}
	return np
}
