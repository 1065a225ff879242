package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/ytmix/internal/shared"
)

// Platform identifies a streaming service.
type Platform string

const (
	Spotify Platform = "spotify"
	YouTube Platform = "youtube"
)

// Platforms lists every supported platform.
var Platforms = []Platform{Spotify, YouTube}

// ParsePlatform accepts "spotify" or "youtube" (and the "ytmusic" alias), case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "spotify":
		return Spotify, nil
	case "youtube", "ytmusic", "youtube-music":
		return YouTube, nil
	default:
		return "", fmt.Errorf("%w: %q", shared.ErrUnsupportedPlatform, s)
	}
}

// Name returns the human readable service name.
func (p Platform) Name() string {
	switch p {
	case Spotify:
		return "Spotify"
	case YouTube:
		return "YouTube Music"
	default:
		return string(p)
	}
}

// Other returns the opposite platform.
func (p Platform) Other() Platform {
	if p == Spotify {
		return YouTube
	}
	return Spotify
}

// TrackURL returns the public link for a track ID on p.
func (p Platform) TrackURL(id string) string {
	switch p {
	case Spotify:
		return "https://open.spotify.com/track/" + id
	case YouTube:
		return "https://music.youtube.com/watch?v=" + id
	default:
		return ""
	}
}

// PlaylistURL returns the public link for a playlist ID on p.
func (p Platform) PlaylistURL(id string) string {
	switch p {
	case Spotify:
		return "https://open.spotify.com/playlist/" + id
	case YouTube:
		return "https://music.youtube.com/playlist?list=" + id
	default:
		return ""
	}
}
