// package services defines the interfaces the generator uses to talk to streaming and similarity APIs
//
// Spotify (zmb3/spotify), YouTube Music (via ytmusicapi proxy or the YouTube Data API), Last.fm
package services

import (
	"context"

	"github.com/desertthunder/ytmix/internal/models"
)

// Publisher creates playlists and fills them with track IDs.
type Publisher interface {
	// CreatePlaylist creates an empty private playlist.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)

	// AddItems appends track IDs to a playlist. len(ids) never exceeds BatchSize when BatchSize is positive.
	AddItems(ctx context.Context, playlistID string, ids []string) error

	// BatchSize is the maximum number of items per AddItems call. Zero or less means no limit.
	BatchSize() int
}

// Service defines the interface for a streaming platform the generator can read seeds from,
// search for track identities and publish playlists to.
type Service interface {
	Publisher

	// Platform identifies the service.
	Platform() models.Platform

	// Name returns the name of the service (e.g., "Spotify", "YouTube Music")
	Name() string

	// SearchTracks returns up to limit candidates for a free-text query, best match first.
	SearchTracks(ctx context.Context, query string, limit int) ([]*models.Track, error)

	// SeedTracks returns the listener's lastN most recent tracks.
	SeedTracks(ctx context.Context, lastN int) ([]*models.Track, error)
}

// CatalogRecommender returns recommendations for a set of seed track IDs.
type CatalogRecommender interface {
	Recommendations(ctx context.Context, seedIDs []string, limit int) ([]*models.Track, error)
}

// Continuer returns the "up next" list that follows a track. The first entry is the track itself.
type Continuer interface {
	Continuation(ctx context.Context, trackID string) ([]*models.Track, error)
}

// SimilarityClient returns tracks similar to (artist, title), most similar first.
type SimilarityClient interface {
	Similar(ctx context.Context, artist, title string) ([]*models.Track, error)
}
