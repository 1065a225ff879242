// YouTube Music [Service] implementation
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
)

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
//
// Search and playlist results carry duration_seconds; watch playlists only carry
// a "length" string such as "3:45".
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Duration    string          `json:"duration"`
	Length      string          `json:"length"`
	DurationSec int             `json:"duration_seconds"`
	IsExplicit  bool            `json:"isExplicit"`
}

// Seconds returns the best available duration in seconds, 0 when unknown.
func (t YouTubeTrack) Seconds() int {
	if t.DurationSec > 0 {
		return t.DurationSec
	}
	for _, s := range []string{t.Duration, t.Length} {
		if secs := parseClock(s); secs > 0 {
			return secs
		}
	}
	return 0
}

// toTrack converts a proxy payload into a YouTube-only [models.Track].
func (t YouTubeTrack) toTrack() (*models.Track, error) {
	if t.VideoID == "" {
		return nil, fmt.Errorf("%w: missing videoId for %q", shared.ErrInvalidInput, t.Title)
	}

	names := make([]string, 0, len(t.Artists))
	ids := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
		ids = append(ids, a.ID)
	}

	track, err := models.NewTrack(t.Title, names, t.Seconds())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.VideoID, err)
	}
	track.SetIdentity(models.YouTube, t.VideoID, ids)
	track.MarkAbsent(models.Spotify)
	return track, nil
}

// YouTubePlaylist is a library playlist summary.
type YouTubePlaylist struct {
	PlaylistID string `json:"playlistId"`
	Title      string `json:"title"`
	Count      any    `json:"count"`
}

// TrackCount parses count, which ytmusicapi reports as either a number or a string like "1,234".
func (p YouTubePlaylist) TrackCount() int {
	switch v := p.Count.(type) {
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
		return n
	default:
		return 0
	}
}

// YouTubeService implements [Service] and [Continuer] for YouTube Music via proxy.
type YouTubeService struct {
	proxy  *ProxyClient
	logger *log.Logger
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(proxy *ProxyClient, logger *log.Logger) *YouTubeService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YouTubeService{proxy: proxy, logger: logger}
}

func (y *YouTubeService) Platform() models.Platform { return models.YouTube }

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return models.YouTube.Name()
}

// BatchSize is unlimited: the proxy adds any number of items in one call.
func (y *YouTubeService) BatchSize() int { return 0 }

// SearchTracks searches songs.
//
// Calls GET /api/search?q={query}&filter=songs&limit={limit} on the proxy.
func (y *YouTubeService) SearchTracks(ctx context.Context, query string, limit int) ([]*models.Track, error) {
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=songs&limit=%d", url.QueryEscape(query), limit)

	var results []YouTubeTrack
	if err := y.proxy.Get(ctx, endpoint, &results); err != nil {
		return nil, err
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return y.convert(results), nil
}

// Playlists lists library playlists, largest first.
//
// Calls GET /api/library/playlists on the proxy.
func (y *YouTubeService) Playlists(ctx context.Context) ([]YouTubePlaylist, error) {
	var playlists []YouTubePlaylist
	if err := y.proxy.Get(ctx, "/api/library/playlists", &playlists); err != nil {
		return nil, err
	}

	sort.SliceStable(playlists, func(i, j int) bool {
		return playlists[i].TrackCount() > playlists[j].TrackCount()
	})
	return playlists, nil
}

// SeedTracks returns the first lastN tracks of the main playlist, which is taken to be the library playlist with the most tracks.
//
// Calls GET /api/library/playlists then GET /api/playlists/{id}?limit={lastN}.
func (y *YouTubeService) SeedTracks(ctx context.Context, lastN int) ([]*models.Track, error) {
	playlists, err := y.Playlists(ctx)
	if err != nil {
		return nil, err
	}
	if len(playlists) == 0 {
		return nil, fmt.Errorf("%w: no library playlists", shared.ErrPlaylistNotFound)
	}

	primary := playlists[0]
	y.logger.Debug("using main playlist", "id", primary.PlaylistID, "title", primary.Title, "count", primary.TrackCount())

	var playlist struct {
		Tracks []YouTubeTrack `json:"tracks"`
	}
	endpoint := fmt.Sprintf("/api/playlists/%s?limit=%d", url.PathEscape(primary.PlaylistID), lastN)
	if err := y.proxy.Get(ctx, endpoint, &playlist); err != nil {
		return nil, err
	}

	if lastN > 0 && len(playlist.Tracks) > lastN {
		playlist.Tracks = playlist.Tracks[:lastN]
	}
	return y.convert(playlist.Tracks), nil
}

// Continuation returns the watch playlist for a video. The first entry is the video itself.
//
// Calls GET /api/watch?videoId={id} on the proxy.
func (y *YouTubeService) Continuation(ctx context.Context, videoID string) ([]*models.Track, error) {
	var watch struct {
		Tracks []YouTubeTrack `json:"tracks"`
	}
	endpoint := "/api/watch?videoId=" + url.QueryEscape(videoID)
	if err := y.proxy.Get(ctx, endpoint, &watch); err != nil {
		return nil, err
	}
	return y.convert(watch.Tracks), nil
}

// CreatePlaylist creates a private playlist.
//
// Calls POST /api/playlists on the proxy.
func (y *YouTubeService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	req := struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		PrivacyStatus string `json:"privacy_status"`
	}{Title: name, Description: description, PrivacyStatus: "PRIVATE"}

	var resp struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.proxy.Post(ctx, "/api/playlists", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	if resp.PlaylistID == "" {
		return nil, fmt.Errorf("%w: proxy returned no playlist_id", shared.ErrAPIRequest)
	}

	return &models.Playlist{
		ID:          resp.PlaylistID,
		Name:        name,
		Description: description,
		URL:         models.YouTube.PlaylistURL(resp.PlaylistID),
		Platform:    models.YouTube,
	}, nil
}

// AddItems adds videos to a playlist.
//
// Calls POST /api/playlists/{id}/items on the proxy.
func (y *YouTubeService) AddItems(ctx context.Context, playlistID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	req := struct {
		VideoIDs []string `json:"video_ids"`
	}{VideoIDs: ids}

	endpoint := fmt.Sprintf("/api/playlists/%s/items", url.PathEscape(playlistID))
	if err := y.proxy.Post(ctx, endpoint, req, nil); err != nil {
		return fmt.Errorf("failed to add tracks to playlist: %w", err)
	}
	return nil
}

// convert parses payloads, skipping (and logging) entries that cannot form a track, such as videos without artists.
func (y *YouTubeService) convert(raw []YouTubeTrack) []*models.Track {
	tracks := make([]*models.Track, 0, len(raw))
	for _, r := range raw {
		t, err := r.toTrack()
		if err != nil {
			y.logger.Debug("skipping youtube entry", "title", r.Title, "error", err)
			continue
		}
		t.Explicit = r.IsExplicit
		tracks = append(tracks, t)
	}
	return tracks
}

// parseClock converts "m:ss" or "h:mm:ss" to seconds.
func parseClock(s string) int {
	if s == "" {
		return 0
	}

	total := 0
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}
