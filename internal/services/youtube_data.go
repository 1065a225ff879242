// YouTube Data API v3 [Publisher]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const youtubeDataBatchSize = 50

// YouTubeDataPublisher publishes playlists through the YouTube Data API instead of the ytmusicapi proxy.
type YouTubeDataPublisher struct {
	svc    *youtube.Service
	logger *log.Logger
}

// NewYouTubeDataPublisher authenticates with a stored refresh token. Extra client options are appended after the HTTP client.
func NewYouTubeDataPublisher(ctx context.Context, cfg shared.YouTubeConfig, logger *log.Logger, opts ...option.ClientOption) (*YouTubeDataPublisher, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("%w: youtube client_id, client_secret and refresh_token are required for the data_api publisher", shared.ErrMissingCredentials)
	}

	client := YouTubeOAuthConfig(cfg, "").Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := youtube.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return newYouTubeDataPublisher(svc, logger), nil
}

// YouTubeOAuthConfig returns the Google OAuth2 configuration for playlist management.
func YouTubeOAuthConfig(cfg shared.YouTubeConfig, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeScope},
	}
}

func newYouTubeDataPublisher(svc *youtube.Service, logger *log.Logger) *YouTubeDataPublisher {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YouTubeDataPublisher{svc: svc, logger: logger}
}

// BatchSize bounds how many items one AddItems call inserts; the API itself takes one item per request.
func (p *YouTubeDataPublisher) BatchSize() int { return youtubeDataBatchSize }

// CreatePlaylist inserts a private playlist.
func (p *YouTubeDataPublisher) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	pl := &youtube.Playlist{
		Snippet: &youtube.PlaylistSnippet{Title: name, Description: description},
		Status:  &youtube.PlaylistStatus{PrivacyStatus: "private"},
	}

	created, err := p.svc.Playlists.Insert([]string{"snippet", "status"}, pl).Context(ctx).Do()
	if err != nil {
		return nil, wrapGoogleError("create playlist", err)
	}

	return &models.Playlist{
		ID:          created.Id,
		Name:        name,
		Description: description,
		URL:         models.YouTube.PlaylistURL(created.Id),
		Platform:    models.YouTube,
	}, nil
}

// AddItems inserts each video in order.
func (p *YouTubeDataPublisher) AddItems(ctx context.Context, playlistID string, ids []string) error {
	for _, id := range ids {
		item := &youtube.PlaylistItem{
			Snippet: &youtube.PlaylistItemSnippet{
				PlaylistId: playlistID,
				ResourceId: &youtube.ResourceId{Kind: "youtube#video", VideoId: id},
			},
		}

		if _, err := p.svc.PlaylistItems.Insert([]string{"snippet"}, item).Context(ctx).Do(); err != nil {
			return wrapGoogleError("add video "+id, err)
		}
		p.logger.Debug("added video", "playlist", playlistID, "video", id)
	}
	return nil
}

func wrapGoogleError(op string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: youtube %s: %s", shared.ErrTokenExpired, op, gErr.Message)
	}
	return fmt.Errorf("%w: youtube %s: %v", shared.ErrAPIRequest, op, err)
}
