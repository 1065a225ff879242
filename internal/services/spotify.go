// Spotify API implementation of [Service] and [CatalogRecommender]
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	spotifyBatchSize    = 100
	spotifyMaxPageLimit = 50
)

// spotifyScopes are the scopes needed to read saved tracks and write private playlists.
var spotifyScopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistModifyPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
}

// SpotifyService implements [Service] and [CatalogRecommender] on top of [spotify.Client].
type SpotifyService struct {
	config     *oauth2.Config
	client     *spotify.Client
	clientOpts []spotify.ClientOption
	onRefresh  func(*oauth2.Token)
	logger     *log.Logger

	mu     sync.Mutex
	userID string
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL points the client at a different API root (used by tests).
func WithSpotifyBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) {
		s.clientOpts = append(s.clientOpts, spotify.WithBaseURL(baseURL))
	}
}

// WithTokenRefresh registers fn to be called whenever the access token is refreshed.
func WithTokenRefresh(fn func(*oauth2.Token)) SpotifyOption {
	return func(s *SpotifyService) { s.onRefresh = fn }
}

// WithSpotifyLogger sets the logger.
func WithSpotifyLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = l }
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, opts ...SpotifyOption) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       spotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		clientOpts: []spotify.ClientOption{spotify.WithRetry(true)},
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = shared.NewLogger(nil)
	}

	return s, nil
}

// OAuthConfig returns the OAuth2 configuration used for the authorization code flow.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// AuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Authenticate builds an API client from a stored token. Expired access tokens are refreshed on demand.
func (s *SpotifyService) Authenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: run `ytmix auth spotify` first", shared.ErrNotAuthenticated)
	}

	src := &notifyingTokenSource{
		src:    s.config.TokenSource(ctx, token),
		last:   token.AccessToken,
		notify: s.onRefresh,
	}
	s.client = spotify.New(oauth2.NewClient(ctx, src), s.clientOpts...)
	return nil
}

// Authenticated reports whether [SpotifyService.Authenticate] has succeeded.
func (s *SpotifyService) Authenticated() bool {
	return s.client != nil
}

func (s *SpotifyService) Platform() models.Platform { return models.Spotify }

func (s *SpotifyService) Name() string {
	return models.Spotify.Name()
}

// BatchSize is the maximum number of tracks per add-items request.
func (s *SpotifyService) BatchSize() int { return spotifyBatchSize }

// SearchTracks searches the catalog for tracks.
func (s *SpotifyService) SearchTracks(ctx context.Context, query string, limit int) ([]*models.Track, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	results, err := s.client.Search(ctx, query, spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, s.wrap("search", err)
	}
	if results.Tracks == nil {
		return nil, nil
	}

	tracks := make([]*models.Track, 0, len(results.Tracks.Tracks))
	for _, ft := range results.Tracks.Tracks {
		if t := s.convert(ft.SimpleTrack); t != nil {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// SeedTracks returns the lastN most recently saved tracks.
func (s *SpotifyService) SeedTracks(ctx context.Context, lastN int) ([]*models.Track, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	limit := min(max(lastN, 1), spotifyMaxPageLimit)
	page, err := s.client.CurrentUsersTracks(ctx, spotify.Limit(limit))
	if err != nil {
		return nil, s.wrap("saved tracks", err)
	}

	tracks := make([]*models.Track, 0, len(page.Tracks))
	for _, saved := range page.Tracks {
		if t := s.convert(saved.SimpleTrack); t != nil {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// Recommendations returns up to limit tracks recommended for the given seed track IDs (at most 5 seeds).
func (s *SpotifyService) Recommendations(ctx context.Context, seedIDs []string, limit int) ([]*models.Track, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	ids := make([]spotify.ID, len(seedIDs))
	for i, id := range seedIDs {
		ids[i] = spotify.ID(id)
	}

	recs, err := s.client.GetRecommendations(ctx, spotify.Seeds{Tracks: ids}, nil, spotify.Limit(limit))
	if err != nil {
		return nil, s.wrap("recommendations", err)
	}

	tracks := make([]*models.Track, 0, len(recs.Tracks))
	for _, st := range recs.Tracks {
		if t := s.convert(st); t != nil {
			tracks = append(tracks, t)
		}
	}
	return tracks, nil
}

// CreatePlaylist creates a private playlist owned by the current user.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	pl, err := s.client.CreatePlaylistForUser(ctx, userID, name, description, false, false)
	if err != nil {
		return nil, s.wrap("create playlist", err)
	}

	id := string(pl.ID)
	return &models.Playlist{
		ID:          id,
		Name:        name,
		Description: description,
		URL:         models.Spotify.PlaylistURL(id),
		Platform:    models.Spotify,
	}, nil
}

// AddItems appends up to [spotifyBatchSize] tracks to a playlist.
func (s *SpotifyService) AddItems(ctx context.Context, playlistID string, ids []string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > spotifyBatchSize {
		return fmt.Errorf("%w: at most %d tracks per request, got %d", shared.ErrInvalidArgument, spotifyBatchSize, len(ids))
	}

	trackIDs := make([]spotify.ID, len(ids))
	for i, id := range ids {
		trackIDs[i] = spotify.ID(id)
	}

	if _, err := s.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), trackIDs...); err != nil {
		return s.wrap("add tracks", err)
	}
	return nil
}

func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID != "" {
		return s.userID, nil
	}

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return "", s.wrap("current user", err)
	}
	s.userID = user.ID
	return s.userID, nil
}

func (s *SpotifyService) ready() error {
	if s.client == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}
	return nil
}

// wrap maps client errors onto shared sentinels. 401s and failed refreshes become [shared.ErrTokenExpired].
func (s *SpotifyService) wrap(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s: %s", shared.ErrTokenExpired, op, apiErr.Message)
		}
		return fmt.Errorf("%w: spotify %s: status %d: %s", shared.ErrAPIRequest, op, apiErr.Status, apiErr.Message)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %s: %v", shared.ErrTokenExpired, op, retrieveErr)
	}

	return fmt.Errorf("%w: spotify %s: %v", shared.ErrAPIRequest, op, err)
}

func (s *SpotifyService) convert(st spotify.SimpleTrack) *models.Track {
	t, err := spotifyTrack(st)
	if err != nil {
		s.logger.Debug("skipping spotify entry", "id", st.ID, "error", err)
		return nil
	}
	return t
}

// spotifyTrack converts a catalog track into a Spotify-only [models.Track].
func spotifyTrack(st spotify.SimpleTrack) (*models.Track, error) {
	names := make([]string, 0, len(st.Artists))
	ids := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		names = append(names, a.Name)
		ids = append(ids, string(a.ID))
	}

	t, err := models.NewTrack(st.Name, names, int(st.Duration))
	if err != nil {
		return nil, err
	}
	t.Explicit = st.Explicit
	t.SetIdentity(models.Spotify, string(st.ID), ids)
	t.MarkAbsent(models.YouTube)
	return t, nil
}

// notifyingTokenSource reports every new access token handed out by src.
type notifyingTokenSource struct {
	mu     sync.Mutex
	src    oauth2.TokenSource
	last   string
	notify func(*oauth2.Token)
}

func (n *notifyingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := n.src.Token()
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if tok.AccessToken != n.last {
		n.last = tok.AccessToken
		if n.notify != nil {
			n.notify(tok)
		}
	}
	return tok, nil
}
