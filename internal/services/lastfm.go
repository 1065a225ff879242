// Last.fm track.getsimilar client
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultLastFMURL     = "https://ws.audioscrobbler.com/2.0/"
	defaultLastFMTimeout = 3 * time.Second
	defaultSimilarLimit  = 5
)

// LastFMError is the error document Last.fm returns with HTTP 200 or 4xx.
type LastFMError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *LastFMError) Error() string {
	return fmt.Sprintf("last.fm error %d: %s", e.Code, e.Message)
}

func (e *LastFMError) Unwrap() error { return shared.ErrAPIRequest }

// lastFMSimilarTrack is one entry of similartracks.track. Its duration is unreliable and is not decoded.
type lastFMSimilarTrack struct {
	Name   string          `json:"name"`
	Artist lastFMArtistRef `json:"artist"`
}

type lastFMArtistRef struct {
	Name string `json:"name"`
}

type lastFMSimilarResponse struct {
	Error        *int   `json:"error"`
	Message      string `json:"message"`
	SimilarTrack struct {
		Track []lastFMSimilarTrack `json:"track"`
	} `json:"similartracks"`
}

// LastFMService implements [SimilarityClient] against the Last.fm web service.
type LastFMService struct {
	apiKey     string
	baseURL    string
	limit      int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewLastFMService creates a Last.fm client from config. The HTTP client timeout defaults to 3 seconds.
//
// similarLimit is how many similar tracks each lookup asks for; non-positive means 5.
func NewLastFMService(cfg shared.LastFMConfig, similarLimit int, logger *log.Logger) (*LastFMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: lastfm api_key is required", shared.ErrMissingCredentials)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultLastFMURL
	}

	timeout := defaultLastFMTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	if similarLimit <= 0 {
		similarLimit = defaultSimilarLimit
	}

	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &LastFMService{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		limit:      similarLimit,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}, nil
}

func (l *LastFMService) Name() string { return "Last.fm" }

// Similar calls track.getsimilar for (artist, title).
//
// Returned tracks carry no duration and have both identities marked absent.
func (l *LastFMService) Similar(ctx context.Context, artist, title string) ([]*models.Track, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("method", "track.getsimilar")
	q.Set("artist", artist)
	q.Set("track", title)
	q.Set("api_key", l.apiKey)
	q.Set("format", "json")
	q.Set("limit", strconv.Itoa(l.limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	var body lastFMSimilarResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: last.fm status %d", shared.ErrAPIRequest, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if body.Error != nil {
		return nil, &LastFMError{Code: *body.Error, Message: body.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: last.fm status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	tracks := make([]*models.Track, 0, len(body.SimilarTrack.Track))
	for _, st := range body.SimilarTrack.Track {
		t, err := models.NewTrack(st.Name, []string{st.Artist.Name}, 0)
		if err != nil {
			l.logger.Debug("skipping last.fm entry", "name", st.Name, "error", err)
			continue
		}
		t.MarkAbsent(models.Spotify)
		t.MarkAbsent(models.YouTube)
		tracks = append(tracks, t)
	}
	return tracks, nil
}
