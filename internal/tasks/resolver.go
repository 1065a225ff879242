package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
)

const (
	defaultSearchLimit    = 5
	defaultDurationWindow = 5
)

// ResolverOptions tunes candidate search.
type ResolverOptions struct {
	SearchLimit    int // K, the number of search results considered
	DurationWindow int // seconds either side of the known duration that count as a match
}

// Resolver finds a track's counterpart on another service by searching its catalog.
type Resolver struct {
	services map[models.Platform]services.Service
	limit    int
	window   int
	logger   *log.Logger
}

// NewResolver creates a resolver over the given services. Zero options use K=5 and a 5 second window.
func NewResolver(svcs []services.Service, opts ResolverOptions, logger *log.Logger) *Resolver {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = defaultSearchLimit
	}
	if opts.DurationWindow <= 0 {
		opts.DurationWindow = defaultDurationWindow
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	byPlatform := make(map[models.Platform]services.Service, len(svcs))
	for _, svc := range svcs {
		if svc != nil {
			byPlatform[svc.Platform()] = svc
		}
	}

	return &Resolver{
		services: byPlatform,
		limit:    opts.SearchLimit,
		window:   opts.DurationWindow,
		logger:   logger,
	}
}

// Supports reports whether target can be searched.
func (r *Resolver) Supports(target models.Platform) bool {
	_, ok := r.services[target]
	return ok
}

// SearchQuery builds the catalog query for t. When an artist name already appears in the
// title (e.g. "Artist - Song" uploads) the title alone is used.
func SearchQuery(t *models.Track) string {
	for _, artist := range t.Artists {
		if artist != "" && strings.Contains(t.Title, artist) {
			return t.Title
		}
	}
	return t.ArtistName() + " " + t.Title
}

// Resolve searches target for the best counterpart of track and returns it, or nil when no candidate matches.
//
// Candidates within the duration window match. On Spotify the first explicit match wins and
// the first clean match is kept as a fallback. Elsewhere the first match wins. A track with no
// known duration takes the first candidate.
func (r *Resolver) Resolve(ctx context.Context, track *models.Track, target models.Platform) (*models.Track, error) {
	svc, ok := r.services[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", shared.ErrServiceUnavailable, target.Name())
	}

	candidates, err := svc.SearchTracks(ctx, SearchQuery(track), r.limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) > r.limit {
		candidates = candidates[:r.limit]
	}

	var fallback *models.Track
	for _, c := range candidates {
		if !c.IsResolved(target) {
			continue
		}
		if !track.HasDuration() {
			return c, nil
		}
		if !r.inWindow(track.Duration, c.Duration) {
			continue
		}
		if target != models.Spotify || c.Explicit {
			return c, nil
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback, nil
}

func (r *Resolver) inWindow(want, got int) bool {
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	return diff <= r.window
}

// Fill resolves the target identity of every track that lacks one and returns how many were resolved.
//
// Misses and search failures are logged and leave the track as it was. Only the target identity is written.
func (r *Resolver) Fill(ctx context.Context, tracks []*models.Track, target models.Platform, progress chan<- ProgressUpdate, phase Phase) int {
	if !r.Supports(target) {
		r.logger.Debug("skipping resolution, service not configured", "service", target.Name(), "tracks", len(tracks))
		return 0
	}

	total := len(tracks)
	sendProgress(progress, resolveUpdate(phase, 0, total, nil, target))

	resolved := 0
	for i, t := range tracks {
		if ctx.Err() != nil {
			break
		}
		if t.IsResolved(target) {
			continue
		}

		sendProgress(progress, resolveUpdate(phase, i+1, total, t, target))

		match, err := r.Resolve(ctx, t, target)
		if err != nil {
			r.logger.Warn("search failed", "title", t.Title, "artist", t.ArtistName(), "service", target.Name(), "error", err)
			continue
		}
		if match == nil {
			r.logger.Warn("track not found", "title", t.Title, "artist", t.ArtistName(), "service", target.Name())
			continue
		}

		id := match.Identity(target)
		t.SetIdentity(target, id.TrackID, id.ArtistIDs)
		resolved++
	}
	return resolved
}
