package tasks

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
)

// AggregatorConfig selects recommenders per target service.
//
// Primary maps a target to the recommender run first over the seeds: graph-walk for Spotify
// playlists and catalog recommendations for YouTube Music playlists. Similarity may be nil.
type AggregatorConfig struct {
	Primary        map[models.Platform]Recommender
	Similarity     Recommender
	BlockedArtists []string
}

// AggregateOptions are per-run switches.
type AggregateOptions struct {
	Standalone bool
	Progress   chan<- ProgressUpdate
}

// Aggregator merges recommender output into one cross-resolved candidate pool.
type Aggregator struct {
	resolver   *Resolver
	primary    map[models.Platform]Recommender
	similarity Recommender
	blocked    map[string]bool
	logger     *log.Logger
}

// NewAggregator creates an aggregator that resolves results through resolver.
func NewAggregator(resolver *Resolver, cfg AggregatorConfig, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	blocked := make(map[string]bool, len(cfg.BlockedArtists))
	for _, a := range cfg.BlockedArtists {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			blocked[a] = true
		}
	}

	primary := make(map[models.Platform]Recommender, len(cfg.Primary))
	for p, r := range cfg.Primary {
		if r != nil {
			primary[p] = r
		}
	}

	return &Aggregator{
		resolver:   resolver,
		primary:    primary,
		similarity: cfg.Similarity,
		blocked:    blocked,
		logger:     logger,
	}
}

// Aggregate produces recommendations for a playlist on target.
//
// The primary recommender for target runs over seeds, then the similarity recommender runs
// over those results (or over seeds when there are none). Blocked artists are dropped and the
// rest get their target identity resolved. Results keep recommender order.
func (a *Aggregator) Aggregate(ctx context.Context, target models.Platform, seeds []*models.Track, opts AggregateOptions) []*models.Track {
	var recs []*models.Track
	step, total := 0, a.sourceCount(target)

	if primary, ok := a.primary[target]; ok {
		if sr, ok := primary.(standaloneRecommender); ok {
			primary = sr.WithStandalone(opts.Standalone)
		}

		step++
		sendProgress(opts.Progress, recommendUpdate(step, total, primary.Name()))
		recs = primary.Recommend(ctx, seeds)
		sendProgress(opts.Progress, recommendedUpdate(step, total, primary.Name(), len(recs)))
		a.logger.Info("collected recommendations", "source", primary.Name(), "count", len(recs))
	}

	if a.similarity != nil {
		pool := recs
		if len(pool) == 0 {
			pool = seeds
		}

		step++
		sendProgress(opts.Progress, recommendUpdate(step, total, a.similarity.Name()))
		similar := a.similarity.Recommend(ctx, pool)
		sendProgress(opts.Progress, recommendedUpdate(step, total, a.similarity.Name(), len(similar)))
		a.logger.Info("collected recommendations", "source", a.similarity.Name(), "count", len(similar))

		recs = append(recs, similar...)
	}

	recs = a.filterBlocked(recs)
	resolved := a.resolver.Fill(ctx, recs, target, opts.Progress, ResolveRecommendations)
	a.logger.Info("resolved recommendations", "service", target.Name(), "resolved", resolved, "total", len(recs))

	return recs
}

func (a *Aggregator) sourceCount(target models.Platform) int {
	n := 0
	if _, ok := a.primary[target]; ok {
		n++
	}
	if a.similarity != nil {
		n++
	}
	return n
}

// filterBlocked drops tracks whose first artist is blocked, case-insensitively.
func (a *Aggregator) filterBlocked(tracks []*models.Track) []*models.Track {
	if len(a.blocked) == 0 {
		return tracks
	}

	kept := tracks[:0:0]
	for _, t := range tracks {
		if a.blocked[strings.ToLower(t.FirstArtist())] {
			a.logger.Debug("dropping blocked artist", "artist", t.FirstArtist(), "title", t.Title)
			continue
		}
		kept = append(kept, t)
	}
	return kept
}
