package tasks

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
)

const (
	defaultGraphLimit       = 5
	defaultCatalogLimit     = 5
	defaultCatalogChunkSize = 5
	defaultSameArtistMargin = 1
	defaultSameTrackMargin  = 2
)

// Recommender derives new tracks from a set of seeds.
//
// Failures for a single seed or chunk are logged and contribute nothing, so there is no error return.
type Recommender interface {
	// Name identifies the source in logs and progress messages.
	Name() string

	Recommend(ctx context.Context, seeds []*models.Track) []*models.Track
}

// standaloneRecommender is a [Recommender] with a one-seed-per-call mode.
type standaloneRecommender interface {
	Recommender
	WithStandalone(bool) Recommender
}

// GraphWalk follows YouTube Music's "up next" list for every seed.
type GraphWalk struct {
	continuer services.Continuer
	limit     int
	logger    *log.Logger
}

// NewGraphWalk creates a graph-walk recommender taking up to limit tracks per seed.
func NewGraphWalk(c services.Continuer, limit int, logger *log.Logger) *GraphWalk {
	if limit <= 0 {
		limit = defaultGraphLimit
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &GraphWalk{continuer: c, limit: limit, logger: logger}
}

func (g *GraphWalk) Name() string { return "YouTube Music" }

// Recommend takes up to limit entries from the positions following each seed.
//
// Duplicates are only removed within one seed's results; repeats across seeds survive until assembly.
func (g *GraphWalk) Recommend(ctx context.Context, seeds []*models.Track) []*models.Track {
	var out []*models.Track

	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}

		seedID := seed.TrackID(models.YouTube)
		if seedID == "" {
			continue
		}

		entries, err := g.continuer.Continuation(ctx, seedID)
		if err != nil {
			g.logger.Warn("continuation failed", "video", seedID, "title", seed.Title, "error", err)
			continue
		}

		if len(entries) > 0 && entries[0].TrackID(models.YouTube) == seedID {
			entries = entries[1:]
		}
		if len(entries) > g.limit {
			entries = entries[:g.limit]
		}

		seen := map[string]bool{seedID: true}
		for _, e := range entries {
			id := e.TrackID(models.YouTube)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, e)
		}
	}

	return out
}

// Catalog asks Spotify's recommendations endpoint, batching seeds by chunk size.
type Catalog struct {
	catalog    services.CatalogRecommender
	limit      int
	chunkSize  int
	standalone bool
	logger     *log.Logger
}

// NewCatalog creates a catalog recommender. Each call requests limit tracks for up to chunkSize seeds.
func NewCatalog(c services.CatalogRecommender, limit, chunkSize int, standalone bool, logger *log.Logger) *Catalog {
	if limit <= 0 {
		limit = defaultCatalogLimit
	}
	if chunkSize <= 0 || chunkSize > defaultCatalogChunkSize {
		chunkSize = defaultCatalogChunkSize
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Catalog{catalog: c, limit: limit, chunkSize: chunkSize, standalone: standalone, logger: logger}
}

func (c *Catalog) Name() string { return "Spotify" }

// WithStandalone returns a copy that sends one seed per call when standalone is true.
func (c *Catalog) WithStandalone(standalone bool) Recommender {
	cp := *c
	cp.standalone = standalone
	return &cp
}

// ChunkSize is the number of seeds per request, 1 in standalone mode.
func (c *Catalog) ChunkSize() int {
	if c.standalone {
		return 1
	}
	return c.chunkSize
}

// Recommend returns about ceil(seeds/chunk) × limit tracks in request order.
func (c *Catalog) Recommend(ctx context.Context, seeds []*models.Track) []*models.Track {
	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if id := s.TrackID(models.Spotify); id != "" {
			ids = append(ids, id)
		}
	}

	var out []*models.Track
	for _, chunk := range chunk(ids, c.ChunkSize()) {
		if ctx.Err() != nil {
			break
		}

		recs, err := c.catalog.Recommendations(ctx, chunk, c.limit)
		if err != nil {
			c.logger.Warn("recommendations failed", "seeds", chunk, "error", err)
			continue
		}
		out = append(out, recs...)
	}
	return out
}

// Similarity asks Last.fm for similar tracks and caps how many share the seed's artist.
type Similarity struct {
	client           services.SimilarityClient
	sameArtistMargin int
	sameTrackMargin  int
	logger           *log.Logger
}

// NewSimilarity creates a similarity recommender. Negative margins fall back to 1 and 2.
func NewSimilarity(client services.SimilarityClient, sameArtistMargin, sameTrackMargin int, logger *log.Logger) *Similarity {
	if sameArtistMargin < 0 {
		sameArtistMargin = defaultSameArtistMargin
	}
	if sameTrackMargin < 0 {
		sameTrackMargin = defaultSameTrackMargin
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Similarity{
		client:           client,
		sameArtistMargin: sameArtistMargin,
		sameTrackMargin:  sameTrackMargin,
		logger:           logger,
	}
}

func (s *Similarity) Name() string { return "Last.fm" }

// Recommend looks at the first sameTrackMargin+1 similar tracks per seed.
//
// Results by the seed's first artist are kept until more than sameArtistMargin of them
// have been seen. Durations are cleared so resolution takes the first search hit.
func (s *Similarity) Recommend(ctx context.Context, seeds []*models.Track) []*models.Track {
	var out []*models.Track

	for _, seed := range seeds {
		if ctx.Err() != nil {
			break
		}

		similar, err := s.client.Similar(ctx, seed.FirstArtist(), seed.Title)
		if err != nil {
			s.logger.Warn("similar tracks failed", "title", seed.Title, "artist", seed.FirstArtist(), "error", err)
			continue
		}

		sameArtist := 0
		for i, t := range similar {
			if i > s.sameTrackMargin {
				break
			}

			if strings.EqualFold(t.FirstArtist(), seed.FirstArtist()) {
				sameArtist++
				if sameArtist > s.sameArtistMargin {
					continue
				}
			}

			t.ForceUnknownDuration()
			t.MarkAbsent(models.Spotify)
			t.MarkAbsent(models.YouTube)
			out = append(out, t)
		}
	}

	return out
}

// chunk splits ids into consecutive slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
