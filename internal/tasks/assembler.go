package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
)

// PlaylistNameLayout names generated playlists after their creation time, e.g. "07 Mar 21:04".
const PlaylistNameLayout = "02 Jan 15:04"

// DefaultPlaylistDescription is used when no description is configured.
const DefaultPlaylistDescription = "Created by ytmix playlist generator"

// AssembleOptions control one publish.
type AssembleOptions struct {
	Target      models.Platform
	Shuffle     bool
	Description string
	Progress    chan<- ProgressUpdate
}

// AssembleResult is the published playlist and the IDs submitted to it, in submission order.
type AssembleResult struct {
	Playlist *models.Playlist
	TrackIDs []string
	Batches  int
}

// Assembler turns a candidate pool into a published playlist.
type Assembler struct {
	publishers map[models.Platform]services.Publisher
	now        func() time.Time
	shuffle    func([]string)
	logger     *log.Logger
}

// NewAssembler creates an assembler publishing through the given per-platform publishers.
func NewAssembler(publishers map[models.Platform]services.Publisher, logger *log.Logger) *Assembler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Assembler{
		publishers: publishers,
		now:        time.Now,
		shuffle:    shuffleIDs,
		logger:     logger,
	}
}

// Assemble projects pool onto target IDs, dedups and optionally shuffles them, creates a playlist and fills it.
//
// Tracks unresolved on the target are dropped. When nothing survives the projection Assemble
// returns [shared.ErrTrackNotFound] before any playlist is created, rather than publishing an
// empty playlist.
// Items are submitted sequentially in batches of the publisher's BatchSize.
// Create and add failures are returned as is.
func (a *Assembler) Assemble(ctx context.Context, pool []*models.Track, opts AssembleOptions) (*AssembleResult, error) {
	pub, ok := a.publishers[opts.Target]
	if !ok || pub == nil {
		return nil, fmt.Errorf("%w: no publisher for %s", shared.ErrServiceUnavailable, opts.Target.Name())
	}

	ids := ProjectIDs(pool, opts.Target)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no tracks resolved on %s", shared.ErrTrackNotFound, opts.Target.Name())
	}
	if opts.Shuffle {
		a.shuffle(ids)
	}

	description := opts.Description
	if description == "" {
		description = DefaultPlaylistDescription
	}
	name := a.now().Format(PlaylistNameLayout)

	sendProgress(opts.Progress, createPlaylistUpdate(0, 1, name, opts.Target))
	playlist, err := pub.CreatePlaylist(ctx, name, description)
	if err != nil {
		return nil, err
	}
	sendProgress(opts.Progress, playlistCreatedUpdate(1, 1, playlist))
	a.logger.Info("created playlist", "id", playlist.ID, "name", name, "tracks", len(ids))

	batches := Batches(ids, pub.BatchSize())
	for i, batch := range batches {
		sendProgress(opts.Progress, addItemsUpdate(i+1, len(batches), len(batch)))
		if err := pub.AddItems(ctx, playlist.ID, batch); err != nil {
			return nil, err
		}
	}

	if playlist.URL == "" {
		playlist.URL = opts.Target.PlaylistURL(playlist.ID)
	}

	return &AssembleResult{Playlist: playlist, TrackIDs: ids, Batches: len(batches)}, nil
}

// ProjectIDs returns the distinct target IDs of pool. Unresolved tracks are skipped.
func ProjectIDs(pool []*models.Track, target models.Platform) []string {
	seen := make(map[string]struct{}, len(pool))
	ids := make([]string, 0, len(pool))
	for _, t := range pool {
		id := t.TrackID(target)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Batches splits ids into sequential batches of size. A non-positive size yields a single batch.
func Batches(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]string{ids}
	}
	return chunk(ids, size)
}

func shuffleIDs(ids []string) {
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
}
