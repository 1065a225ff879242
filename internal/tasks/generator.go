package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
	"golang.org/x/sync/errgroup"
)

// GenerationLock guards against concurrent generations for one user.
//
// Acquire returns [shared.ErrGenerationInProgress] when a generation is already running, otherwise
// a token naming this holder. Release with a token that no longer holds the lock (it was taken
// over as stale) leaves the current holder alone and returns [shared.ErrLockNotHeld].
type GenerationLock interface {
	Acquire(ctx context.Context, userID string) (token string, err error)
	Release(ctx context.Context, userID, token string) error
}

// RunRecorder keeps a history of generation outcomes.
type RunRecorder interface {
	Start(ctx context.Context, userID string, target models.Platform, lastN int) (runID string, err error)
	Finish(ctx context.Context, runID string, result *GenerationResult, runErr error) error
}

// GenerateRequest asks for a playlist on Target built from the LastN most recent tracks.
type GenerateRequest struct {
	UserID           string
	Target           models.Platform
	LastN            int
	Shuffle          bool
	IncludeOriginals bool
	Standalone       bool
}

// GenerationResult describes a published playlist.
type GenerationResult struct {
	RunID           string           `json:"run_id,omitempty"`
	Target          models.Platform  `json:"target"`
	Playlist        *models.Playlist `json:"playlist"`
	Seeds           []*models.Track  `json:"seeds"`
	Recommendations []*models.Track  `json:"recommendations"`
	TrackIDs        []string         `json:"track_ids"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     time.Time        `json:"completed_at"`
}

// Elapsed returns how long the generation took.
func (r *GenerationResult) Elapsed() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Generator runs the whole pipeline: seeds, cross-resolution, recommendations, publish.
type Generator struct {
	services    map[models.Platform]services.Service
	resolver    *Resolver
	aggregator  *Aggregator
	assembler   *Assembler
	lock        GenerationLock
	recorder    RunRecorder
	description string
	logger      *log.Logger
	now         func() time.Time
}

// GeneratorOption configures a [Generator].
type GeneratorOption func(*Generator)

// WithLock makes every run hold lock for its user.
func WithLock(lock GenerationLock) GeneratorOption {
	return func(g *Generator) { g.lock = lock }
}

// WithRecorder records run outcomes.
func WithRecorder(r RunRecorder) GeneratorOption {
	return func(g *Generator) { g.recorder = r }
}

// WithDescription sets the playlist description.
func WithDescription(d string) GeneratorOption {
	return func(g *Generator) { g.description = d }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator wires a generator. svcs are the authorized services; the target of a request must be among them.
func NewGenerator(svcs []services.Service, resolver *Resolver, aggregator *Aggregator, assembler *Assembler, opts ...GeneratorOption) *Generator {
	byPlatform := make(map[models.Platform]services.Service, len(svcs))
	for _, svc := range svcs {
		if svc != nil {
			byPlatform[svc.Platform()] = svc
		}
	}

	g := &Generator{
		services:   byPlatform,
		resolver:   resolver,
		aggregator: aggregator,
		assembler:  assembler,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = shared.NewLogger(nil)
	}
	return g
}

// Generate builds and publishes a playlist for req.
//
// The user's lock is held for the whole run and released on every path. Seeds from the other
// service are best-effort; everything up to publishing absorbs per-track failures.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest, progress chan<- ProgressUpdate) (result *GenerationResult, err error) {
	targetSvc, ok := g.services[req.Target]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not configured", shared.ErrServiceUnavailable, req.Target.Name())
	}
	if req.LastN <= 0 {
		return nil, fmt.Errorf("%w: last N must be positive, got %d", shared.ErrInvalidArgument, req.LastN)
	}

	if g.lock != nil {
		token, err := g.lock.Acquire(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		defer func() {
			// Release even when ctx is cancelled.
			if relErr := g.lock.Release(context.WithoutCancel(ctx), req.UserID, token); relErr != nil {
				g.logger.Error("failed to release generation lock", "user", req.UserID, "error", relErr)
			}
		}()
	}

	startedAt := g.now()
	runID := g.startRun(ctx, req)
	defer func() { g.finishRun(ctx, runID, result, err) }()

	g.logger.Info("generating playlist", "user", req.UserID, "target", req.Target, "last", req.LastN)

	other := req.Target.Other()
	targetSeeds, otherSeeds, err := g.fetchSeeds(ctx, targetSvc, g.services[other], req.LastN, progress)
	if err != nil {
		return nil, err
	}
	if len(targetSeeds)+len(otherSeeds) == 0 {
		return nil, shared.ErrNoSeedTracks
	}

	g.resolver.Fill(ctx, targetSeeds, other, progress, ResolveSeeds)
	g.resolver.Fill(ctx, otherSeeds, req.Target, progress, ResolveSeeds)

	seeds := make([]*models.Track, 0, len(targetSeeds)+len(otherSeeds))
	seeds = append(append(seeds, targetSeeds...), otherSeeds...)
	recs := g.aggregator.Aggregate(ctx, req.Target, seeds, AggregateOptions{
		Standalone: req.Standalone,
		Progress:   progress,
	})

	pool := recs
	if req.IncludeOriginals {
		pool = append(append([]*models.Track{}, recs...), seeds...)
	}

	assembled, err := g.assembler.Assemble(ctx, pool, AssembleOptions{
		Target:      req.Target,
		Shuffle:     req.Shuffle,
		Description: g.description,
		Progress:    progress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish playlist: %w", err)
	}

	result = &GenerationResult{
		RunID:           runID,
		Target:          req.Target,
		Playlist:        assembled.Playlist,
		Seeds:           seeds,
		Recommendations: recs,
		TrackIDs:        assembled.TrackIDs,
		StartedAt:       startedAt,
		CompletedAt:     g.now(),
	}

	sendProgress(progress, doneUpdate(result))
	g.logger.Info("playlist ready", "url", result.Playlist.URL, "tracks", len(result.TrackIDs), "elapsed", result.Elapsed())

	return result, nil
}

// fetchSeeds reads both services concurrently. A failure on the target is fatal; the other service is optional.
func (g *Generator) fetchSeeds(ctx context.Context, target, other services.Service, lastN int, progress chan<- ProgressUpdate) (targetSeeds, otherSeeds []*models.Track, err error) {
	total := 1
	if other != nil {
		total = 2
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		sendProgress(progress, fetchSeedsUpdate(0, total, target.Platform()))
		tracks, err := target.SeedTracks(egCtx, lastN)
		if err != nil {
			return fmt.Errorf("failed to fetch %s seeds: %w", target.Name(), err)
		}
		targetSeeds = tracks
		sendProgress(progress, fetchedSeedsUpdate(1, total, target.Platform(), len(tracks)))
		return nil
	})

	if other != nil {
		eg.Go(func() error {
			tracks, err := other.SeedTracks(egCtx, lastN)
			if err != nil {
				g.logger.Warn("skipping seeds", "service", other.Name(), "error", err)
				return nil
			}
			otherSeeds = tracks
			sendProgress(progress, fetchedSeedsUpdate(2, total, other.Platform(), len(tracks)))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return targetSeeds, otherSeeds, nil
}

func (g *Generator) startRun(ctx context.Context, req GenerateRequest) string {
	if g.recorder == nil {
		return ""
	}
	runID, err := g.recorder.Start(ctx, req.UserID, req.Target, req.LastN)
	if err != nil {
		g.logger.Warn("failed to record run start", "user", req.UserID, "error", err)
		return ""
	}
	return runID
}

func (g *Generator) finishRun(ctx context.Context, runID string, result *GenerationResult, runErr error) {
	if g.recorder == nil || runID == "" {
		return
	}
	if err := g.recorder.Finish(context.WithoutCancel(ctx), runID, result, runErr); err != nil {
		g.logger.Warn("failed to record run outcome", "run", runID, "error", err)
	}
}
