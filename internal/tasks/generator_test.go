package tasks

import (
	"context"
	"errors"
	"io"
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/services"
	"github.com/desertthunder/ytmix/internal/shared"
	tu "github.com/desertthunder/ytmix/internal/testing"
)

type mockRecorder struct {
	mu       sync.Mutex
	started  []string
	finished map[string]error
	results  map[string]*GenerationResult
	startErr error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{finished: map[string]error{}, results: map[string]*GenerationResult{}}
}

func (m *mockRecorder) Start(ctx context.Context, userID string, target models.Platform, lastN int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return "", m.startErr
	}
	m.started = append(m.started, userID)
	return "run-1", nil
}

func (m *mockRecorder) Finish(ctx context.Context, runID string, result *GenerationResult, runErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[runID] = runErr
	m.results[runID] = result
	return nil
}

type generatorFixture struct {
	spotify  *tu.MockService
	youtube  *tu.MockService
	lock     *tu.MockLock
	recorder *mockRecorder
}

// newGeneratorFixture wires a Spotify-target scenario:
// Spotify seed s1 ("A - One") resolves to v1, YouTube seed v2 ("B - Two") resolves to s2,
// and v1's continuation yields r1 ("C - Rec"), which resolves to sr1.
func newGeneratorFixture(t *testing.T) *generatorFixture {
	t.Helper()

	sp := tu.NewMockService(models.Spotify)
	sp.Batch = 100
	sp.Seeds = []*models.Track{tu.MockTrack(t, models.Spotify, "s1", "One", 200, "A")}
	sp.Search["B Two"] = []*models.Track{tu.MockTrack(t, models.Spotify, "s2", "Two", 181, "B")}
	sp.Search["C Rec"] = []*models.Track{tu.MockTrack(t, models.Spotify, "sr1", "Rec", 210, "C")}

	yt := tu.NewMockService(models.YouTube)
	yt.Seeds = []*models.Track{tu.MockTrack(t, models.YouTube, "v2", "Two", 180, "B")}
	yt.Search["A One"] = []*models.Track{tu.MockTrack(t, models.YouTube, "v1", "One", 199, "A")}
	yt.Continuations["v1"] = []*models.Track{
		tu.MockTrack(t, models.YouTube, "v1", "One", 199, "A"),
		tu.MockTrack(t, models.YouTube, "r1", "Rec", 210, "C"),
	}

	return &generatorFixture{spotify: sp, youtube: yt, lock: tu.NewMockLock(), recorder: newMockRecorder()}
}

func (f *generatorFixture) generator() *Generator {
	return f.generatorWithLock(f.lock)
}

func (f *generatorFixture) generatorWithLock(lock GenerationLock) *Generator {
	logger := shared.NewLogger(io.Discard)
	svcs := []services.Service{f.spotify, f.youtube}

	resolver := NewResolver(svcs, ResolverOptions{}, logger)
	aggregator := NewAggregator(resolver, AggregatorConfig{
		Primary: map[models.Platform]Recommender{
			models.Spotify: NewGraphWalk(f.youtube, 5, logger),
			models.YouTube: NewCatalog(f.spotify, 5, 5, true, logger),
		},
	}, logger)
	assembler := NewAssembler(map[models.Platform]services.Publisher{
		models.Spotify: f.spotify,
		models.YouTube: f.youtube,
	}, logger)

	return NewGenerator(svcs, resolver, aggregator, assembler,
		WithLock(lock),
		WithRecorder(f.recorder),
		WithLogger(logger),
		WithDescription("test mix"),
	)
}

// takeoverLock hands the lock to another holder right after it is acquired.
type takeoverLock struct {
	*tu.MockLock
}

func (l *takeoverLock) Acquire(ctx context.Context, userID string) (string, error) {
	token, err := l.MockLock.Acquire(ctx, userID)
	if err == nil {
		l.MockLock.Hold(userID)
	}
	return token, err
}

func TestGenerator_Generate(t *testing.T) {
	ctx := context.Background()
	req := GenerateRequest{UserID: "u1", Target: models.Spotify, LastN: 10, IncludeOriginals: true}

	t.Run("publishes recommendations and originals", func(t *testing.T) {
		f := newGeneratorFixture(t)

		result, err := f.generator().Generate(ctx, req, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []string{"sr1", "s1", "s2"}
		if !reflect.DeepEqual(result.TrackIDs, want) {
			t.Errorf("expected %v, got %v", want, result.TrackIDs)
		}
		if !reflect.DeepEqual(f.spotify.AddedIDs(), want) {
			t.Errorf("expected added %v, got %v", want, f.spotify.AddedIDs())
		}
		if result.Playlist.URL != "https://open.spotify.com/playlist/mock-playlist" {
			t.Errorf("unexpected url %s", result.Playlist.URL)
		}
		if len(result.Seeds) != 2 || len(result.Recommendations) != 1 {
			t.Errorf("expected 2 seeds and 1 recommendation, got %d/%d", len(result.Seeds), len(result.Recommendations))
		}
		if result.RunID != "run-1" {
			t.Errorf("expected run id, got %q", result.RunID)
		}
		if f.lock.Held("u1") || !slices.Equal(f.lock.Released, []string{"u1"}) {
			t.Error("expected lock to be released")
		}
		if err, ok := f.recorder.finished["run-1"]; !ok || err != nil {
			t.Errorf("expected successful run to be recorded, got %v", err)
		}
	})

	t.Run("without originals", func(t *testing.T) {
		f := newGeneratorFixture(t)

		r := req
		r.IncludeOriginals = false
		result, err := f.generator().Generate(ctx, r, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(result.TrackIDs, []string{"sr1"}) {
			t.Errorf("expected only recommendations, got %v", result.TrackIDs)
		}
	})

	t.Run("youtube target uses the catalog", func(t *testing.T) {
		f := newGeneratorFixture(t)
		f.spotify.Recs["s1"] = []*models.Track{tu.MockTrack(t, models.Spotify, "cat1", "Cat", 150, "D")}
		f.youtube.Search["D Cat"] = []*models.Track{tu.MockTrack(t, models.YouTube, "vcat", "Cat", 151, "D")}

		r := req
		r.Target = models.YouTube
		r.Standalone = true
		r.IncludeOriginals = false

		result, err := f.generator().Generate(ctx, r, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(result.TrackIDs, []string{"vcat"}) {
			t.Errorf("expected [vcat], got %v", result.TrackIDs)
		}
		for _, call := range f.spotify.RecCalls {
			if len(call) != 1 {
				t.Errorf("expected standalone calls, got %v", call)
			}
		}
	})

	t.Run("generation in progress", func(t *testing.T) {
		f := newGeneratorFixture(t)
		f.lock.Hold("u1")

		_, err := f.generator().Generate(ctx, req, nil)
		if !errors.Is(err, shared.ErrGenerationInProgress) {
			t.Fatalf("expected ErrGenerationInProgress, got %v", err)
		}
		if len(f.spotify.Created) != 0 || len(f.recorder.started) != 0 {
			t.Error("expected nothing to run")
		}
		if !f.lock.Held("u1") {
			t.Error("expected the existing lock to stay held")
		}
	})

	t.Run("late release leaves a taken over lock alone", func(t *testing.T) {
		f := newGeneratorFixture(t)
		if _, err := f.generatorWithLock(&takeoverLock{MockLock: f.lock}).Generate(ctx, req, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !f.lock.Held("u1") {
			t.Error("expected the new holder to keep the lock")
		}
		if len(f.lock.Released) != 0 {
			t.Errorf("expected no release, got %v", f.lock.Released)
		}
	})

	t.Run("target seed failure is fatal and releases the lock", func(t *testing.T) {
		f := newGeneratorFixture(t)
		f.spotify.SeedsErr = shared.ErrTokenExpired

		_, err := f.generator().Generate(ctx, req, nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Fatalf("expected ErrTokenExpired, got %v", err)
		}
		if f.lock.Held("u1") {
			t.Error("expected lock to be released")
		}
		if runErr := f.recorder.finished["run-1"]; !errors.Is(runErr, shared.ErrTokenExpired) {
			t.Errorf("expected failure to be recorded, got %v", runErr)
		}
	})

	t.Run("other seed failure is absorbed", func(t *testing.T) {
		f := newGeneratorFixture(t)
		f.youtube.SeedsErr = shared.ErrNotAuthenticated

		result, err := f.generator().Generate(ctx, req, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(result.Seeds) != 1 {
			t.Errorf("expected only target seeds, got %d", len(result.Seeds))
		}
	})

	t.Run("publish failure propagates and releases the lock", func(t *testing.T) {
		f := newGeneratorFixture(t)
		f.spotify.AddErr = shared.ErrAPIRequest

		_, err := f.generator().Generate(ctx, req, nil)
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected ErrAPIRequest, got %v", err)
		}
		if f.lock.Held("u1") {
			t.Error("expected lock to be released")
		}
	})

	t.Run("no seeds", func(t *testing.T) {
		f := newGeneratorFixture(t)
		f.spotify.Seeds = nil
		f.youtube.Seeds = nil

		if _, err := f.generator().Generate(ctx, req, nil); !errors.Is(err, shared.ErrNoSeedTracks) {
			t.Errorf("expected ErrNoSeedTracks, got %v", err)
		}
	})

	t.Run("invalid requests", func(t *testing.T) {
		f := newGeneratorFixture(t)
		g := NewGenerator([]services.Service{f.youtube}, nil, nil, nil, WithLock(f.lock))

		if _, err := g.Generate(ctx, req, nil); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}

		r := req
		r.LastN = 0
		if _, err := f.generator().Generate(ctx, r, nil); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if len(f.lock.Acquired) != 0 {
			t.Error("expected lock not to be taken for invalid requests")
		}
	})

	t.Run("recorder failures do not fail the run", func(t *testing.T) {
		f := newGeneratorFixture(t)
		f.recorder.startErr = errors.New("disk full")

		result, err := f.generator().Generate(ctx, req, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.RunID != "" {
			t.Errorf("expected empty run id, got %q", result.RunID)
		}
	})

	t.Run("progress ends with done", func(t *testing.T) {
		f := newGeneratorFixture(t)
		progress := make(chan ProgressUpdate, 100)

		result, err := f.generator().Generate(ctx, req, progress)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		close(progress)

		var last ProgressUpdate
		phases := map[Phase]bool{}
		for u := range progress {
			phases[u.Phase] = true
			last = u
		}

		if last.Phase != Done || last.Data != result {
			t.Errorf("expected final done update with result, got %+v", last)
		}
		for _, p := range []Phase{FetchSeeds, ResolveSeeds, Recommend, ResolveRecommendations, CreatePlaylist, AddItems} {
			if !phases[p] {
				t.Errorf("expected a %s update", p)
			}
		}
	})

	t.Run("full progress channel does not block", func(t *testing.T) {
		f := newGeneratorFixture(t)
		progress := make(chan ProgressUpdate)

		if _, err := f.generator().Generate(ctx, req, progress); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})
}
