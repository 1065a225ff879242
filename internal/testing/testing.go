// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
)

// MockService is a test double for [services.Service], [services.CatalogRecommender] and [services.Continuer].
//
// Lookups return copies so callers may mutate results freely. Calls are recorded.
type MockService struct {
	PlatformValue models.Platform
	Batch         int

	Search        map[string][]*models.Track // keyed by query
	Seeds         []*models.Track
	Recs          map[string][]*models.Track // keyed by comma-joined seed IDs
	Continuations map[string][]*models.Track // keyed by track ID
	PlaylistID    string

	SearchErr   error
	SeedsErr    error
	RecsErr     error
	ContinueErr error
	CreateErr   error
	AddErr      error

	mu        sync.Mutex
	Queries   []string
	RecCalls  [][]string
	Continued []string
	Created   []string
	Added     [][]string
}

// NewMockService creates an empty mock for p.
func NewMockService(p models.Platform) *MockService {
	return &MockService{
		PlatformValue: p,
		Search:        map[string][]*models.Track{},
		Recs:          map[string][]*models.Track{},
		Continuations: map[string][]*models.Track{},
		PlaylistID:    "mock-playlist",
	}
}

func (m *MockService) Platform() models.Platform { return m.PlatformValue }
func (m *MockService) Name() string              { return m.PlatformValue.Name() }
func (m *MockService) BatchSize() int            { return m.Batch }

func (m *MockService) SearchTracks(ctx context.Context, query string, limit int) ([]*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	results := m.Search[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return CloneTracks(results), nil
}

func (m *MockService) SeedTracks(ctx context.Context, lastN int) ([]*models.Track, error) {
	if m.SeedsErr != nil {
		return nil, m.SeedsErr
	}
	seeds := m.Seeds
	if lastN > 0 && len(seeds) > lastN {
		seeds = seeds[:lastN]
	}
	return CloneTracks(seeds), nil
}

func (m *MockService) Recommendations(ctx context.Context, seedIDs []string, limit int) ([]*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecCalls = append(m.RecCalls, append([]string(nil), seedIDs...))
	if m.RecsErr != nil {
		return nil, m.RecsErr
	}
	recs := m.Recs[strings.Join(seedIDs, ",")]
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return CloneTracks(recs), nil
}

func (m *MockService) Continuation(ctx context.Context, trackID string) ([]*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Continued = append(m.Continued, trackID)
	if m.ContinueErr != nil {
		return nil, m.ContinueErr
	}
	return CloneTracks(m.Continuations[trackID]), nil
}

func (m *MockService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, name)
	return &models.Playlist{
		ID:          m.PlaylistID,
		Name:        name,
		Description: description,
		URL:         m.PlatformValue.PlaylistURL(m.PlaylistID),
		Platform:    m.PlatformValue,
	}, nil
}

func (m *MockService) AddItems(ctx context.Context, playlistID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Added = append(m.Added, append([]string(nil), ids...))
	return nil
}

// AddedIDs flattens every AddItems batch.
func (m *MockService) AddedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, batch := range m.Added {
		ids = append(ids, batch...)
	}
	return ids
}

// MockSimilarity is a test double for [services.SimilarityClient] keyed by "artist|title".
type MockSimilarity struct {
	Results map[string][]*models.Track
	Errs    map[string]error

	mu    sync.Mutex
	Calls []string
}

func NewMockSimilarity() *MockSimilarity {
	return &MockSimilarity{Results: map[string][]*models.Track{}, Errs: map[string]error{}}
}

func (m *MockSimilarity) Similar(ctx context.Context, artist, title string) ([]*models.Track, error) {
	key := artist + "|" + title
	m.mu.Lock()
	m.Calls = append(m.Calls, key)
	m.mu.Unlock()

	if err := m.Errs[key]; err != nil {
		return nil, err
	}
	return CloneTracks(m.Results[key]), nil
}

// MockTrack builds a track resolved on p with id. It fails the test on invalid input.
func MockTrack(t *testing.T, p models.Platform, id, title string, duration int, artists ...string) *models.Track {
	t.Helper()
	track, err := models.NewTrack(title, artists, duration)
	if err != nil {
		t.Fatalf("failed to build track %q: %v", title, err)
	}
	track.SetIdentity(p, id, nil)
	track.MarkAbsent(p.Other())
	return track
}

// ExplicitTrack is [MockTrack] with the explicit flag set.
func ExplicitTrack(t *testing.T, p models.Platform, id, title string, duration int, artists ...string) *models.Track {
	t.Helper()
	track := MockTrack(t, p, id, title, duration, artists...)
	track.Explicit = true
	return track
}

// CloneTracks deep-copies tracks.
func CloneTracks(tracks []*models.Track) []*models.Track {
	if tracks == nil {
		return nil
	}
	out := make([]*models.Track, len(tracks))
	for i, t := range tracks {
		cp := *t
		cp.Artists = append([]string(nil), t.Artists...)
		out[i] = &cp
	}
	return out
}

// MockLock is an in-memory generation lock. Each Acquire hands out a fresh token.
type MockLock struct {
	mu       sync.Mutex
	held     map[string]string
	seq      int
	Acquired []string
	Released []string
	AcqErr   error
}

func NewMockLock() *MockLock {
	return &MockLock{held: map[string]string{}}
}

func (m *MockLock) Acquire(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcqErr != nil {
		return "", m.AcqErr
	}
	if _, ok := m.held[userID]; ok {
		return "", shared.ErrGenerationInProgress
	}
	token := m.nextToken(userID)
	m.held[userID] = token
	m.Acquired = append(m.Acquired, userID)
	return token, nil
}

// Release only frees the lock when token matches the current holder.
func (m *MockLock) Release(ctx context.Context, userID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[userID] != token {
		return shared.ErrLockNotHeld
	}
	delete(m.held, userID)
	m.Released = append(m.Released, userID)
	return nil
}

// Held reports whether userID currently holds the lock.
func (m *MockLock) Held(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.held[userID]
	return ok
}

// Hold hands the lock for userID to another holder, as a stale takeover would.
func (m *MockLock) Hold(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[userID] = m.nextToken(userID)
}

func (m *MockLock) nextToken(userID string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", userID, m.seq)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
