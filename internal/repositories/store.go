package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/desertthunder/ytmix/internal/tasks"
)

var (
	_ tasks.GenerationLock = (*GenerationStore)(nil)
	_ tasks.RunRecorder    = (*GenerationStore)(nil)
)

// DefaultStaleAfter is how long an in-progress flag is honoured before it is considered abandoned.
const DefaultStaleAfter = 10 * time.Minute

// GenerationStore backs the generator's per-user lock and run history with SQLite.
//
// User IDs passed to it are external IDs. Unknown users are created on first Acquire.
type GenerationStore struct {
	Users       *UserRepository
	Generations *GenerationRepository
	staleAfter  time.Duration
	now         func() time.Time
}

// NewGenerationStore creates a store over db. A non-positive staleAfter uses [DefaultStaleAfter].
func NewGenerationStore(db *sql.DB, staleAfter time.Duration) *GenerationStore {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &GenerationStore{
		Users:       NewUserRepository(db),
		Generations: NewGenerationRepository(db),
		staleAfter:  staleAfter,
		now:         time.Now,
	}
}

// StaleAfter returns the lock expiry.
func (s *GenerationStore) StaleAfter() time.Duration { return s.staleAfter }

// Acquire raises the user's in-progress flag or returns [shared.ErrGenerationInProgress].
//
// The token is the flag's started_at and must be handed back to [GenerationStore.Release].
func (s *GenerationStore) Acquire(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	user, err := s.Users.FindOrCreate(userID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	startedAt, err := s.Users.MarkInProgress(user.ID(), s.now(), s.staleAfter)
	if err != nil {
		return "", err
	}
	return startedAt.Format(time.RFC3339Nano), nil
}

// Release clears the user's in-progress flag if token still owns it. A run whose lock was
// taken over as stale gets [shared.ErrLockNotHeld] and the new holder keeps the flag.
func (s *GenerationStore) Release(_ context.Context, userID, token string) error {
	startedAt, err := time.Parse(time.RFC3339Nano, token)
	if err != nil {
		return fmt.Errorf("%w: invalid lock token %q", shared.ErrInvalidArgument, token)
	}
	user, err := s.Users.GetByExternalID(userID)
	if err != nil {
		return err
	}
	released, err := s.Users.MarkFinishedIf(user.ID(), startedAt)
	if err != nil {
		return err
	}
	if !released {
		return fmt.Errorf("%w: user %s", shared.ErrLockNotHeld, userID)
	}
	return nil
}

// Unlock clears the user's in-progress flag whoever holds it.
func (s *GenerationStore) Unlock(_ context.Context, userID string) error {
	user, err := s.Users.GetByExternalID(userID)
	if err != nil {
		return err
	}
	return s.Users.MarkFinished(user.ID())
}

// Busy reports whether userID currently holds a fresh lock. Unknown users are never busy.
func (s *GenerationStore) Busy(userID string) (bool, error) {
	user, err := s.Users.GetByExternalID(userID)
	if errors.Is(err, shared.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.Users.IsGenerationInProgress(user.ID(), s.now(), s.staleAfter)
}

// Start records a running generation and returns its ID.
func (s *GenerationStore) Start(ctx context.Context, userID string, target models.Platform, lastN int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	user, err := s.Users.FindOrCreate(userID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	gen := &models.Generation{
		UserID:    user.ID(),
		Target:    target,
		LastN:     lastN,
		Status:    models.GenerationRunning,
		StartedAt: s.now(),
	}
	if err := s.Generations.Create(gen); err != nil {
		return "", err
	}
	return gen.ID, nil
}

// Finish records the outcome of runID. A nil result with a nil runErr is recorded as completed with no playlist.
func (s *GenerationStore) Finish(_ context.Context, runID string, result *tasks.GenerationResult, runErr error) error {
	gen, err := s.Generations.Get(runID)
	if err != nil {
		return err
	}

	if runErr != nil {
		gen.Fail(runErr)
	} else if result != nil {
		gen.Complete(result.Playlist, len(result.Seeds), len(result.Recommendations), len(result.TrackIDs))
	} else {
		gen.Complete(nil, 0, 0, 0)
	}

	return s.Generations.Update(gen)
}

// History lists the newest generations of the user with externalID.
func (s *GenerationStore) History(externalID string, limit int) ([]*models.Generation, error) {
	user, err := s.Users.GetByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	return s.Generations.ListByUser(user.ID(), limit)
}
