package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/desertthunder/ytmix/internal/tasks"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "users")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	t.Run("IndependentCounters", func(t *testing.T) {
		got, err := NextSequence(db, "generations")
		if err != nil {
			t.Fatalf("failed to get sequence: %v", err)
		}
		if got != 1 {
			t.Errorf("expected generations to start at 1, got %d", got)
		}
	})

	t.Run("UnknownTable", func(t *testing.T) {
		for _, table := range []string{"missing", "users; DROP TABLE users"} {
			if _, err := NextSequence(db, table); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for %q, got %v", table, err)
			}
		}
	})
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "chat-42", "Test User")

		err := repo.Create(user)
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if user.ID() == "" {
			t.Error("user ID should be set after creation")
		}
		if user.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", user.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "chat-42", "Test User")

		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		retrieved, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}

		if retrieved.ExternalID() != "chat-42" {
			t.Errorf("expected external id chat-42, got %s", retrieved.ExternalID())
		}
		if retrieved.Name() != "Test User" {
			t.Errorf("expected name Test User, got %s", retrieved.Name())
		}
		if retrieved.InProgress() {
			t.Error("new user should not be in progress")
		}
		if retrieved.StartedAt() != nil {
			t.Error("new user should have no started_at")
		}
	})

	t.Run("GetByExternalID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "chat-42", "Test User")
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		retrieved, err := repo.GetByExternalID("chat-42")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.ID() != user.ID() {
			t.Errorf("expected id %s, got %s", user.ID(), retrieved.ID())
		}
	})

	t.Run("FindOrCreate", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)

		first, err := repo.FindOrCreate("chat-42", "Ann")
		if err != nil {
			t.Fatalf("failed to find or create user: %v", err)
		}
		second, err := repo.FindOrCreate("chat-42", "ignored")
		if err != nil {
			t.Fatalf("failed to find or create user: %v", err)
		}

		if first.ID() != second.ID() {
			t.Errorf("expected the same user, got %s and %s", first.ID(), second.ID())
		}
		if second.Name() != "Ann" {
			t.Errorf("expected original name to be kept, got %s", second.Name())
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "chat-42", "Test User")
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		user.SetName("Renamed")
		if err := repo.Update(user); err != nil {
			t.Fatalf("failed to update user: %v", err)
		}

		retrieved, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Name() != "Renamed" {
			t.Errorf("expected name Renamed, got %s", retrieved.Name())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := models.NewUser(0, "chat-42", "Test User")
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		if err := repo.Delete(user.ID()); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		if _, err := repo.Get(user.ID()); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound after delete, got %v", err)
		}

		// the external id is free again once the old row is soft-deleted
		replacement := models.NewUser(0, "chat-42", "Again")
		if err := repo.Create(replacement); err != nil {
			t.Fatalf("failed to recreate user: %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		for _, id := range []string{"a", "b", "c"} {
			if err := repo.Create(models.NewUser(0, id, id)); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
		}

		users, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 3 {
			t.Fatalf("expected 3 users, got %d", len(users))
		}
		if users[0].ExternalID() != "a" || users[2].ExternalID() != "c" {
			t.Error("expected users ordered by sequence")
		}

		filtered, err := repo.List(map[string]any{"external_id": "b"})
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(filtered) != 1 || filtered[0].ExternalID() != "b" {
			t.Errorf("expected only user b, got %d users", len(filtered))
		}
	})
}

func TestUserRepositoryProgressFlag(t *testing.T) {
	now := time.Date(2024, 3, 7, 21, 4, 0, 0, time.UTC)
	stale := 10 * time.Minute

	create := func(t *testing.T, repo *UserRepository) *models.User {
		t.Helper()
		user := models.NewUser(0, "chat-42", "Test User")
		if err := repo.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		return user
	}

	t.Run("MarkInProgress", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := create(t, repo)

		startedAt, err := repo.MarkInProgress(user.ID(), now, stale)
		if err != nil {
			t.Fatalf("failed to mark in progress: %v", err)
		}
		if !startedAt.Equal(now) {
			t.Errorf("expected token %v, got %v", now, startedAt)
		}

		retrieved, err := repo.Get(user.ID())
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if !retrieved.InProgress() {
			t.Error("expected user to be in progress")
		}
		if retrieved.StartedAt() == nil || !retrieved.StartedAt().Equal(now) {
			t.Errorf("expected started_at %v, got %v", now, retrieved.StartedAt())
		}
		if retrieved.Generations() != 1 {
			t.Errorf("expected 1 generation, got %d", retrieved.Generations())
		}

		busy, err := repo.IsGenerationInProgress(user.ID(), now.Add(time.Minute), stale)
		if err != nil {
			t.Fatalf("failed to check progress: %v", err)
		}
		if !busy {
			t.Error("expected generation to be in progress")
		}
	})

	t.Run("Contention", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := create(t, repo)

		if _, err := repo.MarkInProgress(user.ID(), now, stale); err != nil {
			t.Fatalf("failed to mark in progress: %v", err)
		}

		_, err := repo.MarkInProgress(user.ID(), now.Add(time.Minute), stale)
		if !errors.Is(err, shared.ErrGenerationInProgress) {
			t.Errorf("expected ErrGenerationInProgress, got %v", err)
		}
	})

	t.Run("StaleTakeover", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := create(t, repo)

		if _, err := repo.MarkInProgress(user.ID(), now, stale); err != nil {
			t.Fatalf("failed to mark in progress: %v", err)
		}

		later := now.Add(stale + time.Minute)
		busy, err := repo.IsGenerationInProgress(user.ID(), later, stale)
		if err != nil {
			t.Fatalf("failed to check progress: %v", err)
		}
		if busy {
			t.Error("expected stale flag to be ignored")
		}

		if _, err := repo.MarkInProgress(user.ID(), later, stale); err != nil {
			t.Fatalf("expected stale flag to be taken over, got %v", err)
		}

		retrieved, _ := repo.Get(user.ID())
		if retrieved.Generations() != 2 {
			t.Errorf("expected 2 generations, got %d", retrieved.Generations())
		}
	})

	t.Run("MarkFinished", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := create(t, repo)

		if _, err := repo.MarkInProgress(user.ID(), now, stale); err != nil {
			t.Fatalf("failed to mark in progress: %v", err)
		}
		if err := repo.MarkFinished(user.ID()); err != nil {
			t.Fatalf("failed to mark finished: %v", err)
		}

		retrieved, _ := repo.Get(user.ID())
		if retrieved.InProgress() || retrieved.StartedAt() != nil {
			t.Error("expected flag to be cleared")
		}

		if _, err := repo.MarkInProgress(user.ID(), now.Add(time.Second), stale); err != nil {
			t.Errorf("expected flag to be acquirable after finish, got %v", err)
		}
	})

	t.Run("MarkFinishedIf", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := create(t, repo)

		first, err := repo.MarkInProgress(user.ID(), now, stale)
		if err != nil {
			t.Fatalf("failed to mark in progress: %v", err)
		}
		second, err := repo.MarkInProgress(user.ID(), now.Add(stale+time.Minute), stale)
		if err != nil {
			t.Fatalf("expected stale flag to be taken over, got %v", err)
		}

		released, err := repo.MarkFinishedIf(user.ID(), first)
		if err != nil {
			t.Fatalf("failed to release: %v", err)
		}
		if released {
			t.Error("expected the replaced holder not to release")
		}
		retrieved, _ := repo.Get(user.ID())
		if !retrieved.InProgress() {
			t.Error("expected flag to stay with the new holder")
		}

		released, err = repo.MarkFinishedIf(user.ID(), second)
		if err != nil {
			t.Fatalf("failed to release: %v", err)
		}
		if !released {
			t.Error("expected the current holder to release")
		}
		retrieved, _ = repo.Get(user.ID())
		if retrieved.InProgress() {
			t.Error("expected flag to be cleared")
		}
	})
}

func TestGenerationRepository(t *testing.T) {
	newUser := func(t *testing.T, db *sql.DB) *models.User {
		t.Helper()
		user := models.NewUser(0, "chat-42", "Test User")
		if err := NewUserRepository(db).Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		return user
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		user := newUser(t, db)
		repo := NewGenerationRepository(db)

		gen := &models.Generation{UserID: user.ID(), Target: models.Spotify, LastN: 10}
		if err := repo.Create(gen); err != nil {
			t.Fatalf("failed to create generation: %v", err)
		}
		if gen.ID == "" || gen.Sequence != 1 {
			t.Errorf("expected id and sequence to be set, got %q/%d", gen.ID, gen.Sequence)
		}

		retrieved, err := repo.Get(gen.ID)
		if err != nil {
			t.Fatalf("failed to get generation: %v", err)
		}
		if retrieved.Status != models.GenerationRunning {
			t.Errorf("expected status running, got %s", retrieved.Status)
		}
		if retrieved.Target != models.Spotify || retrieved.LastN != 10 {
			t.Errorf("unexpected generation: %+v", retrieved)
		}
		if retrieved.CompletedAt != nil {
			t.Error("running generation should have no completed_at")
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		user := newUser(t, db)
		repo := NewGenerationRepository(db)

		gen := &models.Generation{UserID: user.ID(), Target: models.YouTube, LastN: 5}
		if err := repo.Create(gen); err != nil {
			t.Fatalf("failed to create generation: %v", err)
		}

		gen.Complete(&models.Playlist{ID: "PL1", URL: "https://music.youtube.com/playlist?list=PL1"}, 5, 12, 15)
		if err := repo.Update(gen); err != nil {
			t.Fatalf("failed to update generation: %v", err)
		}

		retrieved, err := repo.Get(gen.ID)
		if err != nil {
			t.Fatalf("failed to get generation: %v", err)
		}
		if retrieved.Status != models.GenerationCompleted {
			t.Errorf("expected status completed, got %s", retrieved.Status)
		}
		if retrieved.PlaylistID != "PL1" || retrieved.TrackCount != 15 || retrieved.RecommendationCount != 12 {
			t.Errorf("unexpected generation: %+v", retrieved)
		}
		if retrieved.CompletedAt == nil {
			t.Error("expected completed_at to be set")
		}
	})

	t.Run("ListByUser", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		user := newUser(t, db)
		repo := NewGenerationRepository(db)

		for i := 1; i <= 3; i++ {
			if err := repo.Create(&models.Generation{UserID: user.ID(), Target: models.Spotify, LastN: i}); err != nil {
				t.Fatalf("failed to create generation: %v", err)
			}
		}

		gens, err := repo.ListByUser(user.ID(), 2)
		if err != nil {
			t.Fatalf("failed to list generations: %v", err)
		}
		if len(gens) != 2 {
			t.Fatalf("expected 2 generations, got %d", len(gens))
		}
		if gens[0].LastN != 3 || gens[1].LastN != 2 {
			t.Errorf("expected newest first, got %d then %d", gens[0].LastN, gens[1].LastN)
		}

		all, err := repo.ListByUser(user.ID(), 0)
		if err != nil {
			t.Fatalf("failed to list generations: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("expected 3 generations, got %d", len(all))
		}
	})
}

func TestGenerationStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 7, 21, 4, 0, 0, time.UTC)

	newStore := func(t *testing.T) (*GenerationStore, *sql.DB) {
		t.Helper()
		db := setupTestDB(t)
		store := NewGenerationStore(db, 0)
		store.now = func() time.Time { return now }
		return store, db
	}

	t.Run("DefaultStaleAfter", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		if store.StaleAfter() != DefaultStaleAfter {
			t.Errorf("expected %v, got %v", DefaultStaleAfter, store.StaleAfter())
		}
	})

	t.Run("AcquireRelease", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		token, err := store.Acquire(ctx, "chat-42")
		if err != nil {
			t.Fatalf("failed to acquire: %v", err)
		}
		if token == "" {
			t.Error("expected a lock token")
		}

		if busy, err := store.Busy("chat-42"); err != nil || !busy {
			t.Errorf("expected busy user, got %v (%v)", busy, err)
		}

		if _, err := store.Acquire(ctx, "chat-42"); !errors.Is(err, shared.ErrGenerationInProgress) {
			t.Errorf("expected ErrGenerationInProgress, got %v", err)
		}

		if err := store.Release(ctx, "chat-42", token); err != nil {
			t.Fatalf("failed to release: %v", err)
		}
		if busy, _ := store.Busy("chat-42"); busy {
			t.Error("expected user to be free after release")
		}

		if _, err := store.Acquire(ctx, "chat-42"); err != nil {
			t.Errorf("expected acquire after release to succeed, got %v", err)
		}
	})

	t.Run("IndependentUsers", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		if _, err := store.Acquire(ctx, "a"); err != nil {
			t.Fatalf("failed to acquire: %v", err)
		}
		if _, err := store.Acquire(ctx, "b"); err != nil {
			t.Errorf("expected a second user to acquire, got %v", err)
		}
	})

	t.Run("StaleLock", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		if _, err := store.Acquire(ctx, "chat-42"); err != nil {
			t.Fatalf("failed to acquire: %v", err)
		}

		store.now = func() time.Time { return now.Add(DefaultStaleAfter + time.Second) }
		if busy, _ := store.Busy("chat-42"); busy {
			t.Error("expected stale lock to read as free")
		}
		if _, err := store.Acquire(ctx, "chat-42"); err != nil {
			t.Errorf("expected stale lock to be taken over, got %v", err)
		}
	})

	t.Run("LateReleaseAfterTakeover", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		tokenA, err := store.Acquire(ctx, "chat-42")
		if err != nil {
			t.Fatalf("failed to acquire: %v", err)
		}

		store.now = func() time.Time { return now.Add(11 * time.Minute) }
		tokenB, err := store.Acquire(ctx, "chat-42")
		if err != nil {
			t.Fatalf("expected stale lock to be taken over, got %v", err)
		}

		if err := store.Release(ctx, "chat-42", tokenA); !errors.Is(err, shared.ErrLockNotHeld) {
			t.Errorf("expected ErrLockNotHeld, got %v", err)
		}
		if busy, _ := store.Busy("chat-42"); !busy {
			t.Error("expected the new holder to keep the lock")
		}
		if _, err := store.Acquire(ctx, "chat-42"); !errors.Is(err, shared.ErrGenerationInProgress) {
			t.Errorf("expected ErrGenerationInProgress, got %v", err)
		}

		if err := store.Release(ctx, "chat-42", tokenB); err != nil {
			t.Errorf("expected the new holder to release, got %v", err)
		}
	})

	t.Run("Unlock", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		if _, err := store.Acquire(ctx, "chat-42"); err != nil {
			t.Fatalf("failed to acquire: %v", err)
		}
		if err := store.Unlock(ctx, "chat-42"); err != nil {
			t.Fatalf("failed to unlock: %v", err)
		}
		if busy, _ := store.Busy("chat-42"); busy {
			t.Error("expected user to be free after unlock")
		}
	})

	t.Run("InvalidToken", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		if _, err := store.Acquire(ctx, "chat-42"); err != nil {
			t.Fatalf("failed to acquire: %v", err)
		}
		if err := store.Release(ctx, "chat-42", "not-a-time"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		if busy, err := store.Busy("nobody"); err != nil || busy {
			t.Errorf("expected unknown user to be free, got %v (%v)", busy, err)
		}
		if err := store.Unlock(ctx, "nobody"); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("CancelledContext", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := store.Acquire(cancelled, "chat-42"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("RecordsHistory", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		okID, err := store.Start(ctx, "chat-42", models.Spotify, 10)
		if err != nil {
			t.Fatalf("failed to start run: %v", err)
		}
		result := &tasks.GenerationResult{
			Target:          models.Spotify,
			Playlist:        &models.Playlist{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"},
			Seeds:           make([]*models.Track, 2),
			Recommendations: make([]*models.Track, 4),
			TrackIDs:        []string{"a", "b", "c", "d", "e"},
		}
		if err := store.Finish(ctx, okID, result, nil); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}

		failedID, err := store.Start(ctx, "chat-42", models.YouTube, 5)
		if err != nil {
			t.Fatalf("failed to start run: %v", err)
		}
		if err := store.Finish(ctx, failedID, nil, shared.ErrNoSeedTracks); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}

		history, err := store.History("chat-42", 10)
		if err != nil {
			t.Fatalf("failed to load history: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("expected 2 runs, got %d", len(history))
		}

		failed, ok := history[0], history[1]
		if failed.Status != models.GenerationFailed || failed.ErrorMessage != shared.ErrNoSeedTracks.Error() {
			t.Errorf("unexpected failed run: %+v", failed)
		}
		if ok.Status != models.GenerationCompleted || ok.PlaylistID != "pl1" {
			t.Errorf("unexpected completed run: %+v", ok)
		}
		if ok.SeedCount != 2 || ok.RecommendationCount != 4 || ok.TrackCount != 5 {
			t.Errorf("unexpected counts: %d/%d/%d", ok.SeedCount, ok.RecommendationCount, ok.TrackCount)
		}
		if !ok.StartedAt.Equal(now) {
			t.Errorf("expected started_at %v, got %v", now, ok.StartedAt)
		}
	})

	t.Run("FinishUnknownRun", func(t *testing.T) {
		store, db := newStore(t)
		defer db.Close()

		if err := store.Finish(ctx, "missing", nil, nil); !errors.Is(err, ErrGenerationNotFound) {
			t.Errorf("expected ErrGenerationNotFound, got %v", err)
		}
	})
}
