package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
)

const generationColumns = `id, sequence, user_id, target, last_n, status, playlist_id, playlist_url,
	seed_count, recommendation_count, track_count, error_message, started_at, completed_at`

// ErrGenerationNotFound is returned when no generation matches an ID.
var ErrGenerationNotFound = errors.New("generation not found")

// GenerationRepository persists generation run history.
type GenerationRepository struct {
	db *sql.DB
}

// NewGenerationRepository creates a new [GenerationRepository] with the given database connection
func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Create inserts gen, assigning its ID and sequence. A zero StartedAt is set to now.
func (r *GenerationRepository) Create(gen *models.Generation) error {
	if gen.UserID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}

	sequence, err := NextSequence(r.db, "generations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	gen.ID = shared.GenerateID()
	gen.Sequence = sequence
	if gen.Status == "" {
		gen.Status = models.GenerationRunning
	}
	if gen.StartedAt.IsZero() {
		gen.StartedAt = time.Now()
	}

	query := `
		INSERT INTO generations (` + generationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		gen.ID, gen.Sequence, gen.UserID, string(gen.Target), gen.LastN, string(gen.Status),
		gen.PlaylistID, gen.PlaylistURL, gen.SeedCount, gen.RecommendationCount, gen.TrackCount,
		gen.ErrorMessage, gen.StartedAt.UTC(), utcOrNil(gen.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}
	return nil
}

// Get retrieves a generation by ID
func (r *GenerationRepository) Get(id string) (*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ?`

	gen, err := scanGeneration(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGenerationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query generation: %w", err)
	}
	return gen, nil
}

// Update writes the outcome fields of gen.
func (r *GenerationRepository) Update(gen *models.Generation) error {
	query := `
		UPDATE generations
		SET status = ?, playlist_id = ?, playlist_url = ?, seed_count = ?, recommendation_count = ?,
			track_count = ?, error_message = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.Exec(query,
		string(gen.Status), gen.PlaylistID, gen.PlaylistURL, gen.SeedCount, gen.RecommendationCount,
		gen.TrackCount, gen.ErrorMessage, utcOrNil(gen.CompletedAt), gen.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}

	return expectRow(result, ErrGenerationNotFound, gen.ID)
}

// ListByUser returns the most recent generations of userID, newest first.
// A non-positive limit returns all of them.
func (r *GenerationRepository) ListByUser(userID string, limit int) ([]*models.Generation, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE user_id = ? ORDER BY sequence DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var gens []*models.Generation
	for rows.Next() {
		gen, err := scanGeneration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		gens = append(gens, gen)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return gens, nil
}

func scanGeneration(row rowScanner) (*models.Generation, error) {
	var (
		gen         models.Generation
		target      string
		status      string
		completedAt sql.NullTime
	)

	err := row.Scan(
		&gen.ID, &gen.Sequence, &gen.UserID, &target, &gen.LastN, &status, &gen.PlaylistID, &gen.PlaylistURL,
		&gen.SeedCount, &gen.RecommendationCount, &gen.TrackCount, &gen.ErrorMessage, &gen.StartedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	gen.Target = models.Platform(target)
	gen.Status = models.GenerationStatus(status)
	if completedAt.Valid {
		gen.CompletedAt = &completedAt.Time
	}
	return &gen, nil
}

func utcOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
