package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
)

var _ models.Repository[*models.User] = (*UserRepository)(nil)

const userColumns = `id, sequence, external_id, name, in_progress, started_at, generations, created_at, updated_at, deleted_at`

// UserRepository implements [models.Repository] for user [models.User] persistence.
//
// It also owns the generation-in-progress flag.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database with generated ID and sequence
func (r *UserRepository) Create(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "users")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	user.SetID(id)
	user.SetSequence(sequence)

	query := `
		INSERT INTO users (id, sequence, external_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, user.ExternalID(), user.Name(), user.CreatedAt().UTC(), user.UpdatedAt().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// Get retrieves a user by ID, excluding soft-deleted users
func (r *UserRepository) Get(id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetByExternalID retrieves a user by the caller-facing key.
func (r *UserRepository) GetByExternalID(externalID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = ? AND deleted_at IS NULL`

	user, err := scanUser(r.db.QueryRow(query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrUserNotFound, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// FindOrCreate returns the user with externalID, creating it when missing.
func (r *UserRepository) FindOrCreate(externalID, name string) (*models.User, error) {
	user, err := r.GetByExternalID(externalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, shared.ErrUserNotFound) {
		return nil, err
	}

	user = models.NewUser(0, externalID, name)
	if err := r.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update modifies an existing user in the database
func (r *UserRepository) Update(user *models.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	user.SetUpdatedAt(now)

	query := `
		UPDATE users
		SET external_id = ?, name = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, user.ExternalID(), user.Name(), now, user.ID())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, user.ID())
}

// Delete soft-deletes a user by ID
func (r *UserRepository) Delete(id string) error {
	query := `
		UPDATE users
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, id)
}

// List retrieves all users matching the given criteria, excluding soft-deleted users
//
// Supported criteria: "external_id" (string), "in_progress" (bool).
func (r *UserRepository) List(criteria map[string]any) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL`
	args := []any{}

	if externalID, ok := criteria["external_id"].(string); ok && externalID != "" {
		query += " AND external_id = ?"
		args = append(args, externalID)
	}
	if inProgress, ok := criteria["in_progress"].(bool); ok {
		query += " AND in_progress = ?"
		args = append(args, inProgress)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

// IsGenerationInProgress reports whether the user holds a lock younger than staleAfter.
func (r *UserRepository) IsGenerationInProgress(id string, now time.Time, staleAfter time.Duration) (bool, error) {
	user, err := r.Get(id)
	if err != nil {
		return false, err
	}
	return user.Busy(now, staleAfter), nil
}

// MarkInProgress raises the in-progress flag and bumps the generation counter.
//
// The update is conditional so concurrent callers cannot both succeed. A flag raised more than
// staleAfter ago is treated as abandoned and taken over. Returns [shared.ErrGenerationInProgress]
// when the flag is held. On success the returned started_at identifies this holder for
// [UserRepository.MarkFinishedIf].
func (r *UserRepository) MarkInProgress(id string, now time.Time, staleAfter time.Duration) (time.Time, error) {
	now = now.UTC()
	cutoff := now.Add(-staleAfter)

	query := `
		UPDATE users
		SET in_progress = 1, started_at = ?, generations = generations + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND (in_progress = 0 OR started_at < ?)
	`

	result, err := r.db.Exec(query, now, now, id, cutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to mark user in progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 1 {
		return now, nil
	}

	if _, err := r.Get(id); err != nil {
		return time.Time{}, err
	}
	return time.Time{}, fmt.Errorf("%w: user %s", shared.ErrGenerationInProgress, id)
}

// MarkFinished clears the in-progress flag.
func (r *UserRepository) MarkFinished(id string) error {
	query := `
		UPDATE users
		SET in_progress = 0, started_at = NULL, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark user finished: %w", err)
	}

	return expectRow(result, shared.ErrUserNotFound, id)
}

// MarkFinishedIf clears the in-progress flag only while it is still held by the run that
// raised it at startedAt. It reports false when another run has since taken the flag over.
func (r *UserRepository) MarkFinishedIf(id string, startedAt time.Time) (bool, error) {
	query := `
		UPDATE users
		SET in_progress = 0, started_at = NULL, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND in_progress = 1 AND started_at = ?
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id, startedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("failed to mark user finished: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 1 {
		return true, nil
	}

	if _, err := r.Get(id); err != nil {
		return false, err
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		userID      string
		sequence    int
		externalID  string
		name        string
		inProgress  bool
		startedAt   sql.NullTime
		generations int
		createdAt   time.Time
		updatedAt   time.Time
		deletedAt   sql.NullTime
	)

	err := row.Scan(&userID, &sequence, &externalID, &name, &inProgress, &startedAt, &generations, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(sequence, externalID, name)
	user.SetID(userID)
	user.SetGenerations(generations)
	user.SetCreatedAt(createdAt)
	user.SetUpdatedAt(updatedAt)
	if startedAt.Valid {
		user.SetInProgress(inProgress, &startedAt.Time)
	} else {
		user.SetInProgress(inProgress, nil)
	}
	if deletedAt.Valid {
		user.SetDeletedAt(&deletedAt.Time)
	}

	return user, nil
}

// expectRow returns notFound wrapped with id when result touched no rows.
func expectRow(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
