package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/ytmix/internal/shared"
)

// sequenceTables maps each sequenced table to its counter table. Only these names reach SQL.
var sequenceTables = map[string]string{
	"users":       "users_sequence",
	"generations": "generations_sequence",
}

// NextSequence increments and returns the counter for table (users or generations).
//
// The counter is bumped and read in one statement, so concurrent callers never share a value.
func NextSequence(db *sql.DB, table string) (int, error) {
	counter, ok := sequenceTables[table]
	if !ok {
		return 0, fmt.Errorf("%w: no sequence for table %q", shared.ErrInvalidArgument, table)
	}

	var sequence int
	query := "UPDATE " + counter + " SET value = value + 1 WHERE id = 1 RETURNING value"
	if err := db.QueryRow(query).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to increment %s sequence: %w", table, err)
	}
	return sequence, nil
}
