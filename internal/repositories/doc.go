// Package repositories implements SQLite persistence for users and generation runs.
//
// Each repository issues raw SQL against a [database/sql.DB] opened by the shared package.
// Users are soft-deleted via deleted_at and deleted rows are excluded from queries.
//
// Key Implementations:
//   - [UserRepository] : users keyed by external ID, owning the generation-in-progress flag
//   - [GenerationRepository] : one row per generation run with its outcome
//   - [GenerationStore] : the generator's lock and run recorder built on the two
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// [NextSequence] bumps the per-table counter rows (users_sequence, generations_sequence) with UPDATE ... RETURNING.
package repositories
