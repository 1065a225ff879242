package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/ytmix/internal/shared"
)

// User is a person who generates playlists. ExternalID is the caller-facing key
// (a chat ID or a local profile name).
type User struct {
	id          string
	sequence    int
	externalID  string
	name        string
	inProgress  bool
	startedAt   *time.Time
	generations int
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewUser creates a user with creation timestamps set to now.
func NewUser(sequence int, externalID, name string) *User {
	now := time.Now()
	return &User{
		sequence:   sequence,
		externalID: externalID,
		name:       name,
		createdAt:  now,
		updatedAt:  now,
	}
}

func (u *User) ID() string                { return u.id }
func (u *User) Sequence() int             { return u.sequence }
func (u *User) ExternalID() string        { return u.externalID }
func (u *User) Name() string              { return u.name }
func (u *User) InProgress() bool          { return u.inProgress }
func (u *User) StartedAt() *time.Time     { return u.startedAt }
func (u *User) Generations() int          { return u.generations }
func (u *User) CreatedAt() time.Time      { return u.createdAt }
func (u *User) UpdatedAt() time.Time      { return u.updatedAt }
func (u *User) DeletedAt() *time.Time     { return u.deletedAt }
func (u *User) SetID(id string)           { u.id = id }
func (u *User) SetSequence(seq int)       { u.sequence = seq }
func (u *User) SetName(name string)       { u.name = name }
func (u *User) SetGenerations(n int)      { u.generations = n }
func (u *User) SetCreatedAt(t time.Time)  { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)  { u.updatedAt = t }
func (u *User) SetDeletedAt(t *time.Time) { u.deletedAt = t }

// SetInProgress sets the in-progress flag and the time it was raised.
func (u *User) SetInProgress(inProgress bool, startedAt *time.Time) {
	u.inProgress = inProgress
	u.startedAt = startedAt
}

// Busy reports whether a generation started less than staleAfter ago is still marked in progress.
func (u *User) Busy(now time.Time, staleAfter time.Duration) bool {
	if !u.inProgress {
		return false
	}
	if u.startedAt == nil {
		return true
	}
	return now.Sub(*u.startedAt) < staleAfter
}

// Validate checks required fields.
func (u *User) Validate() error {
	if strings.TrimSpace(u.externalID) == "" {
		return fmt.Errorf("%w: external id is required", shared.ErrInvalidInput)
	}
	return nil
}
