// Package models defines the domain entities shared by services, tasks and repositories.
//
// [Track] is the cross-service track record. It carries display metadata plus one
// [Identity] per [Platform]. An identity starts unset, may be marked absent when
// a track was produced by a service that cannot know its ID elsewhere, and becomes
// resolved once a search matches it.
//
// [User] and [Generation] are persisted by the repositories package. [User] owns
// the generation-in-progress flag that keeps a user to one run at a time.
//
// All persistent entities implement [Model]. [Repository] defines the standard CRUD
// operations for database access.
package models
