package models

import (
	"fmt"
	"math"
	"strings"

	"github.com/desertthunder/ytmix/internal/shared"
)

// IdentityState describes what is known about a track on one platform.
type IdentityState int

const (
	IdentityUnset    IdentityState = iota // never looked up
	IdentityAbsent                        // deliberately not available on this platform
	IdentityResolved                      // TrackID is set
)

func (s IdentityState) String() string {
	switch s {
	case IdentityAbsent:
		return "absent"
	case IdentityResolved:
		return "resolved"
	default:
		return "unset"
	}
}

// Identity is a track's identity on one platform.
type Identity struct {
	State     IdentityState `json:"state"`
	TrackID   string        `json:"track_id,omitempty"`
	ArtistIDs []string      `json:"artist_ids,omitempty"`
}

// Resolved reports whether a track ID is known.
func (i Identity) Resolved() bool {
	return i.State == IdentityResolved && i.TrackID != ""
}

// Track is a cross-service track record.
//
// Duration is in seconds; 0 means unknown. Explicit is only reported by Spotify.
type Track struct {
	Title    string   `json:"title"`
	Artists  []string `json:"artists"`
	Duration int      `json:"duration"`
	Explicit bool     `json:"explicit,omitempty"`
	Spotify  Identity `json:"spotify"`
	YouTube  Identity `json:"youtube"`
}

// NewTrack builds a track record with a normalized duration. At least one artist is required.
func NewTrack(title string, artists []string, duration int) (*Track, error) {
	t := &Track{
		Title:    title,
		Artists:  artists,
		Duration: NormalizeDuration(duration),
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// NormalizeDuration converts a raw duration to seconds.
//
// Values above 1000 are taken to be milliseconds and rounded to the nearest second.
// Everything else is already seconds. A genuine track longer than 1000 seconds
// (about 16.7 minutes) reported in seconds is therefore misread as milliseconds.
func NormalizeDuration(d int) int {
	if d > 1000 {
		return int(math.Round(float64(d) / 1000))
	}
	return d
}

// Validate checks that the record has at least one non-empty artist.
func (t *Track) Validate() error {
	if len(t.Artists) == 0 {
		return shared.ErrNoArtists
	}
	for _, a := range t.Artists {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: empty artist name", shared.ErrNoArtists)
		}
	}
	return nil
}

// Identity returns the identity for p.
func (t *Track) Identity(p Platform) Identity {
	if p == Spotify {
		return t.Spotify
	}
	return t.YouTube
}

func (t *Track) identity(p Platform) *Identity {
	if p == Spotify {
		return &t.Spotify
	}
	return &t.YouTube
}

// SetIdentity records a resolved identity on p.
func (t *Track) SetIdentity(p Platform, trackID string, artistIDs []string) {
	*t.identity(p) = Identity{State: IdentityResolved, TrackID: trackID, ArtistIDs: artistIDs}
}

// MarkAbsent records that p has no identity for this track. A resolved identity is left untouched.
func (t *Track) MarkAbsent(p Platform) {
	id := t.identity(p)
	if id.Resolved() {
		return
	}
	*id = Identity{State: IdentityAbsent}
}

// IsResolved reports whether the identity on p is resolved.
func (t *Track) IsResolved(p Platform) bool {
	return t.Identity(p).Resolved()
}

// TrackID returns the track ID on p, or "" when unresolved.
func (t *Track) TrackID(p Platform) string {
	if !t.IsResolved(p) {
		return ""
	}
	return t.Identity(p).TrackID
}

// OnlyOn reports whether the track is resolved on p and nowhere else.
func (t *Track) OnlyOn(p Platform) bool {
	return t.IsResolved(p) && !t.IsResolved(p.Other())
}

// FullyResolved reports whether both identities are resolved.
func (t *Track) FullyResolved() bool {
	return t.IsResolved(Spotify) && t.IsResolved(YouTube)
}

// HasDuration reports whether a usable duration is known.
func (t *Track) HasDuration() bool {
	return t.Duration > 0
}

// ForceUnknownDuration clears the duration so later resolution does not filter on it.
func (t *Track) ForceUnknownDuration() {
	t.Duration = 0
}

// FirstArtist returns the primary artist.
func (t *Track) FirstArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// ArtistName joins all artist names with a space.
func (t *Track) ArtistName() string {
	return strings.Join(t.Artists, " ")
}

func (t *Track) String() string {
	return fmt.Sprintf("%s - %s", strings.Join(t.Artists, ", "), t.Title)
}
