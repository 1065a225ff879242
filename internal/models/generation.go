package models

import "time"

// GenerationStatus is the lifecycle state of a generation run.
type GenerationStatus string

const (
	GenerationRunning   GenerationStatus = "running"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Generation records the outcome of one playlist generation run.
type Generation struct {
	ID                  string           `json:"id"`
	Sequence            int              `json:"sequence"`
	UserID              string           `json:"user_id"`
	Target              Platform         `json:"target"`
	LastN               int              `json:"last_n"`
	Status              GenerationStatus `json:"status"`
	PlaylistID          string           `json:"playlist_id,omitempty"`
	PlaylistURL         string           `json:"playlist_url,omitempty"`
	SeedCount           int              `json:"seed_count"`
	RecommendationCount int              `json:"recommendation_count"`
	TrackCount          int              `json:"track_count"`
	ErrorMessage        string           `json:"error_message,omitempty"`
	StartedAt           time.Time        `json:"started_at"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`
}

// Complete marks the run successful.
func (g *Generation) Complete(pl *Playlist, seeds, recommendations, tracks int) {
	now := time.Now()
	g.Status = GenerationCompleted
	g.CompletedAt = &now
	g.SeedCount = seeds
	g.RecommendationCount = recommendations
	g.TrackCount = tracks
	if pl != nil {
		g.PlaylistID = pl.ID
		g.PlaylistURL = pl.URL
	}
}

// Fail marks the run failed with err's message.
func (g *Generation) Fail(err error) {
	now := time.Now()
	g.Status = GenerationFailed
	g.CompletedAt = &now
	if err != nil {
		g.ErrorMessage = err.Error()
	}
}
