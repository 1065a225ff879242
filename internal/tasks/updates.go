package tasks

import (
	"fmt"

	"github.com/desertthunder/ytmix/internal/models"
)

// ProgressUpdate represents a progress event during a playlist generation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSeeds Phase = iota
	ResolveSeeds
	Recommend
	ResolveRecommendations
	CreatePlaylist
	AddItems
	Done
)

func (p Phase) String() string {
	switch p {
	case FetchSeeds:
		return "fetch_seeds"
	case ResolveSeeds:
		return "resolve_seeds"
	case Recommend:
		return "recommend"
	case ResolveRecommendations:
		return "resolve_recommendations"
	case CreatePlaylist:
		return "create_playlist"
	case AddItems:
		return "add_items"
	case Done:
		return "done"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// Channel full, skip this update
	}
}

func fetchSeedsUpdate(step, total int, p models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSeeds,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Fetching recent tracks from %s...", p.Name()),
	}
}

func fetchedSeedsUpdate(step, total int, p models.Platform, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSeeds,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Found %d recent tracks on %s", count, p.Name()),
		Data:    count,
	}
}

func resolveUpdate(phase Phase, step, total int, tr *models.Track, target models.Platform) ProgressUpdate {
	if tr == nil {
		return ProgressUpdate{
			Phase:   phase,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("Matching tracks on %s...", target.Name()),
		}
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, tr),
	}
}

func recommendUpdate(step, total int, source string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Collecting %s recommendations...", source),
	}
}

func recommendedUpdate(step, total int, source string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s suggested %d tracks", source, count),
		Data:    count,
	}
}

func createPlaylistUpdate(step, total int, name string, p models.Platform) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Creating playlist %q on %s...", name, p.Name()),
	}
}

func playlistCreatedUpdate(step, total int, pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", pl.Name, pl.ID),
		Data:    pl,
	}
}

func addItemsUpdate(step, total, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Adding %d tracks...", step, total, count),
	}
}

func doneUpdate(result *GenerationResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Done,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist ready: %s", result.Playlist.URL),
		Data:    result,
	}
}
