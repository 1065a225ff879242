package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/ytmix/internal/models"
)

var _ list.Item = trackItem{}

// trackItem wraps [models.Track] to implement [list.Item].
type trackItem struct {
	track  *models.Track
	source string
	target models.Platform
}

func (i trackItem) FilterValue() string { return i.track.Title }
func (i trackItem) Title() string       { return i.track.Title }
func (i trackItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.track.ArtistName(), i.source)
	if !i.track.IsResolved(i.target) {
		desc += " • not on " + i.target.Name()
	}
	return desc
}

func trackItems(seeds, recommendations []*models.Track, target models.Platform) []list.Item {
	items := make([]list.Item, 0, len(seeds)+len(recommendations))
	for _, t := range recommendations {
		items = append(items, trackItem{track: t, source: "recommended", target: target})
	}
	for _, t := range seeds {
		items = append(items, trackItem{track: t, source: "seed", target: target})
	}
	return items
}
