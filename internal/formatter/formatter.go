// package formatter renders generation results and run history as plain text, Markdown, CSV or JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytmix/internal/models"
	"github.com/desertthunder/ytmix/internal/shared"
	"github.com/desertthunder/ytmix/internal/tasks"
)

// Format names an output format.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// ParseFormat accepts text, markdown (md), csv or json. The empty string is text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Render writes result to w in format f.
func Render(w io.Writer, result *tasks.GenerationResult, f Format) error {
	var (
		data []byte
		err  error
	)
	switch f {
	case Text, "":
		data, err = ResultToText(result)
	case Markdown:
		data, err = ResultToMarkdown(result)
	case CSV:
		data, err = ResultToCSV(result)
	case JSON:
		data, err = ResultToJSON(result)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// ResultToText renders the playlist link followed by its seeds and recommendations.
func ResultToText(result *tasks.GenerationResult) ([]byte, error) {
	var buf bytes.Buffer

	if pl := result.Playlist; pl != nil {
		buf.WriteString(fmt.Sprintf("Playlist: %s\n", pl.Name))
		buf.WriteString(fmt.Sprintf("URL: %s\n", pl.URL))
	}
	buf.WriteString(fmt.Sprintf("Service: %s\n", result.Target.Name()))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n", len(result.TrackIDs)))
	if !result.StartedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("Elapsed: %s\n", result.Elapsed().Round(time.Millisecond)))
	}

	writeSection := func(title string, tracks []*models.Track) {
		if len(tracks) == 0 {
			return
		}
		buf.WriteString(fmt.Sprintf("\n%s (%d):\n", title, len(tracks)))
		for i, track := range tracks {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.ArtistName(), track.Title))
		}
	}
	writeSection("Seeds", result.Seeds)
	writeSection("Recommendations", result.Recommendations)

	return buf.Bytes(), nil
}

// ResultToMarkdown renders the result with linked tracks. Tracks missing on the target are listed without a link.
func ResultToMarkdown(result *tasks.GenerationResult) ([]byte, error) {
	var buf bytes.Buffer

	name := "Generated playlist"
	if result.Playlist != nil && result.Playlist.Name != "" {
		name = result.Playlist.Name
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", name))

	if result.Playlist != nil && result.Playlist.URL != "" {
		buf.WriteString(fmt.Sprintf("**Link**: [%s](%s)\n", result.Target.Name(), result.Playlist.URL))
	}
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(result.TrackIDs)))

	writeSection := func(title string, tracks []*models.Track) {
		if len(tracks) == 0 {
			return
		}
		buf.WriteString(fmt.Sprintf("## %s\n\n", title))
		for i, track := range tracks {
			label := fmt.Sprintf("%s - %s", track.ArtistName(), track.Title)
			if id := track.TrackID(result.Target); id != "" {
				label = fmt.Sprintf("[%s](%s)", label, result.Target.TrackURL(id))
			}
			buf.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, label, FormatDuration(track.Duration)))
		}
		buf.WriteString("\n")
	}
	writeSection("Seeds", result.Seeds)
	writeSection("Recommendations", result.Recommendations)

	return buf.Bytes(), nil
}

// ResultToCSV renders one row per track with columns: Source, Title, Artists, Duration, SpotifyID, YouTubeID, URL
func ResultToCSV(result *tasks.GenerationResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Source", "Title", "Artists", "Duration", "SpotifyID", "YouTubeID", "URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	write := func(source string, tracks []*models.Track) error {
		for _, track := range tracks {
			url := ""
			if id := track.TrackID(result.Target); id != "" {
				url = result.Target.TrackURL(id)
			}
			record := []string{
				source,
				track.Title,
				strings.Join(track.Artists, "; "),
				strconv.Itoa(track.Duration),
				track.TrackID(models.Spotify),
				track.TrackID(models.YouTube),
				url,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		return nil
	}
	if err := write("seed", result.Seeds); err != nil {
		return nil, err
	}
	if err := write("recommendation", result.Recommendations); err != nil {
		return nil, err
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ResultToJSON renders the whole result as indented JSON.
func ResultToJSON(result *tasks.GenerationResult) ([]byte, error) {
	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return append(data, '\n'), nil
}

// HistoryToText renders generation runs newest first, one per line.
func HistoryToText(gens []*models.Generation) []byte {
	var buf bytes.Buffer
	if len(gens) == 0 {
		buf.WriteString("No generations yet\n")
		return buf.Bytes()
	}

	for _, g := range gens {
		line := fmt.Sprintf("#%d %s %-9s %-13s", g.Sequence, g.StartedAt.Local().Format("2006-01-02 15:04"), g.Status, g.Target.Name())
		switch g.Status {
		case models.GenerationCompleted:
			line += fmt.Sprintf(" %d tracks %s", g.TrackCount, g.PlaylistURL)
		case models.GenerationFailed:
			line += " " + g.ErrorMessage
		}
		buf.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	return buf.Bytes()
}

// HistoryToJSON renders generation runs as indented JSON.
func HistoryToJSON(gens []*models.Generation) ([]byte, error) {
	if gens == nil {
		gens = []*models.Generation{}
	}
	data, err := shared.MarshalJSON(gens, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteExport renders result in format f to path.
//
// Defaults to {playlist.ID}.{ext} when path is empty.
func WriteExport(result *tasks.GenerationResult, f Format, path string) (string, error) {
	if path == "" {
		id := "playlist"
		if result.Playlist != nil && result.Playlist.ID != "" {
			id = result.Playlist.ID
		}
		path = id + "." + f.Extension()
	}

	var buf bytes.Buffer
	if err := Render(&buf, result, f); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// Extension returns the file extension used for f.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return "md"
	case CSV:
		return "csv"
	case JSON:
		return "json"
	default:
		return "txt"
	}
}

// FormatDuration renders seconds as m:ss. Unknown durations render as "?:??".
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "?:??"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
