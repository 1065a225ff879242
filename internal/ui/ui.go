package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytmix/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ConfirmView ViewState = iota
	GenerateView
	ResultView
)

// Generator runs one generation, reporting progress on the channel.
type Generator interface {
	Generate(ctx context.Context, req tasks.GenerateRequest, progress chan<- tasks.ProgressUpdate) (*tasks.GenerationResult, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	view      ViewState
	generator Generator
	request   tasks.GenerateRequest
	width     int
	height    int
	spinner   spinner.Model
	trackList list.Model
	progress  tasks.ProgressUpdate
	updates   chan tasks.ProgressUpdate
	done      chan Msg
	result    *tasks.GenerationResult
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a TUI model that runs req through generator once confirmed.
func NewModel(ctx context.Context, generator Generator, req tasks.GenerateRequest) *Model {
	return &Model{
		ctx:       ctx,
		view:      ConfirmView,
		generator: generator,
		request:   req,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.accent)),
		help:      help.New(),
		keys:      newKeyMap(),
	}
}

// Result returns the last generation result, if any.
func (m *Model) Result() *tasks.GenerationResult { return m.result }

// Err returns the last generation error, if any.
func (m *Model) Err() error { return m.err }

// Init implements [tea.Model].
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.view == ResultView {
			m.trackList.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case GenerateView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case spinner.TickMsg:
		if m.view != GenerateView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.progress = msg.data.(tasks.ProgressUpdate)
			return m, m.waitForProgress()
		case MsgGenerationComplete:
			outcome := msg.data.(generationOutcome)
			m.result = outcome.result
			m.err = outcome.err
			m.updates = nil
			m.done = nil
			m.view = ResultView
			if m.result != nil {
				m.buildTrackList()
			}
			return m, nil
		}
	}

	if m.view == ResultView && m.result != nil {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ConfirmView:
		return m.renderConfirm()
	case GenerateView:
		return m.renderGenerate()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no):
		return m, tea.Quit
	case key.Matches(msg, m.keys.yes):
		m.view = GenerateView
		return m, tea.Batch(m.spinner.Tick, m.startGeneration())
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.trackList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.trackList, cmd = m.trackList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = ConfirmView
		m.result = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}

	if m.result == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

// startGeneration runs the generator in the background.
//
// The progress channel is closed once Generate returns, after which the outcome is read from done.
func (m *Model) startGeneration() tea.Cmd {
	m.updates = make(chan tasks.ProgressUpdate, 64)
	m.done = make(chan Msg, 1)

	updates, done := m.updates, m.done
	go func() {
		result, err := m.generator.Generate(m.ctx, m.request, updates)
		close(updates)
		done <- generationCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.updates, m.done
	return func() tea.Msg {
		if updates == nil {
			return generationCompleteMsg(m.result, m.err)
		}

		update, ok := <-updates
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) buildTrackList() {
	items := trackItems(m.result.Seeds, m.result.Recommendations, m.result.Target)
	width, height := m.width-4, m.height-10
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 20
	}
	m.trackList = list.New(items, list.NewDefaultDelegate(), width, height)
	m.trackList.Title = fmt.Sprintf("%d tracks", len(m.result.TrackIDs))
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Generate a playlist on %s?", m.request.Target.Name()))

	var b strings.Builder
	fmt.Fprintf(&b, "Seeds: last %d tracks from each service\n", m.request.LastN)
	fmt.Fprintf(&b, "Shuffle: %s\n", yesNo(m.request.Shuffle))
	fmt.Fprintf(&b, "Include originals: %s\n", yesNo(m.request.IncludeOriginals))
	fmt.Fprintf(&b, "Standalone recommendations: %s\n", yesNo(m.request.Standalone))

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderGenerate() string {
	title := styles.title.Render("Generating playlist")
	line := fmt.Sprintf("%s %s", m.spinner.View(), PhaseLabel(m.progress))
	detail := ""
	if m.progress.Message != "" {
		detail = "\n" + styles.help.Render(m.progress.Message)
	}
	return fmt.Sprintf("%s\n%s%s\n", title, line, detail)
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render(fmt.Sprintf("Generation failed: %v", m.err)), helpView)
	}
	if m.result == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	title := styles.ok.Render("✓ Playlist ready")
	info := ""
	if pl := m.result.Playlist; pl != nil {
		info = fmt.Sprintf("\n%s\n%s\n", pl.Name, styles.accent.Render(pl.URL))
	}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, info, m.trackList.View(), helpView)
}

// PhaseLabel describes a progress update in a few words.
func PhaseLabel(u tasks.ProgressUpdate) string {
	counter := ""
	if u.Total > 0 {
		counter = fmt.Sprintf(" (%d/%d)", u.Step, u.Total)
	}

	switch u.Phase {
	case tasks.FetchSeeds:
		return "Fetching seed tracks..."
	case tasks.ResolveSeeds:
		return "Matching seeds across services" + counter
	case tasks.Recommend:
		return "Collecting recommendations" + counter
	case tasks.ResolveRecommendations:
		return "Matching recommendations" + counter
	case tasks.CreatePlaylist:
		return "Creating playlist..."
	case tasks.AddItems:
		return "Adding tracks" + counter
	case tasks.Done:
		return "Done"
	default:
		return "Processing..."
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
