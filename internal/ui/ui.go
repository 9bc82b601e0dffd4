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
	"github.com/desertthunder/conductr/internal/models"
	"github.com/desertthunder/conductr/internal/ranking"
	"github.com/desertthunder/conductr/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RankingView ViewState = iota
	PickView
	ConfirmView
	WaitingView
	ResultView
)

// Pipeline holds the operations the picker drives.
type Pipeline struct {
	Rank    func(ctx context.Context) (*ranking.Result, error)
	Handoff func(ctx context.Context, albums []models.AlbumCandidate) (authURL string, err error)
	Wait    func(ctx context.Context) (*tasks.AssemblyJob, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	piece    models.CanonicalPiece
	pipeline Pipeline
	width    int
	height   int
	list     list.Model
	result   *ranking.Result
	authURL  string
	job      *tasks.AssemblyJob
	err      error
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
}

// NewModel creates a picker for piece.
func NewModel(ctx context.Context, piece models.CanonicalPiece, pipeline Pipeline) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.pick

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = piece.PlaylistName()

	return &Model{
		ctx:      ctx,
		view:     RankingView,
		piece:    piece,
		pipeline: pipeline,
		list:     l,
		spinner:  s,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts ranking.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.rank())
}

// Job returns the assembled playlist job, if the flow reached the end.
func (m *Model) Job() *tasks.AssemblyJob {
	return m.job
}

// Err returns the error that ended the flow, if any.
func (m *Model) Err() error {
	return m.err
}

// Selection returns the selected candidates in list order.
func (m *Model) Selection() []models.AlbumCandidate {
	var out []models.AlbumCandidate
	for _, item := range m.list.Items() {
		if c, ok := item.(candidateItem); ok && c.selected {
			out = append(out, c.album)
		}
	}
	return out
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case spinner.TickMsg:
		if m.view != RankingView && m.view != WaitingView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && m.list.FilterState() != list.Filtering {
			return m, tea.Quit
		}
		switch m.view {
		case PickView:
			return m.handlePickKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}
		return m, nil

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == PickView {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgRanked:
		data := msg.data.(rankedData)
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		m.result = data.result
		items := make([]list.Item, len(data.result.Candidates))
		for i, c := range data.result.Candidates {
			items[i] = candidateItem{album: c}
		}
		m.list.SetItems(items)
		m.err = nil
		m.view = PickView
		return m, nil

	case MsgHandedOff:
		data := msg.data.(handedOffData)
		if data.err != nil {
			m.err = data.err
			m.view = ResultView
			return m, nil
		}
		m.authURL = data.authURL
		m.view = WaitingView
		return m, tea.Batch(m.spinner.Tick, m.wait())

	case MsgAssembled:
		data := msg.data.(assembledData)
		m.job = data.job
		m.err = data.err
		m.view = ResultView
		return m, nil
	}
	return m, nil
}

func (m *Model) handlePickKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.toggle):
		m.toggle()
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.move(-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.move(1)
		return m, nil
	case key.Matches(msg, m.keys.enter):
		if len(m.Selection()) > 0 {
			m.view = ConfirmView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PickView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		return m, m.handoff(m.Selection())
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.restart) && len(m.list.Items()) > 0 {
		m.view = PickView
		m.job = nil
		m.err = nil
		m.authURL = ""
	}
	return m, nil
}

func (m *Model) toggle() {
	i := m.list.Index()
	item, ok := m.list.SelectedItem().(candidateItem)
	if !ok {
		return
	}
	item.selected = !item.selected
	m.list.SetItem(i, item)
}

func (m *Model) move(delta int) {
	items := m.list.Items()
	i := m.list.Index()
	j := i + delta
	if i < 0 || j < 0 || j >= len(items) {
		return
	}
	items[i], items[j] = items[j], items[i]
	m.list.SetItems(items)
	m.list.Select(j)
}

func (m *Model) rank() tea.Cmd {
	return func() tea.Msg {
		result, err := m.pipeline.Rank(m.ctx)
		return rankedMsg(result, err)
	}
}

func (m *Model) handoff(albums []models.AlbumCandidate) tea.Cmd {
	return func() tea.Msg {
		url, err := m.pipeline.Handoff(m.ctx, albums)
		return handedOffMsg(url, err)
	}
}

func (m *Model) wait() tea.Cmd {
	return func() tea.Msg {
		job, err := m.pipeline.Wait(m.ctx)
		return assembledMsg(job, err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case RankingView:
		return fmt.Sprintf("%s Finding recordings of %s...\n", m.spinner.View(), m.piece.PlaylistName())
	case PickView:
		return m.renderPick()
	case ConfirmView:
		return m.renderConfirm()
	case WaitingView:
		return m.renderWaiting()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderPick() string {
	var stats string
	if m.result != nil {
		stats = styles.help.Render(fmt.Sprintf("%d recordings • %d cached • %d classified • %d uncertain",
			len(m.result.Candidates), m.result.CacheHits, m.result.Classified, m.result.Degraded))
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.toggle, m.keys.moveUp, m.keys.moveDown, m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.list.View(), stats, helpView)
}

func (m *Model) renderConfirm() string {
	selection := m.Selection()
	title := styles.title.Render(fmt.Sprintf("Build '%s' from %d recordings?", m.piece.PlaylistName(), len(selection)))

	var b strings.Builder
	for i, c := range selection {
		fmt.Fprintf(&b, "  %d. %s - %s\n", i+1, c.Title, c.ArtistLine())
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderWaiting() string {
	title := styles.title.Render("Waiting for Spotify authorization")
	return fmt.Sprintf("%s\n%s Finish signing in from your browser.\n\n%s\n", title, m.spinner.View(), styles.help.Render(m.authURL))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return fmt.Sprintf("%s\n%s\n%s", styles.err.Render(fmt.Sprintf("Playlist not created: %v", m.err)), m.stepLog(), helpView)
	}
	if m.job == nil {
		return fmt.Sprintf("%s\n\n%s", styles.err.Render("No result available"), helpView)
	}

	title := styles.ok.Render("✓ Playlist created!")
	info := fmt.Sprintf("\n%s\nTracks: %d\n", m.job.PlaylistURL, len(m.job.TrackIDs))

	var notes string
	fallbacks := 0
	for _, sel := range m.job.Selections {
		if sel.Fallback {
			fallbacks++
		}
	}
	if fallbacks > 0 {
		notes += "\n" + styles.warn.Render(fmt.Sprintf("%d albums used a best-guess track range", fallbacks))
	}
	if len(m.job.Skipped) > 0 {
		notes += "\n" + styles.warn.Render(fmt.Sprintf("Skipped %d albums with no readable tracks", len(m.job.Skipped)))
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, notes, helpView)
}

// stepLog lists the job's steps, one per line. It is empty before assembly starts.
func (m *Model) stepLog() string {
	if m.job == nil {
		return ""
	}
	var b strings.Builder
	for _, step := range m.job.Steps {
		b.WriteString(styles.step(step))
		b.WriteByte('\n')
	}
	return b.String()
}
