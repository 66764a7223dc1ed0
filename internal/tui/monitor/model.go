package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marcus/fueltrack/internal/models"
)

// Panel represents which panel is active
type Panel int

const (
	PanelStatus Panel = iota
	PanelHistory
	PanelEvents
)

const panelCount = 3

// Actions are the operations the monitor can trigger. Nil funcs disable
// the matching key.
type Actions struct {
	Online func() bool
	// Sync runs one drain pass and returns a one-line summary.
	Sync func(ctx context.Context) (string, error)
	// Import pulls remote rows and returns a one-line summary.
	Import func(ctx context.Context) (string, error)
}

// Model is the main Bubble Tea model for the monitor TUI
type Model struct {
	Source  Source
	SiteIDs []string
	Actions Actions

	// Window dimensions
	Width  int
	Height int

	// Panel data
	OutboxPending int
	OutboxError   int
	OldestPending time.Duration
	EventCounts   map[models.SyncStatus]int
	History       []models.DrainPass
	Events        []EventRow

	// UI state
	ActivePanel  Panel
	ScrollOffset int // history panel
	ShowHelp     bool
	Filtering    bool
	Busy         string // running action label, empty when idle
	Notice       string
	LastRefresh  time.Time
	Err          error

	table   table.Model
	filter  textinput.Model
	spinner spinner.Model

	// Configuration
	RefreshInterval time.Duration
}

// MinWidth is the minimum terminal width for proper display
const MinWidth = 60

// MinHeight is the minimum terminal height for proper display
const MinHeight = 18

// TickMsg triggers a data refresh
type TickMsg time.Time

// RefreshDataMsg carries refreshed data
type RefreshDataMsg struct {
	OutboxPending int
	OutboxError   int
	OldestPending time.Duration
	EventCounts   map[models.SyncStatus]int
	History       []models.DrainPass
	Events        []EventRow
	Timestamp     time.Time
	Err           error
}

// ActionDoneMsg reports the outcome of a sync or import
type ActionDoneMsg struct {
	Label   string
	Summary string
	Err     error
}

// NewModel creates a new monitor model
func NewModel(src Source, siteIDs []string, actions Actions, interval time.Duration) Model {
	t := table.New(
		table.WithColumns(eventColumns(80)),
		table.WithFocused(false),
	)
	t.SetStyles(tableStyles())

	f := textinput.New()
	f.Placeholder = "equipment, site or operator"
	f.Prompt = "/ "
	f.CharLimit = 64

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		Source:          src,
		SiteIDs:         siteIDs,
		Actions:         actions,
		RefreshInterval: interval,
		ActivePanel:     PanelStatus,
		table:           t,
		filter:          f,
		spinner:         s,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchData(),
		m.scheduleTick(),
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.Filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.resizeTable()
		return m, nil

	case TickMsg:
		return m, tea.Batch(m.fetchData(), m.scheduleTick())

	case RefreshDataMsg:
		m.Err = msg.Err
		if msg.Err == nil {
			m.OutboxPending = msg.OutboxPending
			m.OutboxError = msg.OutboxError
			m.OldestPending = msg.OldestPending
			m.EventCounts = msg.EventCounts
			m.History = msg.History
			m.Events = msg.Events
			m.syncTableRows()
		}
		m.LastRefresh = msg.Timestamp
		return m, nil

	case ActionDoneMsg:
		m.Busy = ""
		if msg.Err != nil {
			m.Notice = fmt.Sprintf("%s failed: %v", msg.Label, msg.Err)
		} else {
			m.Notice = fmt.Sprintf("%s: %s", msg.Label, msg.Summary)
		}
		return m, m.fetchData()

	case spinner.TickMsg:
		if m.Busy == "" {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		return m.focusPanel((m.ActivePanel + 1) % panelCount), nil

	case "shift+tab":
		return m.focusPanel((m.ActivePanel + panelCount - 1) % panelCount), nil

	case "1":
		return m.focusPanel(PanelStatus), nil

	case "2":
		return m.focusPanel(PanelHistory), nil

	case "3":
		return m.focusPanel(PanelEvents), nil

	case "j", "down":
		if m.ActivePanel == PanelHistory {
			m.ScrollOffset++
			return m, nil
		}
		if m.ActivePanel == PanelEvents {
			m.table.MoveDown(1)
		}
		return m, nil

	case "k", "up":
		if m.ActivePanel == PanelHistory {
			if m.ScrollOffset > 0 {
				m.ScrollOffset--
			}
			return m, nil
		}
		if m.ActivePanel == PanelEvents {
			m.table.MoveUp(1)
		}
		return m, nil

	case "/":
		m.Filtering = true
		m = m.focusPanel(PanelEvents)
		cmd := m.filter.Focus()
		return m, cmd

	case "s":
		return m.startAction("sync", m.Actions.Sync)

	case "i":
		return m.startAction("import", m.Actions.Import)

	case "r":
		return m, m.fetchData()

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// handleFilterKey routes keys to the filter input while it is open
func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.Filtering = false
		m.filter.Blur()
		return m, nil
	case "esc":
		m.Filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.syncTableRows()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.syncTableRows()
	return m, cmd
}

func (m Model) focusPanel(p Panel) Model {
	m.ActivePanel = p
	if p == PanelEvents {
		m.table.Focus()
	} else {
		m.table.Blur()
	}
	return m
}

// startAction runs fn in the background unless another action is running
func (m Model) startAction(label string, fn func(context.Context) (string, error)) (tea.Model, tea.Cmd) {
	if fn == nil {
		m.Notice = label + " is not available"
		return m, nil
	}
	if m.Busy != "" {
		m.Notice = m.Busy + " already running"
		return m, nil
	}
	m.Busy = label
	m.Notice = ""
	run := func() tea.Msg {
		summary, err := fn(context.Background())
		return ActionDoneMsg{Label: label, Summary: summary, Err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// fetchData returns a command that fetches all data and sends a RefreshDataMsg
func (m Model) fetchData() tea.Cmd {
	return func() tea.Msg {
		return FetchData(m.Source, m.SiteIDs)
	}
}

func (m Model) online() bool {
	if m.Actions.Online == nil {
		return true
	}
	return m.Actions.Online()
}

// visibleEvents applies the current filter
func (m Model) visibleEvents() []EventRow {
	return filterRows(m.Events, m.filter.Value())
}

func (m *Model) syncTableRows() {
	rows := m.visibleEvents()
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = eventRow(r)
	}
	m.table.SetRows(out)
}

func (m *Model) resizeTable() {
	m.table.SetColumns(eventColumns(m.Width - 4))
	h := m.Height/2 - 4
	if h < 3 {
		h = 3
	}
	m.table.SetHeight(h)
}
