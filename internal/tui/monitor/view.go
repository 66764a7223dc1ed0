package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	// Store errors replace the panels
	if m.Err != nil {
		return m.renderError()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	// Fixed status panel, history takes a third of the rest
	availableHeight := m.Height - 2 // Leave room for footer
	statusHeight := 7
	historyHeight := (availableHeight - statusHeight) / 3
	if historyHeight < 5 {
		historyHeight = 5
	}
	eventsHeight := availableHeight - statusHeight - historyHeight

	panels := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatusPanel(statusHeight),
		m.renderHistoryPanel(historyHeight),
		m.renderEventsPanel(eventsHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, panels, m.renderFooter())
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("fuel monitor (resize for full view)\n\n")
	s.WriteString(m.connectionLabel())
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Outbox: %d pending | %d error\n", m.OutboxPending, m.OutboxError))
	s.WriteString(fmt.Sprintf("Events: %d pending | %d synced | %d error\n",
		m.EventCounts[models.SyncPending],
		m.EventCounts[models.SyncSynced],
		m.EventCounts[models.SyncError]))

	s.WriteString("\nq:quit s:sync r:refresh ?:help")

	return s.String()
}

// renderError renders an error message
func (m Model) renderError() string {
	return fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.Err)
}

// renderStatusPanel renders connectivity and queue state (Panel 1)
func (m Model) renderStatusPanel(height int) string {
	var content strings.Builder

	status := m.connectionLabel()
	if m.Busy != "" {
		status += "  " + m.spinner.View() + " " + m.Busy + "..."
	}
	content.WriteString(status)
	content.WriteString("\n")

	content.WriteString(fmt.Sprintf("%s %d pending  %d error",
		titleStyle.Render("Outbox:"), m.OutboxPending, m.OutboxError))
	if m.OldestPending > 0 {
		content.WriteString(subtleStyle.Render(fmt.Sprintf("  (oldest %s)", formatAge(m.OldestPending))))
	}
	content.WriteString("\n")

	content.WriteString(titleStyle.Render("Events:"))
	for _, s := range []models.SyncStatus{models.SyncPending, models.SyncSynced, models.SyncError} {
		content.WriteString(fmt.Sprintf(" %s %d ", formatSyncStatus(s), m.EventCounts[s]))
	}
	content.WriteString("\n")

	if m.Notice != "" {
		content.WriteString(noticeStyle.Render(m.Notice))
		content.WriteString("\n")
	}

	return m.wrapPanel("STATUS", content.String(), height, PanelStatus)
}

// renderHistoryPanel renders recent drain passes (Panel 2)
func (m Model) renderHistoryPanel(height int) string {
	var content strings.Builder

	if len(m.History) == 0 {
		content.WriteString(subtleStyle.Render("No sync passes yet"))
		return m.wrapPanel("SYNC HISTORY", content.String(), height, PanelHistory)
	}

	offset := m.ScrollOffset
	if offset > len(m.History)-1 {
		offset = len(m.History) - 1
	}
	visible := m.visibleItems(len(m.History), offset, height-3)
	for i := offset; i < offset+visible; i++ {
		content.WriteString(m.formatDrain(m.History[i]))
		content.WriteString("\n")
	}

	return m.wrapPanel("SYNC HISTORY", content.String(), height, PanelHistory)
}

// renderEventsPanel renders the events table (Panel 3)
func (m Model) renderEventsPanel(height int) string {
	var content strings.Builder

	if m.Filtering || m.filter.Value() != "" {
		content.WriteString(m.filter.View())
		content.WriteString("\n")
	}

	if len(m.table.Rows()) == 0 {
		content.WriteString(subtleStyle.Render("No fuel events"))
	} else {
		t := m.table
		t.SetHeight(max(height-5, 3))
		content.WriteString(t.View())
	}

	title := fmt.Sprintf("FUEL EVENTS (%d)", len(m.table.Rows()))
	return m.wrapPanel(title, content.String(), height, PanelEvents)
}

func (m Model) connectionLabel() string {
	if m.online() {
		return onlineStyle.Render("● online")
	}
	return offlineStyle.Render("● offline")
}

// formatDrain formats a single sync pass
func (m Model) formatDrain(p models.DrainPass) string {
	timestamp := timestampStyle.Render(p.StartedAt.Local().Format("01-02 15:04:05"))
	trigger := subtleStyle.Render(fmt.Sprintf("%-9s", p.Trigger))
	counts := fmt.Sprintf("pushed %d  dropped %d  failed %d  escalated %d",
		p.Pushed, p.Dropped, p.Failed, p.Escalated)
	line := fmt.Sprintf("%s %s %s %s", timestamp, trigger, counts,
		subtleStyle.Render(p.Duration.Round(time.Millisecond).String()))
	if p.Error != "" {
		line += " " + errorTextStyle.Render(truncateString(p.Error, 40))
	}
	return line
}

// renderFooter renders the key hints and refresh time
func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  tab:switch  s:sync  i:import  /:filter  r:refresh  ?:help")

	errorAlert := ""
	if m.OutboxError > 0 {
		errorAlert = errorAlertStyle.Render(fmt.Sprintf(" [%d NEED ATTENTION] ", m.OutboxError))
	}

	refresh := timestampStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(errorAlert) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}

	return fmt.Sprintf(" %s%s%s%s", keys, strings.Repeat(" ", padding), errorAlert, refresh)
}

// renderHelp renders the help overlay
func (m Model) renderHelp() string {
	help := `
MONITOR TUI - Key Bindings

NAVIGATION:
  Tab / Shift+Tab   Switch between panels
  1 / 2 / 3         Jump to panel
  ↑ / ↓ / j / k     Scroll history or select event

EVENTS:
  /                 Filter by equipment, site or operator
  Enter             Keep filter
  Esc               Clear filter

ACTIONS:
  s                 Sync now
  i                 Import from remote
  r                 Force refresh
  q / Ctrl+C        Quit

Press ? to close help
`
	return helpStyle.Render(help)
}

// wrapPanel wraps content in a panel with title and border
func (m Model) wrapPanel(title, content string, height int, panel Panel) string {
	style := panelStyle
	if m.ActivePanel == panel {
		style = activePanelStyle
	}

	titleStr := panelTitleStyle.Render(title)

	contentWidth := m.Width - 4 // Account for border and padding

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	contentHeight := height - 3 // Title + border
	if contentHeight < 1 {
		contentHeight = 1
	}

	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}

	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = truncateString(line, contentWidth)
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, titleStr, strings.Join(lines, "\n"))

	return style.Width(m.Width - 2).Render(inner)
}

// visibleItems calculates how many items can be shown given scroll offset and height
func (m Model) visibleItems(total, offset, height int) int {
	remaining := total - offset
	if remaining > height {
		return height
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// eventColumns sizes the table columns for width
func eventColumns(width int) []table.Column {
	fixed := 10 + 8 + 10 + 12 + 8 + 14
	name := (width - fixed - 14) / 2
	if name < 10 {
		name = 10
	}
	return []table.Column{
		{Title: "Date", Width: 10},
		{Title: "Equipment", Width: name},
		{Title: "Site", Width: name},
		{Title: "Liters", Width: 8},
		{Title: "Total", Width: 12},
		{Title: "Consumption", Width: 14},
		{Title: "Status", Width: 8},
		{Title: "ID", Width: 10},
	}
}

// eventRow flattens one event into table cells. Cells stay unstyled so
// the table can measure them.
func eventRow(r EventRow) table.Row {
	ev := r.Event
	return table.Row{
		ev.EventDate.Format("2006-01-02"),
		r.Equipment,
		r.Site,
		fmt.Sprintf("%.1f", ev.Liters),
		output.FormatMoney(ev.TotalCost),
		output.FormatConsumption(ev.AverageConsumption, nil),
		string(ev.SyncStatus),
		output.ShortID(ev.ID),
	}
}

// formatAge renders a duration as a short age
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// truncateString truncates a string to maxLen with ellipsis
func truncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return s
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	return output.Cell(s, maxLen)
}

var errorAlertStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("0")).
	Background(errorColor)
