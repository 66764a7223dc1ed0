// Package output provides styled terminal output helpers (success, error,
// warning, fuel event formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marcus/fueltrack/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	costStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	syncStyles   = map[models.SyncStatus]lipgloss.Style{
		models.SyncPending: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.SyncSynced:  lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		models.SyncError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// OutputMode determines output format
type OutputMode int

const (
	ModeShort OutputMode = iota
	ModeLong
	ModeJSON
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// Subtle renders s in the muted style
func Subtle(s string) string {
	return subtleStyle.Render(s)
}

// Title renders s in bold
func Title(s string) string {
	return titleStyle.Render(s)
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// FormatSyncStatus formats a sync status with color
func FormatSyncStatus(s models.SyncStatus) string {
	style, ok := syncStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(fmt.Sprintf("[%s]", s))
}

// SyncBadge returns a sync status with a symbol, e.g. "✓ SYNCED"
func SyncBadge(s models.SyncStatus) string {
	symbols := map[models.SyncStatus]string{
		models.SyncPending: "○",
		models.SyncSynced:  "✓",
		models.SyncError:   "✗",
	}
	symbol, ok := symbols[s]
	if !ok {
		symbol = "?"
	}
	if style, ok := syncStyles[s]; ok {
		return style.Render(fmt.Sprintf("%s %s", symbol, s))
	}
	return fmt.Sprintf("%s %s", symbol, s)
}

// unit returns the reading unit for an equipment, km when unknown
func unit(eq *models.Equipment) string {
	if eq != nil && eq.Measurement == models.MeasureHours {
		return "h"
	}
	return "km"
}

// FormatReading formats a meter reading with its unit
func FormatReading(v float64, eq *models.Equipment) string {
	return fmt.Sprintf("%.1f %s", v, unit(eq))
}

// FormatConsumption formats distance per liter, or "-" when underived
func FormatConsumption(v float64, eq *models.Equipment) string {
	if v <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f %s/L", v, unit(eq))
}

// FormatMoney formats a currency amount
func FormatMoney(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}

// Cell pads or truncates s to exactly width display columns. Styled
// strings are measured without their escape sequences.
func Cell(s string, width int) string {
	if w := ansi.StringWidth(s); w > width {
		return ansi.Truncate(s, width, "…")
	} else if w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// ShortID returns the first 8 characters of an id
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func siteName(s *models.Site) string {
	if s == nil {
		return models.Placeholder
	}
	return s.Name
}

func equipmentName(e *models.Equipment) string {
	if e == nil {
		return models.Placeholder
	}
	return e.Name
}

// FormatEventShort formats an event on one line
func FormatEventShort(ev *models.FuelEvent, site *models.Site, eq *models.Equipment) string {
	parts := []string{
		titleStyle.Render(ShortID(ev.ID)),
		ev.EventDate.Format("2006-01-02"),
		Cell(equipmentName(eq), 18),
		Cell(siteName(site), 16),
		fmt.Sprintf("%7.1f L", ev.Liters),
		Cell(FormatConsumption(ev.AverageConsumption, eq), 12),
		costStyle.Render(Cell(FormatMoney(ev.TotalCost), 12)),
		FormatSyncStatus(ev.SyncStatus),
	}
	return strings.Join(parts, "  ")
}

// FormatEventLong formats an event with every field
func FormatEventLong(ev *models.FuelEvent, site *models.Site, eq *models.Equipment) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s: %s @ %s", ev.ID, equipmentName(eq), siteName(site))))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Date: %s | Sync: %s\n", ev.EventDate.Format("2006-01-02"), SyncBadge(ev.SyncStatus)))

	prev := "-"
	if ev.PreviousReading != nil {
		prev = FormatReading(*ev.PreviousReading, eq)
	}
	sb.WriteString(fmt.Sprintf("Reading: %s -> %s", prev, FormatReading(ev.CurrentReading, eq)))
	if d := ev.Distance(); d > 0 {
		sb.WriteString(fmt.Sprintf(" (+%.1f %s)", d, unit(eq)))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Fuel: %.2f L %s at %s/L = %s\n",
		ev.Liters, ev.FuelType, FormatMoney(ev.PricePerLiter), costStyle.Render(FormatMoney(ev.TotalCost))))
	sb.WriteString(fmt.Sprintf("Consumption: %s", FormatConsumption(ev.AverageConsumption, eq)))
	if ev.CostPerUnit > 0 {
		sb.WriteString(fmt.Sprintf(" | Cost: %s/%s", FormatMoney(ev.CostPerUnit), unit(eq)))
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Operator: %s\n", ev.OperatorName))
	if ev.InvoiceNumber != "" || ev.RequisitionNumber != "" {
		sb.WriteString(fmt.Sprintf("Invoice: %s | Requisition: %s\n", ev.InvoiceNumber, ev.RequisitionNumber))
	}

	if ev.Notes != "" {
		sb.WriteString("\n")
		sb.WriteString(subtleStyle.Render("Notes:"))
		sb.WriteString("\n")
		sb.WriteString(IndentString(ev.Notes, 2))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	updated := FormatTimeAgo(ev.UpdatedAt)
	if ev.LastUpdatedBy != "" {
		updated += " by " + ev.LastUpdatedBy
	}
	sb.WriteString(subtleStyle.Render("Updated " + updated))
	sb.WriteString("\n")
	return sb.String()
}

// FormatOutboxEntry formats a queued mutation on one line
func FormatOutboxEntry(e *models.OutboxEntry) string {
	last := "never"
	if e.LastAttempt != nil {
		last = FormatTimeAgo(*e.LastAttempt)
	}
	return fmt.Sprintf("#%-5d %-9s %-6s %s  retries=%d  last=%s",
		e.ID, e.EntityType, e.Action, ShortID(e.EntityID), e.RetryCount, last)
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nPENDING:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	indent := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
