package output

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// Report tables get unreadable past this width, and wrap badly below the minimum.
const (
	reportWidth    = 100
	minReportWidth = 40
)

// terminalWidth reports the width of stdout, then $COLUMNS, then fallback.
func terminalWidth(fallback int) int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 0 {
		return n
	}
	return fallback
}

// RenderMarkdown styles a report for the terminal. Piped output is left as
// plain markdown.
func RenderMarkdown(text string) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return text, nil
	}
	return RenderMarkdownWithWidth(text, min(terminalWidth(reportWidth), reportWidth))
}

// RenderMarkdownWithWidth styles markdown wrapped at width columns.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width, minReportWidth)),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
