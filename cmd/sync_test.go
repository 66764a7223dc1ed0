package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marcus/fueltrack/internal/models"
	fuelsync "github.com/marcus/fueltrack/internal/sync"
)

func TestFormatDrainResultSkipped(t *testing.T) {
	tests := map[string]string{
		"offline":      "Offline",
		"unconfigured": "No remote configured",
		"empty":        "Nothing to sync",
		"busy":         "Skipped: busy",
	}
	for reason, want := range tests {
		got := formatDrainResult(fuelsync.DrainResult{Skipped: true, SkipReason: reason})
		assert.True(t, strings.HasPrefix(got, want), "%s: %q", reason, got)
	}
}

func TestFormatDrainResultCounts(t *testing.T) {
	got := formatDrainResult(fuelsync.DrainResult{Pushed: 3})
	assert.Equal(t, "Pushed 3", got)

	got = formatDrainResult(fuelsync.DrainResult{Pushed: 2, Dropped: 1, Failed: 4, Escalated: 1, CollectionID: "sheet-1"})
	assert.Equal(t, "Pushed 2, dropped 1, failed 4, 1 moved to errors\nCreated spreadsheet sheet-1", got)
}

func TestFormatDrainPass(t *testing.T) {
	p := models.DrainPass{
		Trigger:   "interval",
		Pushed:    5,
		Error:     "remote failure",
		StartedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local),
		Duration:  1500 * time.Millisecond,
	}
	got := formatDrainPass(p)
	assert.Contains(t, got, "2024-03-15 10:00:00")
	assert.Contains(t, got, "pushed=5")
	assert.Contains(t, got, "1.5s")
	assert.Contains(t, got, "remote failure")
}
