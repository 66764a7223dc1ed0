package db

import (
	"time"

	"github.com/google/uuid"
)

const (
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
	dateLayout      = "2006-01-02"
)

// NewID returns a client-generated identifier. Records are created offline,
// so ids must be unique without consulting the remote.
func NewID() string {
	return uuid.NewString()
}

// formatTimestamp renders t in UTC with fixed-width nanoseconds so that
// lexical order equals chronological order; the previous-reading lookup
// compares these strings directly.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// parseTimestamp tries the stored layout first, then the formats SQLite
// itself produces.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		timestampLayout,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: timestampLayout, Value: s}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return parseTimestamp(s)
}
