package dateparse

import (
	"errors"
	"testing"
	"time"
)

// Fixed reference time: Wednesday, 2024-03-13 12:00:00 UTC
var testNow = time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC)

func TestParseEventDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024-03-01", "2024-03-01"},
		{"01/03/2024", "2024-03-01"},
		{"1/3/2024", "2024-03-01"},
		{"today", "2024-03-13"},
		{"TODAY", "2024-03-13"},
		{" yesterday ", "2024-03-12"},
		{"-0d", "2024-03-13"},
		{"-1d", "2024-03-12"},
		{"-13d", "2024-02-29"},
		{"-2w", "2024-02-28"},
		{"2024-03-13", "2024-03-13"},
	}
	for _, tt := range tests {
		got, err := ParseEventDateFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseEventDateFrom(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if s := got.Format(layout); s != tt.want {
			t.Errorf("ParseEventDateFrom(%q) = %s, want %s", tt.input, s, tt.want)
		}
		if got.Hour() != 0 || got.Location() != time.UTC {
			t.Errorf("ParseEventDateFrom(%q) = %v, want midnight UTC", tt.input, got)
		}
	}
}

func TestParseEventDate_NaturalLanguage(t *testing.T) {
	got, err := ParseEventDateFrom("last friday", testNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Weekday() != time.Friday || !got.Before(testNow) {
		t.Errorf("last friday = %s", got.Format(layout))
	}
}

func TestParseEventDate_RejectsFuture(t *testing.T) {
	for _, in := range []string{"2024-03-14", "15/03/2024", "2030-01-01"} {
		_, err := ParseEventDateFrom(in, testNow)
		if !errors.Is(err, ErrFutureDate) {
			t.Errorf("ParseEventDateFrom(%q): expected ErrFutureDate, got %v", in, err)
		}
	}
}

func TestParseEventDate_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "-3x", "not a date at all", "2024-13-01"} {
		if _, err := ParseEventDateFrom(in, testNow); err == nil {
			t.Errorf("ParseEventDateFrom(%q): expected error", in)
		}
	}
}
