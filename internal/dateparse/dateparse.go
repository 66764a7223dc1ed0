// Package dateparse turns user input into a fuel event date.
package dateparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrFutureDate is returned for dates after today
var ErrFutureDate = errors.New("date is in the future")

const layout = "2006-01-02"

var natural = newNatural()

func newNatural() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseEventDate parses input relative to the current time.
func ParseEventDate(input string) (time.Time, error) {
	return ParseEventDateFrom(input, time.Now())
}

// ParseEventDateFrom parses an event date relative to now and returns it at
// midnight UTC.
//
// Supported formats:
//   - Exact dates: "2024-03-01", "01/03/2024" (day first)
//   - Keywords: "today", "yesterday"
//   - Offsets into the past: "-3d", "-2w"
//   - Natural language: "last friday", "2 days ago"
//
// Dates after today are rejected with ErrFutureDate.
func ParseEventDateFrom(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return time.Time{}, fmt.Errorf("empty date input")
	}

	d, err := parse(input, now)
	if err != nil {
		return time.Time{}, err
	}
	if d.After(dateOf(now)) {
		return time.Time{}, fmt.Errorf("%s: %w", d.Format(layout), ErrFutureDate)
	}
	return d, nil
}

func parse(input string, now time.Time) (time.Time, error) {
	for _, l := range []string{layout, "02/01/2006", "2/1/2006"} {
		if t, err := time.Parse(l, input); err == nil {
			return t, nil
		}
	}

	switch input {
	case "today":
		return dateOf(now), nil
	case "yesterday":
		return dateOf(now.AddDate(0, 0, -1)), nil
	}

	if strings.HasPrefix(input, "-") && len(input) >= 3 {
		suffix := input[len(input)-1]
		n, err := strconv.Atoi(input[1 : len(input)-1])
		if err == nil && n >= 0 {
			switch suffix {
			case 'd':
				return dateOf(now.AddDate(0, 0, -n)), nil
			case 'w':
				return dateOf(now.AddDate(0, 0, -7*n)), nil
			default:
				return time.Time{}, fmt.Errorf("unknown relative unit %q in %q (use d or w)", string(suffix), input)
			}
		}
	}

	r, err := natural.Parse(input, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", input, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized date format: %q", input)
	}
	return dateOf(r.Time), nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
