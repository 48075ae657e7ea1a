package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Layouts tender pages commonly use, day-first formats before the lenient
// parser so "02.01.2026" stays the 2nd of January.
var layouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02.01.2006",
	"02/01/2006",
	"02-01-2006",
	"2006/01/02",
	"2 Jan 2006",
	"2 January 2006",
}

// Parse interprets a date string from scraped or classifier output. Known
// layouts are tried first, then dateparse handles the long tail.
func Parse(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "n/a") {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", raw, err)
	}
	return t, nil
}

// DaysBetween counts whole calendar days from a to b, negative when b
// precedes a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// Day truncates a timestamp to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
