package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"

	"seasonstay/internal/models"
)

var dateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

var dateparserConfig = &dateparser.Configuration{
	Languages:       []string{"fr", "en"},
	DefaultTimezone: time.UTC,
}

// ParseDate reads a day typed by a user. ISO and French numeric layouts are
// tried first, then natural language ("15 juillet 2025", "next monday").
// The result is truncated to midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return day(t), nil
		}
	}

	parsed, err := dateparser.Parse(dateparserConfig, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return day(parsed.Time), nil
}

// NormalizeDates orders a requested stay so Start <= End. A range whose end
// precedes its start collapses to the start day.
func NormalizeDates(start, end time.Time) *models.DateRange {
	start, end = day(start), day(end)
	if end.Before(start) {
		end = start
	}
	return &models.DateRange{Start: start, End: end}
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
