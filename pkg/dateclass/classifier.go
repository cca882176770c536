// Package dateclass labels post timestamps against a target calendar day in
// the operating timezone.
package dateclass

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"tagsync/pkg/clock"
)

// Classification is the position of a post's day relative to the target day
type Classification int

const (
	ParseFailure Classification = iota
	Equal
	Older
	Newer
)

func (c Classification) String() string {
	switch c {
	case Equal:
		return "equal"
	case Older:
		return "older"
	case Newer:
		return "newer"
	default:
		return "parse_failure"
	}
}

// Classifier compares timestamps by calendar day in a fixed location
type Classifier struct {
	loc *time.Location
}

// New creates a classifier for loc. A nil loc uses the default operating zone.
func New(loc *time.Location) *Classifier {
	if loc == nil {
		loc = clock.Location(clock.DefaultOffsetHours)
	}
	return &Classifier{loc: loc}
}

// Location returns the operating timezone
func (c *Classifier) Location() *time.Location {
	return c.loc
}

// Parse reads raw as an instant. Zone-less input is taken as UTC.
func (c *Classifier) Parse(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, true
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Day converts raw to the operating timezone and returns its calendar day
func (c *Classifier) Day(raw string) (string, bool) {
	t, ok := c.Parse(raw)
	if !ok {
		return "", false
	}
	return clock.Day(t, c.loc), true
}

// Classify compares the day of raw with targetDay (YYYY-MM-DD).
// It returns ParseFailure when either side cannot be read.
func (c *Classifier) Classify(raw, targetDay string) Classification {
	if _, err := time.Parse(clock.DayLayout, targetDay); err != nil {
		return ParseFailure
	}
	day, ok := c.Day(raw)
	if !ok {
		return ParseFailure
	}
	// Fixed-width YYYY-MM-DD strings order the same way as the dates.
	switch {
	case day == targetDay:
		return Equal
	case day < targetDay:
		return Older
	default:
		return Newer
	}
}
