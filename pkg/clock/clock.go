// Package clock provides the fixed-timezone notion of "now" and calendar days
// used for classifying posts and stamping stored rows.
package clock

import (
	"fmt"
	"time"
)

// DayLayout is the layout of target days and publish dates
const DayLayout = "2006-01-02"

// DefaultOffsetHours is the operating timezone offset (UTC+9)
const DefaultOffsetHours = 9

// Clock reports the current instant
type Clock interface {
	Now() time.Time
}

// Location returns a fixed zone for the given UTC offset in hours
func Location(offsetHours int) *time.Location {
	if offsetHours == DefaultOffsetHours {
		return time.FixedZone("KST", offsetHours*3600)
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", offsetHours), offsetHours*3600)
}

// System is the wall clock expressed in a fixed location
type System struct {
	Loc *time.Location
}

// NewSystem returns the wall clock in the given location
func NewSystem(loc *time.Location) *System {
	if loc == nil {
		loc = Location(DefaultOffsetHours)
	}
	return &System{Loc: loc}
}

func (s *System) Now() time.Time {
	return time.Now().In(s.Loc)
}

// Fixed always returns the same instant, advanced only by Advance
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time {
	return f.T
}

// Advance moves the fixed clock forward
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}

// Day formats t as a calendar day in loc
func Day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// Yesterday returns the calendar day before c.Now() in loc
func Yesterday(c Clock, loc *time.Location) string {
	return c.Now().In(loc).AddDate(0, 0, -1).Format(DayLayout)
}

// ParseDay validates a YYYY-MM-DD string
func ParseDay(day string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return t, nil
}
