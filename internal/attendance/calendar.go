package attendance

import (
	"strings"
	"time"
)

const dayLayout = "2006-01-02"

// Window is the half-open interval [Start, End) of one or more local days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Key is the calendar date of Start. It is the day component of the
// (student, day) uniqueness key.
func (w Window) Key() string {
	return w.Start.Format(dayLayout)
}

// EndKey is the calendar date of End, exclusive.
func (w Window) EndKey() string {
	return w.End.Format(dayLayout)
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Calendar owns the day boundary. Both the tap path and manual entries go
// through the same Calendar so a record can never land on two different
// day keys.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a calendar for loc. A nil loc means time.Local.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{loc: loc}
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	return c.loc
}

// Day returns [localMidnight(t), next local midnight).
func (c Calendar) Day(t time.Time) Window {
	t = t.In(c.loc)
	y, m, d := t.Date()
	return Window{
		Start: time.Date(y, m, d, 0, 0, 0, 0, c.loc),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, c.loc),
	}
}

// ParseDay resolves a submitted date into its day window. Plain dates are
// read in the calendar's location; full timestamps are converted to it and
// their time of day is dropped.
func (c Calendar) ParseDay(s string) (Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Window{}, ErrInvalidDate
	}
	if t, err := time.ParseInLocation(dayLayout, s, c.loc); err == nil {
		return c.Day(t), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return c.Day(t), nil
	}
	return Window{}, ErrInvalidDate
}

// Range returns the window covering the days from first to last inclusive.
func (c Calendar) Range(first, last string) (Window, error) {
	from, err := c.ParseDay(first)
	if err != nil {
		return Window{}, err
	}
	to, err := c.ParseDay(last)
	if err != nil {
		return Window{}, err
	}
	if to.End.Before(from.End) {
		return Window{}, ErrInvalidDate
	}
	return Window{Start: from.Start, End: to.End}, nil
}
