package domain

import (
	"fmt"
	"time"
)

// DefaultTimezone is the named timezone used for every day-boundary
// comparison unless configured otherwise.
const DefaultTimezone = "Europe/Moscow"

// Calendar answers calendar-day questions in a single named timezone.
// "Today", "yesterday" and day starts are always evaluated in its location.
type Calendar struct {
	loc *time.Location
}

// NewCalendar loads the named IANA timezone.
func NewCalendar(name string) (Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("%w: %s: %v", ErrInvalidTimezone, name, err)
	}
	return Calendar{loc: loc}, nil
}

// CalendarIn wraps an already loaded location.
func CalendarIn(loc *time.Location) Calendar {
	return Calendar{loc: loc}
}

// Location returns the calendar's timezone, UTC for the zero Calendar.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// DayStart returns local midnight of the day containing t.
func (c Calendar) DayStart(t time.Time) time.Time {
	local := t.In(c.Location())
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.Location())
}

// SameDay reports whether a and b fall on the same local calendar day.
func (c Calendar) SameDay(a, b time.Time) bool {
	return c.DayStart(a).Equal(c.DayStart(b))
}

// IsYesterday reports whether prev falls on the local day before now.
func (c Calendar) IsYesterday(prev, now time.Time) bool {
	today := c.DayStart(now)
	y, m, d := today.Date()
	yesterday := time.Date(y, m, d-1, 0, 0, 0, 0, c.Location())
	return c.DayStart(prev).Equal(yesterday)
}
