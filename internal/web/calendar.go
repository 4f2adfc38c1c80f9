package web

import (
	"time"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Day is one cell of the month grid
type Day struct {
	Date      time.Time
	InMonth   bool // false for the leading and trailing days of adjacent months
	Today     bool
	HasEvents bool
	Selected  bool
}

// Key is the day as YYYY-MM-DD
func (d Day) Key() string { return d.Date.Format(dateLayout) }

// MonthKey is the month the day belongs to, as YYYY-MM
func (d Day) MonthKey() string { return d.Date.Format(monthLayout) }

// Calendar is a month laid out in weeks starting on Monday
type Calendar struct {
	Month time.Time // first day of the month, UTC
	Weeks [][]Day
}

// Label is the heading shown above the grid
func (c Calendar) Label() string { return c.Month.Format("January 2006") }

// Prev is the previous month as YYYY-MM
func (c Calendar) Prev() string { return c.Month.AddDate(0, -1, 0).Format(monthLayout) }

// Next is the next month as YYYY-MM
func (c Calendar) Next() string { return c.Month.AddDate(0, 1, 0).Format(monthLayout) }

// Start is the first day shown in the grid
func (c Calendar) Start() time.Time { return c.Weeks[0][0].Date }

// End is the day after the last day shown in the grid
func (c Calendar) End() time.Time {
	last := c.Weeks[len(c.Weeks)-1]
	return last[len(last)-1].Date.AddDate(0, 0, 1)
}

// BuildCalendar lays out the month containing month. eventDays holds the
// YYYY-MM-DD keys of days with events; selected is a YYYY-MM-DD key or "".
func BuildCalendar(month, today time.Time, eventDays map[string]bool, selected string) Calendar {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	// days shown before the 1st so weeks begin on Monday
	offset := (int(first.Weekday()) + 6) % 7
	start := first.AddDate(0, 0, -offset)

	weekCount := (offset + daysInMonth + 6) / 7
	todayKey := today.UTC().Format(dateLayout)

	weeks := make([][]Day, weekCount)
	for w := range weeks {
		week := make([]Day, 7)
		for i := range week {
			date := start.AddDate(0, 0, w*7+i)
			key := date.Format(dateLayout)
			week[i] = Day{
				Date:      date,
				InMonth:   date.Month() == first.Month(),
				Today:     key == todayKey,
				HasEvents: eventDays[key],
				Selected:  key == selected,
			}
		}
		weeks[w] = week
	}

	return Calendar{Month: first, Weeks: weeks}
}

// parseMonth reads a YYYY-MM query value, defaulting to the month of now
func parseMonth(raw string, now time.Time) time.Time {
	if t, err := time.Parse(monthLayout, raw); err == nil {
		return t
	}
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}
