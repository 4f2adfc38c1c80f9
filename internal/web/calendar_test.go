package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBuildCalendar(t *testing.T) {
	tests := []struct {
		name  string
		month time.Time
		weeks int
		start time.Time
		end   time.Time
	}{
		// March 2025 starts on a Saturday
		{"six weeks", date(2025, 3, 10), 6, date(2025, 2, 24), date(2025, 4, 7)},
		// February 2021 starts on a Monday and has exactly four weeks
		{"four weeks", date(2021, 2, 1), 4, date(2021, 2, 1), date(2021, 3, 1)},
		{"sunday start", date(2025, 6, 1), 6, date(2025, 5, 26), date(2025, 7, 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := BuildCalendar(tt.month, tt.month, nil, "")
			require.Len(t, c.Weeks, tt.weeks)
			for _, week := range c.Weeks {
				require.Len(t, week, 7)
				assert.Equal(t, time.Monday, week[0].Date.Weekday())
			}
			assert.Equal(t, tt.start, c.Start())
			assert.Equal(t, tt.end, c.End())
			assert.Equal(t, 1, c.Month.Day())
		})
	}
}

func TestBuildCalendarMarksDays(t *testing.T) {
	days := map[string]bool{"2025-03-03": true, "2025-02-28": true}
	c := BuildCalendar(date(2025, 3, 1), time.Date(2025, 3, 15, 23, 30, 0, 0, time.UTC), days, "2025-03-20")

	byKey := map[string]Day{}
	for _, week := range c.Weeks {
		for _, d := range week {
			byKey[d.Key()] = d
		}
	}

	assert.True(t, byKey["2025-03-15"].Today)
	assert.False(t, byKey["2025-03-16"].Today)
	assert.True(t, byKey["2025-03-03"].HasEvents)
	assert.True(t, byKey["2025-02-28"].HasEvents)
	assert.False(t, byKey["2025-02-28"].InMonth)
	assert.Equal(t, "2025-02", byKey["2025-02-28"].MonthKey())
	assert.True(t, byKey["2025-03-20"].Selected)
	assert.True(t, byKey["2025-03-31"].InMonth)
}

func TestCalendarNavigation(t *testing.T) {
	c := BuildCalendar(date(2025, 12, 5), date(2025, 12, 5), nil, "")
	assert.Equal(t, "December 2025", c.Label())
	assert.Equal(t, "2025-11", c.Prev())
	assert.Equal(t, "2026-01", c.Next())

	c = BuildCalendar(date(2025, 1, 31), date(2025, 1, 31), nil, "")
	assert.Equal(t, "2024-12", c.Prev())
	assert.Equal(t, "2025-02", c.Next())
}

func TestParseMonth(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, date(2024, 2, 1), parseMonth("2024-02", now))
	assert.Equal(t, date(2025, 3, 1), parseMonth("", now))
	assert.Equal(t, date(2025, 3, 1), parseMonth("2024-13", now))
	assert.Equal(t, date(2025, 3, 1), parseMonth("garbage", now))
}

func TestParseFormDatetime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2025-03-20T10:30", time.Date(2025, 3, 20, 10, 30, 0, 0, time.UTC), true},
		{"2025-03-20T10:30:15", time.Date(2025, 3, 20, 10, 30, 15, 0, time.UTC), true},
		{"2025-03-20T10:30:00+02:00", time.Date(2025, 3, 20, 8, 30, 0, 0, time.UTC), true},
		{"2025-03-20", date(2025, 3, 20), true},
		{"20/03/2025", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseFormDatetime(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: got %s", tt.in, got)
	}
}
