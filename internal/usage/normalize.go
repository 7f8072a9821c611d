// Package usage turns the export's sparse per-metric day maps into one gap-free
// daily series and derives the per-day usage records.
package usage

import (
	"fmt"
	"time"

	"swipestats/internal/export"
	"swipestats/internal/timeframe"
)

// Activity windows, in days since the last active day.
const (
	activeWindowShort  = 7
	activeWindowMedium = 14
	activeWindowLong   = 30
)

// Day is one calendar day of the profile period. Days missing from the export are
// synthesized with zero counters.
type Day struct {
	Date      time.Time
	DateStamp string

	AppOpens         int
	Matches          int
	SwipeLikes       int
	SwipeSuperLikes  int
	SwipePasses      int
	MessagesSent     int
	MessagesReceived int

	// Keyed off the app-opens map only: a day present in another map but absent
	// from app opens is still flagged missing.
	DateIsMissingFromOriginalData bool

	ActiveUser bool
	// -1 until the first active day.
	DaysSinceLastActive    int
	ActiveUserInLast7Days  bool
	ActiveUserInLast14Days bool
	ActiveUserInLast30Days bool
}

// Period is the inclusive range from first to last recorded app open.
type Period struct {
	First time.Time
	Last  time.Time
}

// Days returns the number of calendar days in the period.
func (p Period) Days() int {
	return timeframe.CalendarDaysBetween(p.First, p.Last) + 1
}

// ProfilePeriod derives the profile period from the app-opens keys.
func ProfilePeriod(appOpens map[string]int) (Period, error) {
	if len(appOpens) == 0 {
		return Period{}, export.ErrNoAppOpens
	}

	var period Period
	for key := range appOpens {
		day, err := timeframe.ParseDay(key)
		if err != nil {
			return Period{}, &export.DateError{Field: "Usage.app_opens", Value: key, Err: err}
		}
		if period.First.IsZero() || day.Before(period.First) {
			period.First = day
		}
		if period.Last.IsZero() || day.After(period.Last) {
			period.Last = day
		}
	}
	return period, nil
}

// Normalize expands the sparse usage maps into one Day per calendar day of the
// profile period, ascending, in a single forward pass.
func Normalize(u export.Usage) ([]Day, Period, error) {
	period, err := ProfilePeriod(u.AppOpens)
	if err != nil {
		return nil, Period{}, err
	}

	for name, series := range u.Series() {
		for key := range series {
			if _, err := timeframe.ParseDay(key); err != nil {
				return nil, Period{}, &export.DateError{Field: "Usage." + name, Value: key, Err: err}
			}
		}
	}

	days := make([]Day, 0, period.Days())
	lastActive := -1

	timeframe.EachDay(period.First, period.Last, func(date time.Time) {
		key := timeframe.FormatDay(date)
		appOpens, recorded := u.AppOpens[key]

		day := Day{
			Date:                          date,
			DateStamp:                     key,
			AppOpens:                      appOpens,
			Matches:                       u.Matches[key],
			SwipeLikes:                    u.SwipeLikes[key],
			SwipeSuperLikes:               u.SuperLikes[key],
			SwipePasses:                   u.SwipePasses[key],
			MessagesSent:                  u.MessagesSent[key],
			MessagesReceived:              u.MessagesReceived[key],
			DateIsMissingFromOriginalData: !recorded,
			ActiveUser:                    appOpens > 0,
			DaysSinceLastActive:           -1,
		}

		index := len(days)
		if day.ActiveUser {
			lastActive = index
		}
		if lastActive >= 0 {
			since := index - lastActive
			day.DaysSinceLastActive = since
			day.ActiveUserInLast7Days = since <= activeWindowShort
			day.ActiveUserInLast14Days = since <= activeWindowMedium
			day.ActiveUserInLast30Days = since <= activeWindowLong
		}

		days = append(days, day)
	})

	if len(days) != period.Days() {
		return nil, Period{}, fmt.Errorf("normalized %d days for a %d day period", len(days), period.Days())
	}

	return days, period, nil
}
