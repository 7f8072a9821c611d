package usage

import (
	"time"

	"swipestats/internal/pkg/stats"
	"swipestats/internal/timeframe"
)

// Record is a normalized day plus its derived per-day rates.
type Record struct {
	Day

	SwipesCombined   int
	MatchRate        float64
	LikeRate         float64
	MessagesSentRate float64
	EngagementRate   float64
	ResponseRate     float64
	UserAgeThisDay   int
}

// BuildRecord derives the per-day fields. Every rate is zero when its denominator is.
func BuildRecord(day Day, birthDate time.Time) Record {
	swipes := day.SwipeLikes + day.SwipePasses

	return Record{
		Day:              day,
		SwipesCombined:   swipes,
		MatchRate:        stats.Ratio(day.Matches, day.SwipeLikes),
		LikeRate:         stats.Ratio(day.SwipeLikes, swipes),
		MessagesSentRate: stats.Ratio(day.MessagesSent, day.MessagesSent+day.MessagesReceived),
		EngagementRate:   stats.Ratio(day.SwipeLikes+day.SwipePasses+day.MessagesSent, day.AppOpens),
		ResponseRate:     stats.Ratio(day.MessagesSent, day.MessagesReceived),
		UserAgeThisDay:   timeframe.AgeOn(birthDate, day.Date),
	}
}

// BuildRecords runs BuildRecord over a normalized series, keeping its order.
func BuildRecords(days []Day, birthDate time.Time) []Record {
	records := make([]Record, len(days))
	for i, day := range days {
		records[i] = BuildRecord(day, birthDate)
	}
	return records
}
