package timeframe

import (
	"fmt"
	"time"
)

// DateStat is one point of a time series keyed by a bucket string.
type DateStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TimeFrameBucketSize is the calendar granularity used to group days.
type TimeFrameBucketSize string

const (
	TimeFrameBucketSizeYear  TimeFrameBucketSize = "year"
	TimeFrameBucketSizeMonth TimeFrameBucketSize = "month"
	TimeFrameBucketSizeDay   TimeFrameBucketSize = "day"
)

// Key layouts for each bucket size
const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
	YearLayout  = "2006"
)

// ParseBucketSize converts a query value into a bucket size.
func ParseBucketSize(s string) (TimeFrameBucketSize, error) {
	switch TimeFrameBucketSize(s) {
	case TimeFrameBucketSizeDay, TimeFrameBucketSizeMonth, TimeFrameBucketSizeYear:
		return TimeFrameBucketSize(s), nil
	default:
		return "", fmt.Errorf("unknown bucket size: %s", s)
	}
}

// Layout returns the Go time layout of the bucket's key.
func (b TimeFrameBucketSize) Layout() string {
	switch b {
	case TimeFrameBucketSizeYear:
		return YearLayout
	case TimeFrameBucketSizeMonth:
		return MonthLayout
	default:
		return DayLayout
	}
}

// ParseDay parses a YYYY-MM-DD key into midnight UTC.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayLayout, s)
}

// FormatDay formats t as a YYYY-MM-DD key.
func FormatDay(t time.Time) string {
	return t.Format(DayLayout)
}

// StartOfDay drops the clock part of t, keeping the calendar date in UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TruncateToBucket returns the first instant of the bucket containing t.
func TruncateToBucket(t time.Time, bucket TimeFrameBucketSize) time.Time {
	day := StartOfDay(t)
	switch bucket {
	case TimeFrameBucketSizeYear:
		return time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	case TimeFrameBucketSizeMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

// BucketKey returns the key of the bucket containing t.
func BucketKey(t time.Time, bucket TimeFrameBucketSize) string {
	return TruncateToBucket(t, bucket).Format(bucket.Layout())
}

// nextBucket advances a truncated bucket start by one bucket.
func nextBucket(t time.Time, bucket TimeFrameBucketSize) time.Time {
	switch bucket {
	case TimeFrameBucketSizeYear:
		return t.AddDate(1, 0, 0)
	case TimeFrameBucketSizeMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// BucketKeys lists every bucket key between from and to inclusive, ascending.
// Buckets are listed even when nothing will fall in them.
func BucketKeys(from, to time.Time, bucket TimeFrameBucketSize) []string {
	if from.After(to) {
		return nil
	}
	keys := []string{}
	end := TruncateToBucket(to, bucket)
	for cur := TruncateToBucket(from, bucket); !cur.After(end); cur = nextBucket(cur, bucket) {
		keys = append(keys, cur.Format(bucket.Layout()))
	}
	return keys
}

// BucketBounds returns the first and last calendar day of the bucket named by key.
func BucketBounds(key string, bucket TimeFrameBucketSize) (time.Time, time.Time, error) {
	start, err := time.Parse(bucket.Layout(), key)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid %s key %q: %w", bucket, key, err)
	}
	return start, nextBucket(start, bucket).AddDate(0, 0, -1), nil
}

// ClampRange intersects [from, to] with [min, max].
func ClampRange(from, to, min, max time.Time) (time.Time, time.Time) {
	if from.Before(min) {
		from = min
	}
	if to.After(max) {
		to = max
	}
	return from, to
}

// CalendarDaysBetween counts calendar-date boundaries from a to b, ignoring the clock.
// It is negative when b is before a.
func CalendarDaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// FullDaysBetween counts complete 24 hour periods from a to b, truncated toward zero.
func FullDaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// EachDay calls fn for every calendar day from first to last inclusive.
func EachDay(first, last time.Time, fn func(day time.Time)) {
	end := StartOfDay(last)
	for day := StartOfDay(first); !day.After(end); day = day.AddDate(0, 0, 1) {
		fn(day)
	}
}

// AgeOn returns the whole years elapsed between birth and day.
func AgeOn(birth, day time.Time) int {
	if birth.IsZero() {
		return 0
	}
	b := StartOfDay(birth)
	d := StartOfDay(day)
	age := d.Year() - b.Year()
	if d.Month() < b.Month() || (d.Month() == b.Month() && d.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// FillSeries turns sparse bucket counts into a continuous series between from and to.
func FillSeries(counts map[string]int, from, to time.Time, bucket TimeFrameBucketSize) []DateStat {
	keys := BucketKeys(from, to, bucket)
	series := make([]DateStat, len(keys))
	for i, key := range keys {
		series[i] = DateStat{Date: key, Count: counts[key]}
	}
	return series
}
