// Package timeframe_test contains tests for the timeframe package
package timeframe_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swipestats/internal/timeframe"
)

func day(s string) time.Time {
	t, err := timeframe.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestBucketKeys(t *testing.T) {
	testCases := []struct {
		name     string
		from, to string
		bucket   timeframe.TimeFrameBucketSize
		expected []string
	}{
		{
			name:     "months across a year boundary",
			from:     "2020-11-15",
			to:       "2021-02-01",
			bucket:   timeframe.TimeFrameBucketSizeMonth,
			expected: []string{"2020-11", "2020-12", "2021-01", "2021-02"},
		},
		{
			name:     "single day range",
			from:     "2021-03-04",
			to:       "2021-03-04",
			bucket:   timeframe.TimeFrameBucketSizeDay,
			expected: []string{"2021-03-04"},
		},
		{
			name:     "years",
			from:     "2019-12-31",
			to:       "2021-01-01",
			bucket:   timeframe.TimeFrameBucketSizeYear,
			expected: []string{"2019", "2020", "2021"},
		},
		{
			name:     "inverted range",
			from:     "2021-01-02",
			to:       "2021-01-01",
			bucket:   timeframe.TimeFrameBucketSizeDay,
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, timeframe.BucketKeys(day(tc.from), day(tc.to), tc.bucket))
		})
	}
}

func TestBucketBounds(t *testing.T) {
	from, to, err := timeframe.BucketBounds("2024-02", timeframe.TimeFrameBucketSizeMonth)
	require.NoError(t, err)
	assert.Equal(t, day("2024-02-01"), from)
	assert.Equal(t, day("2024-02-29"), to)

	from, to, err = timeframe.BucketBounds("2021", timeframe.TimeFrameBucketSizeYear)
	require.NoError(t, err)
	assert.Equal(t, day("2021-01-01"), from)
	assert.Equal(t, day("2021-12-31"), to)

	_, _, err = timeframe.BucketBounds("2021-13", timeframe.TimeFrameBucketSizeMonth)
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2021, 1, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2021, 1, 2, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 1, timeframe.CalendarDaysBetween(a, b))
	assert.Equal(t, 0, timeframe.FullDaysBetween(a, b))
	assert.Equal(t, 20, timeframe.FullDaysBetween(day("2021-01-01"), day("2021-01-21")))
	assert.Equal(t, -1, timeframe.CalendarDaysBetween(b, a))
}

func TestEachDay(t *testing.T) {
	var days []string
	timeframe.EachDay(day("2020-02-27"), day("2020-03-01"), func(d time.Time) {
		days = append(days, timeframe.FormatDay(d))
	})
	assert.Equal(t, []string{"2020-02-27", "2020-02-28", "2020-02-29", "2020-03-01"}, days)
}

func TestAgeOn(t *testing.T) {
	birth := day("1990-06-15")

	assert.Equal(t, 29, timeframe.AgeOn(birth, day("2020-06-14")))
	assert.Equal(t, 30, timeframe.AgeOn(birth, day("2020-06-15")))
	assert.Equal(t, 0, timeframe.AgeOn(time.Time{}, day("2020-06-15")))
	assert.Equal(t, 0, timeframe.AgeOn(birth, day("1980-01-01")))
}

func TestFillSeries(t *testing.T) {
	series := timeframe.FillSeries(map[string]int{"2021-01": 4, "2021-03": 2},
		day("2021-01-10"), day("2021-03-02"), timeframe.TimeFrameBucketSizeMonth)

	assert.Equal(t, []timeframe.DateStat{
		{Date: "2021-01", Count: 4},
		{Date: "2021-02", Count: 0},
		{Date: "2021-03", Count: 2},
	}, series)
}

func TestParseBucketSize(t *testing.T) {
	size, err := timeframe.ParseBucketSize("month")
	require.NoError(t, err)
	assert.Equal(t, timeframe.TimeFrameBucketSizeMonth, size)

	_, err = timeframe.ParseBucketSize("week")
	assert.Error(t, err)
}
