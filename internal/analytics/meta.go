package analytics

import (
	"time"

	"swipestats/internal/conversations"
	"swipestats/internal/messages"
	"swipestats/internal/pkg/stats"
	"swipestats/internal/timeframe"
	"swipestats/internal/usage"
)

// PeriodKind names the granularity a ProfileMeta was computed for.
type PeriodKind string

const (
	PeriodAll   PeriodKind = "all"
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
)

// ParsePeriodKind converts a query value into a PeriodKind, defaulting to all.
func ParsePeriodKind(s string) (PeriodKind, bool) {
	switch PeriodKind(s) {
	case "", PeriodAll:
		return PeriodAll, true
	case PeriodMonth:
		return PeriodMonth, true
	case PeriodYear:
		return PeriodYear, true
	}
	return "", false
}

// Range is the inclusive date range a ProfileMeta covers. Key is "all", YYYY-MM or YYYY.
type Range struct {
	Kind PeriodKind
	Key  string
	From time.Time
	To   time.Time
}

// ProfileMeta is the composed statistics record for one profile over one range.
type ProfileMeta struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	ProfileID string     `gorm:"not null;index:idx_profile_meta_profile_period" json:"profile_id,omitempty"`
	Period    PeriodKind `gorm:"not null;index:idx_profile_meta_profile_period" json:"period"`
	Key       string     `gorm:"column:period_key;not null" json:"key"`
	From      time.Time  `gorm:"column:range_from;not null" json:"from"`
	To        time.Time  `gorm:"column:range_to;not null" json:"to"`

	DaysInPeriod                int `json:"days_in_period"`
	DaysActive                  int `json:"days_active"`
	DaysInactive                int `json:"days_inactive"`
	DaysMissingFromOriginalData int `json:"days_missing_from_original_data"`
	LongestActiveStreak         int `json:"longest_active_streak"`
	LongestGap                  int `json:"longest_gap"`

	AppOpensTotal         int `json:"app_opens_total"`
	MatchesTotal          int `json:"matches_total"`
	SwipeLikesTotal       int `json:"swipe_likes_total"`
	SwipeSuperLikesTotal  int `json:"swipe_super_likes_total"`
	SwipePassesTotal      int `json:"swipe_passes_total"`
	SwipesCombinedTotal   int `json:"swipes_combined_total"`
	MessagesSentTotal     int `json:"messages_sent_total"`
	MessagesReceivedTotal int `json:"messages_received_total"`

	MatchRate        float64 `json:"match_rate"`
	LikeRate         float64 `json:"like_rate"`
	MessagesSentRate float64 `json:"messages_sent_rate"`
	EngagementRate   float64 `json:"engagement_rate"`
	ResponseRate     float64 `json:"response_rate"`

	AppOpensPerDay         float64 `json:"app_opens_per_day"`
	MatchesPerDay          float64 `json:"matches_per_day"`
	SwipeLikesPerDay       float64 `json:"swipe_likes_per_day"`
	SwipePassesPerDay      float64 `json:"swipe_passes_per_day"`
	SwipesCombinedPerDay   float64 `json:"swipes_combined_per_day"`
	MessagesSentPerDay     float64 `json:"messages_sent_per_day"`
	MessagesReceivedPerDay float64 `json:"messages_received_per_day"`

	MedianAppOpens         int `json:"median_app_opens"`
	MedianMatches          int `json:"median_matches"`
	MedianSwipeLikes       int `json:"median_swipe_likes"`
	MedianSwipePasses      int `json:"median_swipe_passes"`
	MedianSwipesCombined   int `json:"median_swipes_combined"`
	MedianMessagesSent     int `json:"median_messages_sent"`
	MedianMessagesReceived int `json:"median_messages_received"`

	// Peak dates are nil while the metric never rose above zero.
	PeakAppOpens             int        `json:"peak_app_opens"`
	PeakAppOpensDate         *time.Time `json:"peak_app_opens_date"`
	PeakMatches              int        `json:"peak_matches"`
	PeakMatchesDate          *time.Time `json:"peak_matches_date"`
	PeakSwipeLikes           int        `json:"peak_swipe_likes"`
	PeakSwipeLikesDate       *time.Time `json:"peak_swipe_likes_date"`
	PeakSwipePasses          int        `json:"peak_swipe_passes"`
	PeakSwipePassesDate      *time.Time `json:"peak_swipe_passes_date"`
	PeakSwipesCombined       int        `json:"peak_swipes_combined"`
	PeakSwipesCombinedDate   *time.Time `json:"peak_swipes_combined_date"`
	PeakMessagesSent         int        `json:"peak_messages_sent"`
	PeakMessagesSentDate     *time.Time `json:"peak_messages_sent_date"`
	PeakMessagesReceived     int        `json:"peak_messages_received"`
	PeakMessagesReceivedDate *time.Time `json:"peak_messages_received_date"`

	conversations.Stats `gorm:"embedded"`
}

func (ProfileMeta) TableName() string {
	return "profile_meta"
}

// peak tracks a running maximum; ties keep the first date.
type peak struct {
	value int
	date  *time.Time
}

func (p *peak) observe(value int, date time.Time) {
	if value > p.value {
		p.value = value
		d := date
		p.date = &d
	}
}

// series collects one metric's daily values for the medians.
type series struct {
	appOpens, matches, likes, passes, swipes, sent, received []int
}

func newSeries(n int) series {
	return series{
		appOpens: make([]int, 0, n),
		matches:  make([]int, 0, n),
		likes:    make([]int, 0, n),
		passes:   make([]int, 0, n),
		swipes:   make([]int, 0, n),
		sent:     make([]int, 0, n),
		received: make([]int, 0, n),
	}
}

// Compose reduces the records and matches of one range into a ProfileMeta. The
// records must be ascending by date. Rates use the range totals. DaysInPeriod
// counts the usage days inside the range, so a range the export never covered
// has none.
func Compose(r Range, records []usage.Record, matches []messages.Match) ProfileMeta {
	meta := ProfileMeta{
		Period:       r.Kind,
		Key:          r.Key,
		From:         r.From,
		To:           r.To,
		DaysInPeriod: len(records),
	}

	var (
		peakAppOpens, peakMatches, peakLikes, peakPasses peak
		peakSwipes, peakSent, peakReceived               peak
		values                                           = newSeries(len(records))
		streak                                           int
		lastPresent                                      *time.Time
	)

	for _, rec := range records {
		meta.AppOpensTotal += rec.AppOpens
		meta.MatchesTotal += rec.Matches
		meta.SwipeLikesTotal += rec.SwipeLikes
		meta.SwipeSuperLikesTotal += rec.SwipeSuperLikes
		meta.SwipePassesTotal += rec.SwipePasses
		meta.SwipesCombinedTotal += rec.SwipesCombined
		meta.MessagesSentTotal += rec.MessagesSent
		meta.MessagesReceivedTotal += rec.MessagesReceived

		if rec.ActiveUser {
			meta.DaysActive++
		} else {
			meta.DaysInactive++
		}

		peakAppOpens.observe(rec.AppOpens, rec.Date)
		peakMatches.observe(rec.Matches, rec.Date)
		peakLikes.observe(rec.SwipeLikes, rec.Date)
		peakPasses.observe(rec.SwipePasses, rec.Date)
		peakSwipes.observe(rec.SwipesCombined, rec.Date)
		peakSent.observe(rec.MessagesSent, rec.Date)
		peakReceived.observe(rec.MessagesReceived, rec.Date)

		values.appOpens = append(values.appOpens, rec.AppOpens)
		values.matches = append(values.matches, rec.Matches)
		values.likes = append(values.likes, rec.SwipeLikes)
		values.passes = append(values.passes, rec.SwipePasses)
		values.swipes = append(values.swipes, rec.SwipesCombined)
		values.sent = append(values.sent, rec.MessagesSent)
		values.received = append(values.received, rec.MessagesReceived)

		if rec.DateIsMissingFromOriginalData {
			meta.DaysMissingFromOriginalData++
			continue
		}

		// Streaks and gaps run over the days the export actually recorded.
		if lastPresent == nil {
			streak = 1
		} else if diff := timeframe.CalendarDaysBetween(*lastPresent, rec.Date); diff > 1 {
			meta.LongestActiveStreak = max(meta.LongestActiveStreak, streak)
			meta.LongestGap = max(meta.LongestGap, diff-1)
			streak = 1
		} else {
			streak++
		}
		date := rec.Date
		lastPresent = &date
	}
	meta.LongestActiveStreak = max(meta.LongestActiveStreak, streak)

	meta.MatchRate = stats.Ratio(meta.MatchesTotal, meta.SwipeLikesTotal)
	meta.LikeRate = stats.Ratio(meta.SwipeLikesTotal, meta.SwipesCombinedTotal)
	meta.MessagesSentRate = stats.Ratio(meta.MessagesSentTotal, meta.MessagesSentTotal+meta.MessagesReceivedTotal)
	meta.EngagementRate = stats.Ratio(meta.SwipeLikesTotal+meta.SwipePassesTotal+meta.MessagesSentTotal, meta.AppOpensTotal)
	meta.ResponseRate = stats.Ratio(meta.MessagesSentTotal, meta.MessagesReceivedTotal)

	meta.AppOpensPerDay = stats.Ratio(meta.AppOpensTotal, meta.DaysInPeriod)
	meta.MatchesPerDay = stats.Ratio(meta.MatchesTotal, meta.DaysInPeriod)
	meta.SwipeLikesPerDay = stats.Ratio(meta.SwipeLikesTotal, meta.DaysInPeriod)
	meta.SwipePassesPerDay = stats.Ratio(meta.SwipePassesTotal, meta.DaysInPeriod)
	meta.SwipesCombinedPerDay = stats.Ratio(meta.SwipesCombinedTotal, meta.DaysInPeriod)
	meta.MessagesSentPerDay = stats.Ratio(meta.MessagesSentTotal, meta.DaysInPeriod)
	meta.MessagesReceivedPerDay = stats.Ratio(meta.MessagesReceivedTotal, meta.DaysInPeriod)

	meta.MedianAppOpens = stats.Median(values.appOpens)
	meta.MedianMatches = stats.Median(values.matches)
	meta.MedianSwipeLikes = stats.Median(values.likes)
	meta.MedianSwipePasses = stats.Median(values.passes)
	meta.MedianSwipesCombined = stats.Median(values.swipes)
	meta.MedianMessagesSent = stats.Median(values.sent)
	meta.MedianMessagesReceived = stats.Median(values.received)

	meta.PeakAppOpens, meta.PeakAppOpensDate = peakAppOpens.value, peakAppOpens.date
	meta.PeakMatches, meta.PeakMatchesDate = peakMatches.value, peakMatches.date
	meta.PeakSwipeLikes, meta.PeakSwipeLikesDate = peakLikes.value, peakLikes.date
	meta.PeakSwipePasses, meta.PeakSwipePassesDate = peakPasses.value, peakPasses.date
	meta.PeakSwipesCombined, meta.PeakSwipesCombinedDate = peakSwipes.value, peakSwipes.date
	meta.PeakMessagesSent, meta.PeakMessagesSentDate = peakSent.value, peakSent.date
	meta.PeakMessagesReceived, meta.PeakMessagesReceivedDate = peakReceived.value, peakReceived.date

	meta.Stats = conversations.Compute(matches)

	return meta
}
