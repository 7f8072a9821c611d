// Package conversations aggregates normalized matches into conversation-level
// statistics.
package conversations

import (
	"time"

	"swipestats/internal/messages"
	"swipestats/internal/pkg/stats"
	"swipestats/internal/timeframe"
)

// MaxTolerableGap is the longest silence a thread may contain and still count for
// the two-week-max longest conversation.
const MaxTolerableGap = 14 * 24 * time.Hour

// Stats is the conversation aggregate for a set of matches. It is recomputed for
// every subset and has no identity of its own.
type Stats struct {
	NumberOfConversations             int `json:"number_of_conversations"`
	NumberOfConversationsWithMessages int `json:"number_of_conversations_with_messages"`
	NumberOfGhostings                 int `json:"number_of_ghostings"`
	MessagesTotal                     int `json:"messages_total"`

	LongestConversationInMessages               int `json:"longest_conversation_in_messages"`
	LongestConversationInMessagesDays           int `json:"longest_conversation_in_messages_days"`
	LongestConversationInDays                   int `json:"longest_conversation_in_days"`
	LongestConversationInDaysMessages           int `json:"longest_conversation_in_days_messages"`
	LongestConversationInDaysTwoWeekMax         int `json:"longest_conversation_in_days_two_week_max"`
	LongestConversationInDaysTwoWeekMaxMessages int `json:"longest_conversation_in_days_two_week_max_messages"`

	MedianConversationLengthInMessages  int     `json:"median_conversation_length_in_messages"`
	MedianConversationLengthInDays      int     `json:"median_conversation_length_in_days"`
	AverageConversationLengthInMessages float64 `json:"average_conversation_length_in_messages"`
	AverageConversationLengthInDays     float64 `json:"average_conversation_length_in_days"`

	NumberOfOneMessageConversations  int `json:"number_of_one_message_conversations"`
	PercentOfOneMessageConversations int `json:"percent_of_one_message_conversations"`
}

// Compute aggregates the matches. An empty list yields all-zero stats.
func Compute(matches []messages.Match) Stats {
	var s Stats
	if len(matches) == 0 {
		return s
	}

	s.NumberOfConversations = len(matches)
	days := make([]int, 0, len(matches))
	counts := make([]int, 0, len(matches))

	for _, m := range matches {
		count := len(m.Messages)
		if count == 0 {
			s.NumberOfGhostings++
			days = append(days, 0)
			counts = append(counts, 0)
			continue
		}

		s.NumberOfConversationsWithMessages++
		s.MessagesTotal += count
		if count == 1 {
			s.NumberOfOneMessageConversations++
		}

		duration := timeframe.FullDaysBetween(m.Messages[0].SentAt, m.Messages[count-1].SentAt)
		days = append(days, duration)
		counts = append(counts, count)

		if count > s.LongestConversationInMessages {
			s.LongestConversationInMessages = count
			s.LongestConversationInMessagesDays = duration
		}
		if duration > s.LongestConversationInDays {
			s.LongestConversationInDays = duration
			s.LongestConversationInDaysMessages = count
		}
		if maxGap(m.Messages) < MaxTolerableGap && duration > s.LongestConversationInDaysTwoWeekMax {
			s.LongestConversationInDaysTwoWeekMax = duration
			s.LongestConversationInDaysTwoWeekMaxMessages = count
		}
	}

	// stats.Median sorts its own copy, so the two orderings never share a slice.
	s.MedianConversationLengthInDays = stats.Median(days)
	s.MedianConversationLengthInMessages = stats.Median(counts)
	s.AverageConversationLengthInDays = stats.Mean(days)
	s.AverageConversationLengthInMessages = stats.Mean(counts)
	s.PercentOfOneMessageConversations = stats.Percent(s.NumberOfOneMessageConversations, s.NumberOfConversations)

	return s
}

// maxGap is the longest silence between consecutive messages of a thread.
func maxGap(thread []messages.Message) time.Duration {
	var longest time.Duration
	for i := 1; i < len(thread); i++ {
		if gap := thread[i].SentAt.Sub(thread[i-1].SentAt); gap > longest {
			longest = gap
		}
	}
	return longest
}
