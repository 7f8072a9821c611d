// Package messages normalizes the export's conversation threads into ordered
// match and message records.
package messages

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"
	"golang.org/x/text/cases"

	"swipestats/internal/export"
)

// Type classifies a message.
type Type string

const (
	TypeText        Type = "TEXT"
	TypeGif         Type = "GIF"
	TypeGesture     Type = "GESTURE"
	TypeContactCard Type = "CONTACT_CARD"
	TypeActivity    Type = "ACTIVITY"
	TypeOther       Type = "OTHER"
)

// Older exports tag plain text with the number 1.
var typeTable = map[string]Type{
	"":             TypeText,
	"text":         TypeText,
	"1":            TypeText,
	"gif":          TypeGif,
	"gesture":      TypeGesture,
	"contact_card": TypeContactCard,
	"activity":     TypeActivity,
}

var foldCase = cases.Fold()

// Match is one normalized conversation thread.
type Match struct {
	Order   int    `json:"order"`
	MatchID string `json:"match_id"`

	TotalMessageCount int `json:"total_message_count"`
	TextCount         int `json:"text_count"`
	GifCount          int `json:"gif_count"`
	GestureCount      int `json:"gesture_count"`
	ContactCardCount  int `json:"contact_card_count"`
	ActivityCount     int `json:"activity_count"`
	OtherCount        int `json:"other_count"`

	// Nil for ghosted matches.
	FirstMessageSentAt *time.Time `json:"first_message_sent_at"`
	LastMessageSentAt  *time.Time `json:"last_message_sent_at"`

	Messages []Message `json:"messages,omitempty"`
}

// Ghosted reports whether no message was exchanged.
func (m Match) Ghosted() bool {
	return len(m.Messages) == 0
}

// Message is one normalized message. Order is its position in the thread after
// timestamp-less messages were dropped.
type Message struct {
	MatchOrder int    `json:"match_order"`
	Order      int    `json:"order"`
	To         int    `json:"to"`
	From       string `json:"from"`
	Content    string `json:"content"`
	CharCount  int    `json:"char_count"`
	Type       Type   `json:"type"`

	SentAt              time.Time `json:"sent_at"`
	TimeSincePreviousMs int64     `json:"time_since_previous_ms"`
	TimeSincePrevious   string    `json:"time_since_previous"`
}

// ClassifyType maps a raw type tag, string or number, to a Type. Absent tags are
// text and unknown tags fall into TypeOther.
func ClassifyType(raw json.RawMessage) Type {
	tag := strings.TrimSpace(string(raw))
	if tag == "null" {
		tag = ""
	}
	if strings.HasPrefix(tag, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return TypeOther
		}
		tag = s
	}

	tag = foldCase.String(strings.TrimSpace(tag))
	tag = strings.NewReplacer("-", "_", " ", "_").Replace(tag)

	if t, ok := typeTable[tag]; ok {
		return t
	}
	return TypeOther
}

// Transform normalizes the raw match list. The export lists matches newest first;
// the result is chronological, with Order following the first message time.
// Ghosted matches have no timestamp and keep their reversed position.
func Transform(logger *slog.Logger, raw []export.RawMatch) ([]Match, error) {
	matches := make([]Match, 0, len(raw))

	for i := len(raw) - 1; i >= 0; i-- {
		match, err := transformMatch(logger, raw[i], i)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	sortByFirstMessage(matches)

	for i := range matches {
		matches[i].Order = i
		for j := range matches[i].Messages {
			matches[i].Messages[j].MatchOrder = i
		}
	}

	return matches, nil
}

func transformMatch(logger *slog.Logger, raw export.RawMatch, index int) (Match, error) {
	match := Match{MatchID: raw.MatchID}
	thread := make([]Message, 0, len(raw.Messages))

	for j, rm := range raw.Messages {
		if strings.TrimSpace(rm.SentDate) == "" {
			logger.Debug("Dropping message without timestamp",
				slog.String("match_id", raw.MatchID),
				slog.Int("message_index", j))
			continue
		}

		field := fmt.Sprintf("Messages[%d].messages[%d].sent_date", index, j)
		sentAt, err := export.ParseTimestamp(field, rm.SentDate)
		if err != nil {
			return Match{}, err
		}

		content := html.UnescapeString(rm.Message)
		thread = append(thread, Message{
			To:        rm.To,
			From:      rm.From,
			Content:   content,
			CharCount: utf8.RuneCountInString(content),
			Type:      ClassifyType(rm.Type),
			SentAt:    sentAt,
		})
	}

	slices.SortStableFunc(thread, func(a, b Message) int {
		return a.SentAt.Compare(b.SentAt)
	})

	for j := range thread {
		msg := &thread[j]
		msg.Order = j
		if j > 0 {
			prev := thread[j-1].SentAt
			msg.TimeSincePreviousMs = msg.SentAt.Sub(prev).Milliseconds()
			msg.TimeSincePrevious = humanize.RelTime(prev, msg.SentAt, "later", "earlier")
		}
		match.count(msg.Type)
	}

	match.Messages = thread
	match.TotalMessageCount = len(thread)
	if len(thread) > 0 {
		first := thread[0].SentAt
		last := thread[len(thread)-1].SentAt
		match.FirstMessageSentAt = &first
		match.LastMessageSentAt = &last
	}

	return match, nil
}

func (m *Match) count(t Type) {
	switch t {
	case TypeText:
		m.TextCount++
	case TypeGif:
		m.GifCount++
	case TypeGesture:
		m.GestureCount++
	case TypeContactCard:
		m.ContactCardCount++
	case TypeActivity:
		m.ActivityCount++
	default:
		m.OtherCount++
	}
}

// sortByFirstMessage orders the messaged matches by their first message among the
// slots they already occupy. Ghosted matches do not move.
func sortByFirstMessage(matches []Match) {
	var slots []int
	var messaged []Match
	for i, m := range matches {
		if !m.Ghosted() {
			slots = append(slots, i)
			messaged = append(messaged, m)
		}
	}

	slices.SortStableFunc(messaged, func(a, b Match) int {
		return a.FirstMessageSentAt.Compare(*b.FirstMessageSentAt)
	})

	for k, slot := range slots {
		matches[slot] = messaged[k]
	}
}

// Flatten returns every message of the matches in match then thread order.
func Flatten(matches []Match) []Message {
	var total int
	for _, m := range matches {
		total += len(m.Messages)
	}
	out := make([]Message, 0, total)
	for _, m := range matches {
		out = append(out, m.Messages...)
	}
	return out
}
