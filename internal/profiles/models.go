package profiles

import (
	"time"

	"swipestats/internal/messages"
	"swipestats/internal/models"
	"swipestats/internal/usage"
)

// Profile is the stored profile row.
type Profile struct {
	ID                  string     `gorm:"primaryKey" json:"id"`
	BirthDate           *time.Time `json:"birth_date"`
	CreateDate          *time.Time `json:"create_date"`
	Gender              string     `json:"gender"`
	InterestedIn        string     `json:"interested_in"`
	GenderFilter        string     `json:"gender_filter"`
	AgeFilterMin        int        `json:"age_filter_min"`
	AgeFilterMax        int        `json:"age_filter_max"`
	City                string     `json:"city"`
	Region              string     `json:"region"`
	CountryCode         string     `gorm:"size:2" json:"country_code"`
	Education           string     `json:"education"`
	Bio                 string     `json:"bio"`
	FirstDayOnApp       time.Time  `gorm:"not null" json:"first_day_on_app"`
	LastDayOnApp        time.Time  `gorm:"not null" json:"last_day_on_app"`
	DaysInProfilePeriod int        `json:"days_in_profile_period"`
	ComputeVersion      int        `gorm:"not null;index" json:"compute_version"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// OriginalFile keeps an uploaded export so the profile can be rebuilt from it.
type OriginalFile struct {
	ID        string      `gorm:"primaryKey" json:"id"`
	ProfileID string      `gorm:"not null;index" json:"profile_id"`
	Contents  models.JSON `gorm:"type:blob;not null" json:"-"`
	SizeBytes int         `json:"size_bytes"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
}

// UsageDay is one stored usage record.
type UsageDay struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	ProfileID string    `gorm:"not null;uniqueIndex:idx_usage_days_profile_date" json:"-"`
	Date      time.Time `gorm:"not null;uniqueIndex:idx_usage_days_profile_date" json:"date"`
	DateStamp string    `gorm:"not null" json:"date_stamp"`

	AppOpens         int `json:"app_opens"`
	Matches          int `json:"matches"`
	SwipeLikes       int `json:"swipe_likes"`
	SwipeSuperLikes  int `json:"swipe_super_likes"`
	SwipePasses      int `json:"swipe_passes"`
	SwipesCombined   int `json:"swipes_combined"`
	MessagesSent     int `json:"messages_sent"`
	MessagesReceived int `json:"messages_received"`

	MatchRate        float64 `json:"match_rate"`
	LikeRate         float64 `json:"like_rate"`
	MessagesSentRate float64 `json:"messages_sent_rate"`
	EngagementRate   float64 `json:"engagement_rate"`
	ResponseRate     float64 `json:"response_rate"`

	DateIsMissingFromOriginalData bool `json:"date_is_missing_from_original_data"`
	ActiveUser                    bool `json:"active_user"`
	DaysSinceLastActive           int  `json:"days_since_last_active"`
	ActiveUserInLast7Days         bool `json:"active_user_in_last_7_days"`
	ActiveUserInLast14Days        bool `json:"active_user_in_last_14_days"`
	ActiveUserInLast30Days        bool `json:"active_user_in_last_30_days"`
	UserAgeThisDay                int  `json:"user_age_this_day"`
}

// MatchRecord is one stored match. Its messages are deleted with it.
type MatchRecord struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	ProfileID          string     `gorm:"not null;index" json:"-"`
	Position           int        `gorm:"not null" json:"order"`
	ExternalID         string     `json:"match_id"`
	TotalMessageCount  int        `json:"total_message_count"`
	TextCount          int        `json:"text_count"`
	GifCount           int        `json:"gif_count"`
	GestureCount       int        `json:"gesture_count"`
	ContactCardCount   int        `json:"contact_card_count"`
	ActivityCount      int        `json:"activity_count"`
	OtherCount         int        `json:"other_count"`
	FirstMessageSentAt *time.Time `json:"first_message_sent_at"`
	LastMessageSentAt  *time.Time `json:"last_message_sent_at"`

	Messages []MessageRecord `gorm:"foreignKey:MatchID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// MessageRecord is one stored message.
type MessageRecord struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MatchID             uint      `gorm:"not null;index" json:"-"`
	ProfileID           string    `gorm:"not null;index" json:"-"`
	MatchPosition       int       `json:"match_order"`
	Position            int       `json:"order"`
	Recipient           int       `json:"to"`
	Sender              string    `json:"from"`
	Content             string    `json:"content"`
	CharCount           int       `json:"char_count"`
	Type                string    `gorm:"size:16" json:"type"`
	SentAt              time.Time `gorm:"not null" json:"sent_at"`
	TimeSincePreviousMs int64     `json:"time_since_previous_ms"`
	TimeSincePrevious   string    `json:"time_since_previous"`
}

func (UsageDay) TableName() string      { return "usage_days" }
func (MatchRecord) TableName() string   { return "matches" }
func (MessageRecord) TableName() string { return "messages" }

func newUsageDay(profileID string, r usage.Record) UsageDay {
	return UsageDay{
		ProfileID:                     profileID,
		Date:                          r.Date,
		DateStamp:                     r.DateStamp,
		AppOpens:                      r.AppOpens,
		Matches:                       r.Matches,
		SwipeLikes:                    r.SwipeLikes,
		SwipeSuperLikes:               r.SwipeSuperLikes,
		SwipePasses:                   r.SwipePasses,
		SwipesCombined:                r.SwipesCombined,
		MessagesSent:                  r.MessagesSent,
		MessagesReceived:              r.MessagesReceived,
		MatchRate:                     r.MatchRate,
		LikeRate:                      r.LikeRate,
		MessagesSentRate:              r.MessagesSentRate,
		EngagementRate:                r.EngagementRate,
		ResponseRate:                  r.ResponseRate,
		DateIsMissingFromOriginalData: r.DateIsMissingFromOriginalData,
		ActiveUser:                    r.ActiveUser,
		DaysSinceLastActive:           r.DaysSinceLastActive,
		ActiveUserInLast7Days:         r.ActiveUserInLast7Days,
		ActiveUserInLast14Days:        r.ActiveUserInLast14Days,
		ActiveUserInLast30Days:        r.ActiveUserInLast30Days,
		UserAgeThisDay:                r.UserAgeThisDay,
	}
}

func newMatchRecord(profileID string, m messages.Match) MatchRecord {
	record := MatchRecord{
		ProfileID:          profileID,
		Position:           m.Order,
		ExternalID:         m.MatchID,
		TotalMessageCount:  m.TotalMessageCount,
		TextCount:          m.TextCount,
		GifCount:           m.GifCount,
		GestureCount:       m.GestureCount,
		ContactCardCount:   m.ContactCardCount,
		ActivityCount:      m.ActivityCount,
		OtherCount:         m.OtherCount,
		FirstMessageSentAt: m.FirstMessageSentAt,
		LastMessageSentAt:  m.LastMessageSentAt,
		Messages:           make([]MessageRecord, len(m.Messages)),
	}
	for i, msg := range m.Messages {
		record.Messages[i] = MessageRecord{
			ProfileID:           profileID,
			MatchPosition:       msg.MatchOrder,
			Position:            msg.Order,
			Recipient:           msg.To,
			Sender:              msg.From,
			Content:             msg.Content,
			CharCount:           msg.CharCount,
			Type:                string(msg.Type),
			SentAt:              msg.SentAt,
			TimeSincePreviousMs: msg.TimeSincePreviousMs,
			TimeSincePrevious:   msg.TimeSincePrevious,
		}
	}
	return record
}
