// Package export decodes and validates a dating-app data export.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"swipestats/internal/timeframe"
)

// ErrNoAppOpens is returned when the export has no app-open data, which leaves no
// way to establish the profile's active date range.
var ErrNoAppOpens = errors.New("export has no app opens")

// ErrInvalidExport is returned when the document is not a decodable export.
var ErrInvalidExport = errors.New("invalid export document")

// profileNamespace scopes the deterministic profile ids.
var profileNamespace = uuid.MustParse("6c4b8c3e-2f1d-5a8e-9b0c-7d3e1f2a4b5c")

// DateError reports a date string that could not be parsed.
type DateError struct {
	Field string
	Value string
	Err   error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("malformed date in %s: %q", e.Field, e.Value)
}

func (e *DateError) Unwrap() error {
	return e.Err
}

// Export is the uploaded document.
type Export struct {
	User     User       `json:"User"`
	Usage    Usage      `json:"Usage"`
	Messages []RawMatch `json:"Messages"`
}

// City is the user's self-reported location.
type City struct {
	Name   string `json:"name"`
	Region string `json:"region"`
}

// User holds the account attributes of the export.
type User struct {
	BirthDate    string `json:"birth_date"`
	CreateDate   string `json:"create_date"`
	Gender       string `json:"gender"`
	InterestedIn string `json:"interested_in"`
	GenderFilter string `json:"gender_filter"`
	AgeFilterMin int    `json:"age_filter_min"`
	AgeFilterMax int    `json:"age_filter_max"`
	City         *City  `json:"city"`
	Country      string `json:"country"`
	Education    string `json:"education"`
	Bio          string `json:"bio"`
}

// Usage holds the sparse date->count maps, one per metric.
type Usage struct {
	AppOpens         map[string]int `json:"app_opens"`
	SwipeLikes       map[string]int `json:"swipes_likes"`
	SwipePasses      map[string]int `json:"swipes_passes"`
	SuperLikes       map[string]int `json:"superlikes"`
	Matches          map[string]int `json:"matches"`
	MessagesSent     map[string]int `json:"messages_sent"`
	MessagesReceived map[string]int `json:"messages_received"`
}

// RawMatch is one conversation thread as exported.
type RawMatch struct {
	MatchID  string       `json:"match_id"`
	Messages []RawMessage `json:"messages"`
}

// RawMessage is one message as exported. Type is a string tag in most exports
// and a bare number in some older ones.
type RawMessage struct {
	To       int             `json:"to"`
	From     string          `json:"from"`
	Message  string          `json:"message"`
	SentDate string          `json:"sent_date"`
	Type     json.RawMessage `json:"type,omitempty"`
}

// Decode reads and validates an export.
func Decode(r io.Reader) (*Export, error) {
	var doc Export
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeBytes is Decode for an in-memory document.
func DecodeBytes(data []byte) (*Export, error) {
	var doc Export
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks everything the pipeline treats as fatal: missing app opens and
// malformed dates anywhere in the document.
func (e *Export) Validate() error {
	if len(e.Usage.AppOpens) == 0 {
		return ErrNoAppOpens
	}

	if _, err := e.User.Birth(); err != nil {
		return err
	}
	if e.User.CreateDate != "" {
		if _, err := ParseTimestamp("User.create_date", e.User.CreateDate); err != nil {
			return err
		}
	}

	for name, series := range e.Usage.Series() {
		for key := range series {
			if _, err := timeframe.ParseDay(key); err != nil {
				return &DateError{Field: "Usage." + name, Value: key, Err: err}
			}
		}
	}

	for i, match := range e.Messages {
		for j, msg := range match.Messages {
			if strings.TrimSpace(msg.SentDate) == "" {
				continue
			}
			field := fmt.Sprintf("Messages[%d].messages[%d].sent_date", i, j)
			if _, err := ParseTimestamp(field, msg.SentDate); err != nil {
				return err
			}
		}
	}

	return nil
}

// Series returns the usage maps by their export names. Absent maps are empty.
func (u Usage) Series() map[string]map[string]int {
	return map[string]map[string]int{
		"app_opens":         u.AppOpens,
		"swipes_likes":      u.SwipeLikes,
		"swipes_passes":     u.SwipePasses,
		"superlikes":        u.SuperLikes,
		"matches":           u.Matches,
		"messages_sent":     u.MessagesSent,
		"messages_received": u.MessagesReceived,
	}
}

var timestampLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats found in exports into UTC.
func ParseTimestamp(field, value string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, strings.TrimSpace(value))
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, &DateError{Field: field, Value: value, Err: lastErr}
}

// Birth returns the parsed birth date, zero when the export has none.
func (u User) Birth() (time.Time, error) {
	if u.BirthDate == "" {
		return time.Time{}, nil
	}
	return ParseTimestamp("User.birth_date", u.BirthDate)
}

// Created returns the parsed account creation date, zero when absent.
func (u User) Created() time.Time {
	if u.CreateDate == "" {
		return time.Time{}
	}
	t, err := ParseTimestamp("User.create_date", u.CreateDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ProfileID derives a stable id from the account's birth and creation dates so that
// re-uploads of the same account land on the same profile.
func (u User) ProfileID() string {
	return uuid.NewSHA1(profileNamespace, []byte(u.BirthDate+"|"+u.CreateDate)).String()
}

// CountryCode resolves the export's country to an ISO alpha-2 code, empty if unknown.
func (u User) CountryCode() string {
	name := strings.TrimSpace(u.Country)
	if name == "" {
		return ""
	}
	countries := gountries.New()
	if country, err := countries.FindCountryByName(name); err == nil {
		return country.Alpha2
	}
	if country, err := countries.FindCountryByAlpha(name); err == nil {
		return country.Alpha2
	}
	return ""
}

// GenderLabel normalises the single-letter gender codes used by exports.
func GenderLabel(code string) string {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "M":
		return "Male"
	case "F":
		return "Female"
	case "M,F", "F,M", "BOTH":
		return "Both"
	case "":
		return "Unknown"
	default:
		return cases.Title(language.English).String(strings.ToLower(code))
	}
}
