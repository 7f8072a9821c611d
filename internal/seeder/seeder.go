package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"

	"swipestats/internal/export"
	"swipestats/internal/profiles"
	"swipestats/internal/timeframe"
)

const maxSeededMatches = 40

var (
	seedCountries = []string{"Germany", "United States", "Norway", "Spain", "Brazil", "Japan", ""}
	seedCities    = []export.City{
		{Name: "Berlin", Region: "Berlin"},
		{Name: "Austin", Region: "Texas"},
		{Name: "Oslo", Region: "Oslo"},
		{Name: "Madrid", Region: "Madrid"},
	}
	seedGenders       = []string{"M", "F", "M,F"}
	seedMessageTypes  = []string{"", "text", "gif", "gesture", "contact_card"}
	seedMessageBodies = []string{
		"Hey! How's your week going?",
		"Haha that's amazing",
		"Coffee &amp; a walk this weekend?",
		"Where was that photo taken?",
		"Sounds good :)",
	}
)

// Seeder generates synthetic exports and stores them as profiles. Seeded profiles
// give the peer comparison and the recompute job something to work on in
// development.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	ProfileCount int
	Seed         uint64
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, profileCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		ProfileCount: profileCount,
		Seed:         uint64(time.Now().UnixNano()),
	}
}

// Run generates and stores ProfileCount profiles.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding profiles...", slog.Int("profileCount", s.ProfileCount))

	store := profiles.NewStore(s.DBManager.GetConnection(), s.Logger)
	r := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	for i := 0; i < s.ProfileCount; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc := GenerateExport(r)
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode seeded export: %w", err)
		}

		result, err := profiles.Build(ctx, s.Logger, doc)
		if err != nil {
			return fmt.Errorf("failed to build seeded profile %d: %w", i, err)
		}
		if err := store.Replace(ctx, result, raw); err != nil {
			return fmt.Errorf("failed to store seeded profile %d: %w", i, err)
		}

		s.Logger.Debug("Seeded profile",
			slog.String("profile_id", result.Profile.ID),
			slog.Int("days", result.Profile.DaysInProfilePeriod),
			slog.Int("matches", len(result.Matches)))
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("profileCount", s.ProfileCount),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// GenerateExport builds a plausible export: a usage period of one month to a
// little over a year with idle days, and a handful of conversations.
func GenerateExport(r *rand.Rand) *export.Export {
	birth := time.Date(1980+r.IntN(23), time.Month(1+r.IntN(12)), 1+r.IntN(28), 0, 0, 0, 0, time.UTC)
	created := time.Date(2018+r.IntN(4), time.Month(1+r.IntN(12)), 1+r.IntN(28), r.IntN(24), r.IntN(60), 0, 0, time.UTC)
	first := timeframe.StartOfDay(created.AddDate(0, 0, r.IntN(30)))
	last := first.AddDate(0, 0, 30+r.IntN(400))

	city := seedCities[r.IntN(len(seedCities))]
	doc := &export.Export{
		User: export.User{
			BirthDate:    birth.Format("2006-01-02T15:04:05.000Z"),
			CreateDate:   created.Format("2006-01-02T15:04:05.000Z"),
			Gender:       seedGenders[r.IntN(2)],
			InterestedIn: seedGenders[r.IntN(len(seedGenders))],
			GenderFilter: seedGenders[r.IntN(len(seedGenders))],
			AgeFilterMin: 18 + r.IntN(10),
			AgeFilterMax: 30 + r.IntN(20),
			City:         &city,
			Country:      seedCountries[r.IntN(len(seedCountries))],
		},
		Usage: export.Usage{
			AppOpens:         map[string]int{},
			SwipeLikes:       map[string]int{},
			SwipePasses:      map[string]int{},
			SuperLikes:       map[string]int{},
			Matches:          map[string]int{},
			MessagesSent:     map[string]int{},
			MessagesReceived: map[string]int{},
		},
	}

	totalMatches := 0
	timeframe.EachDay(first, last, func(day time.Time) {
		// Exports only list days with activity, leave about a third out
		if !day.Equal(first) && !day.Equal(last) && r.IntN(3) == 0 {
			return
		}
		key := timeframe.FormatDay(day)
		opens := r.IntN(12)
		if day.Equal(first) && opens == 0 {
			opens = 1
		}
		doc.Usage.AppOpens[key] = opens
		if opens == 0 {
			return
		}

		likes := r.IntN(60)
		doc.Usage.SwipeLikes[key] = likes
		doc.Usage.SwipePasses[key] = r.IntN(120)
		if r.IntN(5) == 0 {
			doc.Usage.SuperLikes[key] = 1
		}
		if likes > 0 {
			matches := r.IntN(likes/10 + 1)
			doc.Usage.Matches[key] = matches
			totalMatches += matches
		}
		doc.Usage.MessagesSent[key] = r.IntN(10)
		doc.Usage.MessagesReceived[key] = r.IntN(10)
	})

	if totalMatches > maxSeededMatches {
		totalMatches = maxSeededMatches
	}
	span := last.Sub(first)
	for i := totalMatches; i > 0; i-- {
		doc.Messages = append(doc.Messages, generateMatch(r, fmt.Sprintf("Match %d", i), first, span))
	}

	return doc
}

func generateMatch(r *rand.Rand, id string, first time.Time, span time.Duration) export.RawMatch {
	match := export.RawMatch{MatchID: id, Messages: []export.RawMessage{}}

	// Roughly one in four matches is never messaged
	if r.IntN(4) == 0 {
		return match
	}

	sentAt := first.Add(time.Duration(r.Int64N(int64(span))))
	count := 1 + r.IntN(15)
	for i := 0; i < count; i++ {
		tag := seedMessageTypes[r.IntN(len(seedMessageTypes))]
		var rawType json.RawMessage
		if tag != "" {
			rawType, _ = json.Marshal(tag)
		}
		body := ""
		if tag == "" || tag == "text" {
			body = seedMessageBodies[r.IntN(len(seedMessageBodies))]
		}

		match.Messages = append(match.Messages, export.RawMessage{
			To:       i,
			From:     "You",
			Message:  body,
			SentDate: sentAt.Format(time.RFC1123),
			Type:     rawType,
		})
		sentAt = sentAt.Add(time.Duration(1+r.IntN(48*60)) * time.Minute)
	}
	return match
}
