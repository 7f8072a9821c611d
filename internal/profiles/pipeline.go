// Package profiles runs the analytics pipeline for an uploaded export and persists
// its output.
package profiles

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"swipestats/internal/analytics"
	"swipestats/internal/export"
	"swipestats/internal/messages"
	"swipestats/internal/usage"
)

// ComputeVersion is stamped on every stored profile. Bump it whenever the pipeline
// output changes so the recompute job refreshes older profiles.
const ComputeVersion = 1

// Result is everything one pipeline run produces for a profile.
type Result struct {
	Profile  Profile
	Records  []usage.Record
	Matches  []messages.Match
	Messages []messages.Message
	AllTime  analytics.ProfileMeta
	Months   []analytics.ProfileMeta
	Years    []analytics.ProfileMeta
}

// Metas returns the all-time, monthly and yearly metas in that order.
func (r *Result) Metas() []analytics.ProfileMeta {
	metas := make([]analytics.ProfileMeta, 0, 1+len(r.Months)+len(r.Years))
	metas = append(metas, r.AllTime)
	metas = append(metas, r.Months...)
	metas = append(metas, r.Years...)
	return metas
}

// Build computes the full analytics output for one export. Usage normalization and
// message transformation run concurrently; everything after them is sequential.
func Build(ctx context.Context, logger *slog.Logger, doc *export.Export) (*Result, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	birth, err := doc.User.Birth()
	if err != nil {
		return nil, err
	}

	var (
		days    []usage.Day
		period  usage.Period
		matches []messages.Match
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		days, period, err = usage.Normalize(doc.Usage)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = messages.Transform(logger, doc.Messages)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := usage.BuildRecords(days, birth)

	months, err := analytics.Buckets(analytics.PeriodMonth, period, records, matches)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket months: %w", err)
	}
	years, err := analytics.Buckets(analytics.PeriodYear, period, records, matches)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket years: %w", err)
	}

	profile := newProfile(doc.User, period, birth)

	result := &Result{
		Profile:  profile,
		Records:  records,
		Matches:  matches,
		Messages: messages.Flatten(matches),
		AllTime:  analytics.AllTime(period, records, matches),
		Months:   analytics.ComposeBuckets(months),
		Years:    analytics.ComposeBuckets(years),
	}

	result.AllTime.ProfileID = profile.ID
	for i := range result.Months {
		result.Months[i].ProfileID = profile.ID
	}
	for i := range result.Years {
		result.Years[i].ProfileID = profile.ID
	}

	logger.Debug("Built profile",
		slog.String("profile_id", profile.ID),
		slog.Int("days", len(records)),
		slog.Int("matches", len(matches)),
		slog.Int("months", len(result.Months)))

	return result, nil
}

func newProfile(user export.User, period usage.Period, birth time.Time) Profile {
	p := Profile{
		ID:                  user.ProfileID(),
		Gender:              export.GenderLabel(user.Gender),
		InterestedIn:        export.GenderLabel(user.InterestedIn),
		GenderFilter:        export.GenderLabel(user.GenderFilter),
		AgeFilterMin:        user.AgeFilterMin,
		AgeFilterMax:        user.AgeFilterMax,
		CountryCode:         user.CountryCode(),
		Education:           user.Education,
		Bio:                 user.Bio,
		FirstDayOnApp:       period.First,
		LastDayOnApp:        period.Last,
		DaysInProfilePeriod: period.Days(),
		ComputeVersion:      ComputeVersion,
	}
	if user.City != nil {
		p.City = user.City.Name
		p.Region = user.City.Region
	}
	if !birth.IsZero() {
		p.BirthDate = &birth
	}
	if created := user.Created(); !created.IsZero() {
		p.CreateDate = &created
	}
	return p
}
