package profiles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"swipestats/internal/analytics"
	"swipestats/internal/export"
	"swipestats/internal/models"
	"swipestats/internal/timeframe"
)

var (
	// ErrProfileNotFound is returned when no profile has the requested id.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrRestoredFromOriginal is returned when an update could not be stored and the
	// profile was rebuilt from its last stored original file instead.
	ErrRestoredFromOriginal = errors.New("profile update failed, restored from original file")
	// ErrUnknownMetric is returned by UsageSeries for metrics without a usage column.
	ErrUnknownMetric = errors.New("unknown usage metric")
	// ErrNoOriginalFile is returned when a profile has no stored upload to rebuild from.
	ErrNoOriginalFile = errors.New("no original file stored for profile")
	// ErrNotEnoughPeers is returned when too few other profiles exist for a comparison.
	ErrNotEnoughPeers = errors.New("not enough peer profiles")
)

const insertBatchSize = 500

// usageMetrics maps the metric names accepted by UsageSeries to their columns.
var usageMetrics = map[string]string{
	"app_opens":         "app_opens",
	"matches":           "matches",
	"swipes_likes":      "swipe_likes",
	"swipes_passes":     "swipe_passes",
	"superlikes":        "swipe_super_likes",
	"swipes_combined":   "swipes_combined",
	"messages_sent":     "messages_sent",
	"messages_received": "messages_received",
}

// Store persists pipeline results.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewStore creates a store on the given connection.
func NewStore(db *gorm.DB, logger *slog.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Replace stores result as the profile's complete state, replacing whatever the
// profile owned before, and keeps raw as a new original file. Everything happens in
// one transaction. If that transaction fails the profile is rebuilt from its last
// stored original file and ErrRestoredFromOriginal is returned; if no rebuild is
// possible the previous state is left as it was.
func (s *Store) Replace(ctx context.Context, result *Result, raw []byte) error {
	profileID := result.Profile.ID

	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return writeResult(tx, result, raw)
	})
	if err == nil {
		s.logger.Info("Stored profile",
			slog.String("profile_id", profileID),
			slog.Int("days", len(result.Records)),
			slog.Int("matches", len(result.Matches)))
		return nil
	}

	s.logger.Error("Failed to store profile, restoring from original file",
		slog.String("profile_id", profileID),
		slog.Any("error", err))

	if restoreErr := s.Recompute(ctx, profileID); restoreErr != nil {
		if !errors.Is(restoreErr, ErrNoOriginalFile) {
			s.logger.Error("Failed to restore profile from original file",
				slog.String("profile_id", profileID),
				slog.Any("error", restoreErr))
		}
		return fmt.Errorf("failed to store profile %s: %w", profileID, err)
	}

	return fmt.Errorf("%w: %v", ErrRestoredFromOriginal, err)
}

// Recompute rebuilds a profile from its latest original file.
func (s *Store) Recompute(ctx context.Context, profileID string) error {
	original, err := s.LatestOriginal(ctx, profileID)
	if err != nil {
		return err
	}

	doc, err := export.DecodeBytes(original.Contents)
	if err != nil {
		return fmt.Errorf("failed to decode original file %s: %w", original.ID, err)
	}

	result, err := Build(ctx, s.logger, doc)
	if err != nil {
		return fmt.Errorf("failed to rebuild profile %s: %w", profileID, err)
	}

	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return writeResult(tx, result, nil)
	})
}

func writeResult(tx *gorm.DB, result *Result, raw []byte) error {
	profile := result.Profile
	profileID := profile.ID

	var existing Profile
	err := tx.Select("created_at").Where("id = ?", profileID).First(&existing).Error
	switch {
	case err == nil:
		profile.CreatedAt = existing.CreatedAt
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("failed to load profile: %w", err)
	}

	if err := deleteOwned(tx, profileID); err != nil {
		return err
	}
	if err := tx.Where("id = ?", profileID).Delete(&Profile{}).Error; err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if err := tx.Create(&profile).Error; err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if raw != nil {
		original := OriginalFile{
			ID:        uuid.NewString(),
			ProfileID: profileID,
			Contents:  models.JSON(raw),
			SizeBytes: len(raw),
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(&original).Error; err != nil {
			return fmt.Errorf("failed to store original file: %w", err)
		}
	}

	if len(result.Records) > 0 {
		days := make([]UsageDay, len(result.Records))
		for i, r := range result.Records {
			days[i] = newUsageDay(profileID, r)
		}
		if err := tx.CreateInBatches(&days, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert usage days: %w", err)
		}
	}

	if len(result.Matches) > 0 {
		matches := make([]MatchRecord, len(result.Matches))
		for i, m := range result.Matches {
			matches[i] = newMatchRecord(profileID, m)
		}
		if err := tx.Omit("Messages").CreateInBatches(&matches, insertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert matches: %w", err)
		}

		var msgs []MessageRecord
		for _, m := range matches {
			for _, msg := range m.Messages {
				msg.MatchID = m.ID
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			if err := tx.CreateInBatches(&msgs, insertBatchSize).Error; err != nil {
				return fmt.Errorf("failed to insert messages: %w", err)
			}
		}
	}

	metas := result.Metas()
	for i := range metas {
		metas[i].ID = 0
		metas[i].ProfileID = profileID
	}
	if err := tx.CreateInBatches(&metas, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert profile meta: %w", err)
	}

	return nil
}

// deleteOwned removes everything a profile owns except its original files.
func deleteOwned(tx *gorm.DB, profileID string) error {
	for _, model := range []any{&MessageRecord{}, &MatchRecord{}, &UsageDay{}, &analytics.ProfileMeta{}} {
		if err := tx.Where("profile_id = ?", profileID).Delete(model).Error; err != nil {
			return fmt.Errorf("failed to delete %T rows: %w", model, err)
		}
	}
	return nil
}

// Get returns the stored profile.
func (s *Store) Get(ctx context.Context, profileID string) (*Profile, error) {
	var profile Profile
	if err := s.db.WithContext(ctx).Where("id = ?", profileID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &profile, nil
}

// Delete removes a profile with everything it owns, original files included.
func (s *Store) Delete(ctx context.Context, profileID string) error {
	if _, err := s.Get(ctx, profileID); err != nil {
		return err
	}

	return sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		if err := deleteOwned(tx, profileID); err != nil {
			return err
		}
		if err := tx.Where("profile_id = ?", profileID).Delete(&OriginalFile{}).Error; err != nil {
			return fmt.Errorf("failed to delete original files: %w", err)
		}
		if err := tx.Where("id = ?", profileID).Delete(&Profile{}).Error; err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		return nil
	})
}

// Metas returns the stored metas of one period kind, ordered by key.
func (s *Store) Metas(ctx context.Context, profileID string, kind analytics.PeriodKind) ([]analytics.ProfileMeta, error) {
	if _, err := s.Get(ctx, profileID); err != nil {
		return nil, err
	}

	var metas []analytics.ProfileMeta
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND period = ?", profileID, kind).
		Order("period_key ASC").
		Find(&metas).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get profile meta: %w", err)
	}
	return metas, nil
}

// UsageDays returns the stored usage days in date order.
func (s *Store) UsageDays(ctx context.Context, profileID string) ([]UsageDay, error) {
	var days []UsageDay
	if err := s.db.WithContext(ctx).Where("profile_id = ?", profileID).Order("date ASC").Find(&days).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage days: %w", err)
	}
	return days, nil
}

// Matches returns the stored matches in order, with their messages.
func (s *Store) Matches(ctx context.Context, profileID string) ([]MatchRecord, error) {
	var matches []MatchRecord
	err := s.db.WithContext(ctx).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("profile_id = ?", profileID).
		Order("position ASC").
		Find(&matches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	return matches, nil
}

// UsageSeries sums one usage metric per bucket over the whole profile period.
// Buckets without usage are present with a zero count.
func (s *Store) UsageSeries(ctx context.Context, profileID, metric string, bucket timeframe.TimeFrameBucketSize) ([]timeframe.DateStat, error) {
	column, ok := usageMetrics[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}

	profile, err := s.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Bucket string
		Count  int
	}

	query := fmt.Sprintf(`
    SELECT
        substr(date_stamp, 1, ?) AS bucket,
        SUM(%s) AS count
    FROM usage_days
    WHERE profile_id = ?
    GROUP BY bucket
    `, column)

	err = s.db.WithContext(ctx).Raw(query, len(bucket.Layout()), profileID).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching %s series: %w", metric, err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Bucket] = r.Count
	}

	return timeframe.FillSeries(counts, profile.FirstDayOnApp, profile.LastDayOnApp, bucket), nil
}

// LatestOriginal returns the most recent original file of a profile.
func (s *Store) LatestOriginal(ctx context.Context, profileID string) (*OriginalFile, error) {
	var original OriginalFile
	err := s.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at DESC").
		First(&original).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoOriginalFile
		}
		return nil, fmt.Errorf("failed to get original file: %w", err)
	}
	return &original, nil
}

// StaleProfiles lists the ids of profiles computed by an older pipeline version.
func (s *Store) StaleProfiles(ctx context.Context, version int) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Profile{}).
		Where("compute_version < ?", version).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale profiles: %w", err)
	}
	return ids, nil
}

// PruneOriginals deletes all but the newest keep original files of every profile.
func (s *Store) PruneOriginals(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}

	var deleted int64
	err := sqlite.PerformWrite(s.logger, s.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Exec(`
        DELETE FROM original_files
        WHERE id IN (
            SELECT id FROM (
                SELECT id, ROW_NUMBER() OVER (
                    PARTITION BY profile_id ORDER BY created_at DESC, id DESC
                ) AS rn
                FROM original_files
            ) WHERE rn > ?
        )`, keep)
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune original files: %w", err)
	}
	return deleted, nil
}

// PeerBaseline averages the all-time metas of every profile except profileID. It
// returns ErrNotEnoughPeers when fewer than minProfiles peers exist.
func (s *Store) PeerBaseline(ctx context.Context, profileID string, minProfiles int) (*analytics.PeerBaseline, error) {
	var baseline analytics.PeerBaseline

	query := `
    SELECT
        COUNT(*) AS profiles,
        COALESCE(AVG(match_rate), 0) AS match_rate,
        COALESCE(AVG(like_rate), 0) AS like_rate,
        COALESCE(AVG(swipes_combined_per_day), 0) AS swipes_per_day,
        COALESCE(AVG(app_opens_per_day), 0) AS app_opens_per_day,
        COALESCE(AVG(response_rate), 0) AS response_rate,
        COALESCE(AVG(average_conversation_length_in_messages), 0) AS avg_conversation_length,
        COALESCE(AVG(percent_of_one_message_conversations), 0) AS one_message_share
    FROM profile_meta
    WHERE period = ? AND profile_id <> ?
    `

	if err := s.db.WithContext(ctx).Raw(query, analytics.PeriodAll, profileID).Scan(&baseline).Error; err != nil {
		return nil, fmt.Errorf("error computing peer baseline: %w", err)
	}
	if baseline.Profiles < minProfiles || baseline.Profiles == 0 {
		return nil, ErrNotEnoughPeers
	}
	return &baseline, nil
}
