package profiles_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"swipestats/internal/analytics"
	"swipestats/internal/export"
	"swipestats/internal/profiles"
	"swipestats/internal/testsupport"
	"swipestats/internal/timeframe"
)

func setupStore(t *testing.T) (*profiles.Store, *gorm.DB) {
	t.Helper()
	db := testsupport.SetupTestDB(t)
	return profiles.NewStore(db, testsupport.GetLogger()), db
}

func storeSample(t *testing.T, store *profiles.Store, doc *export.Export, raw []byte) *profiles.Result {
	t.Helper()
	result, err := profiles.Build(context.Background(), testsupport.GetLogger(), doc)
	require.NoError(t, err)
	require.NoError(t, store.Replace(context.Background(), result, raw))
	return result
}

func TestStoreReplaceWritesEverything(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	result := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())
	id := result.Profile.ID

	profile, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 36, profile.DaysInProfilePeriod)
	assert.Equal(t, "DE", profile.CountryCode)

	days, err := store.UsageDays(ctx, id)
	require.NoError(t, err)
	require.Len(t, days, 36)
	assert.Equal(t, "2021-02-26", days[0].DateStamp)
	assert.True(t, days[5].DateIsMissingFromOriginalData)

	matches, err := store.Matches(ctx, id)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "Match 1", matches[0].ExternalID)
	require.Len(t, matches[0].Messages, 3)
	assert.Equal(t, "Hi & hello", matches[0].Messages[0].Content)
	assert.Equal(t, 2, matches[0].Messages[2].Position)
	assert.Empty(t, matches[2].Messages)

	monthly, err := store.Metas(ctx, id, analytics.PeriodMonth)
	require.NoError(t, err)
	require.Len(t, monthly, 3)
	assert.Equal(t, "2021-02", monthly[0].Key)
	assert.Equal(t, result.Months[0].AppOpensTotal, monthly[0].AppOpensTotal)

	allTime, err := store.Metas(ctx, id, analytics.PeriodAll)
	require.NoError(t, err)
	require.Len(t, allTime, 1)
	assert.Equal(t, 3, allTime[0].NumberOfConversations)
	assert.Equal(t, 34, allTime[0].LongestConversationInDays)

	assert.Equal(t, int64(1), testsupport.CountRows(t, db, "original_files"))
	assert.Equal(t, int64(5), testsupport.CountRows(t, db, "messages"))
}

func TestStoreReplaceDiscardsPreviousRows(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	first := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())
	profile, err := store.Get(ctx, first.Profile.ID)
	require.NoError(t, err)
	createdAt := profile.CreatedAt

	doc, raw := testsupport.SampleExportFor(t, "1994-03-15T00:00:00.000Z", func(doc *export.Export) {
		doc.Usage.AppOpens = map[string]int{"2021-02-26": 1, "2021-02-27": 1}
		doc.Messages = doc.Messages[:1]
	})
	second := storeSample(t, store, doc, raw)
	require.Equal(t, first.Profile.ID, second.Profile.ID)

	assert.Equal(t, int64(1), testsupport.CountRows(t, db, "profiles"))
	assert.Equal(t, int64(2), testsupport.CountRows(t, db, "usage_days"))
	assert.Equal(t, int64(1), testsupport.CountRows(t, db, "matches"))
	assert.Equal(t, int64(0), testsupport.CountRows(t, db, "messages"))
	assert.Equal(t, int64(2), testsupport.CountRows(t, db, "original_files"))

	profile, err = store.Get(ctx, first.Profile.ID)
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(profile.CreatedAt))
}

func failOriginalFileWrites(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_original_files", func(tx *gorm.DB) {
		if tx.Statement.Table == "original_files" {
			tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Callback().Create().Remove("test:fail_original_files")
	})
}

func TestStoreReplaceRestoresFromOriginal(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	first := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())

	failOriginalFileWrites(t, db)

	doc, raw := testsupport.SampleExportFor(t, "1994-03-15T00:00:00.000Z", func(doc *export.Export) {
		doc.Usage.AppOpens = map[string]int{"2021-02-26": 1}
	})
	second, err := profiles.Build(ctx, testsupport.GetLogger(), doc)
	require.NoError(t, err)

	err = store.Replace(ctx, second, raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, profiles.ErrRestoredFromOriginal)

	days, err := store.UsageDays(ctx, first.Profile.ID)
	require.NoError(t, err)
	assert.Len(t, days, 36)
	assert.Equal(t, int64(1), testsupport.CountRows(t, db, "original_files"))
}

func TestStoreReplaceFailureWithoutOriginalLeavesNothing(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	failOriginalFileWrites(t, db)

	result, err := profiles.Build(ctx, testsupport.GetLogger(), testsupport.SampleExport(t))
	require.NoError(t, err)

	err = store.Replace(ctx, result, testsupport.SampleExportJSON())
	require.Error(t, err)
	assert.NotErrorIs(t, err, profiles.ErrRestoredFromOriginal)

	_, err = store.Get(ctx, result.Profile.ID)
	assert.ErrorIs(t, err, profiles.ErrProfileNotFound)
	assert.Equal(t, int64(0), testsupport.CountRows(t, db, "usage_days"))
}

func TestStoreDelete(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	result := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())

	require.NoError(t, store.Delete(ctx, result.Profile.ID))

	for _, table := range []string{"profiles", "original_files", "usage_days", "matches", "messages", "profile_meta"} {
		assert.Equal(t, int64(0), testsupport.CountRows(t, db, table), table)
	}

	assert.ErrorIs(t, store.Delete(ctx, result.Profile.ID), profiles.ErrProfileNotFound)
}

func TestStoreUsageSeries(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	result := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())
	id := result.Profile.ID

	monthly, err := store.UsageSeries(ctx, id, "app_opens", timeframe.TimeFrameBucketSizeMonth)
	require.NoError(t, err)
	assert.Equal(t, []timeframe.DateStat{
		{Date: "2021-02", Count: 10},
		{Date: "2021-03", Count: 2},
		{Date: "2021-04", Count: 1},
	}, monthly)

	daily, err := store.UsageSeries(ctx, id, "swipes_likes", timeframe.TimeFrameBucketSizeDay)
	require.NoError(t, err)
	require.Len(t, daily, 36)
	assert.Equal(t, timeframe.DateStat{Date: "2021-02-28", Count: 35}, daily[2])
	assert.Equal(t, 0, daily[3].Count)

	_, err = store.UsageSeries(ctx, id, "heartbeats", timeframe.TimeFrameBucketSizeDay)
	assert.Error(t, err)

	_, err = store.UsageSeries(ctx, "missing", "app_opens", timeframe.TimeFrameBucketSizeDay)
	assert.ErrorIs(t, err, profiles.ErrProfileNotFound)
}

func TestStoreStaleProfilesAndRecompute(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()
	result := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())
	id := result.Profile.ID

	stale, err := store.StaleProfiles(ctx, profiles.ComputeVersion)
	require.NoError(t, err)
	assert.Empty(t, stale)

	require.NoError(t, db.Model(&profiles.Profile{}).Where("id = ?", id).Update("compute_version", 0).Error)

	stale, err = store.StaleProfiles(ctx, profiles.ComputeVersion)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, stale)

	require.NoError(t, store.Recompute(ctx, id))

	profile, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, profiles.ComputeVersion, profile.ComputeVersion)
	assert.Equal(t, int64(1), testsupport.CountRows(t, db, "original_files"))
}

func TestStorePruneOriginals(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	doc := testsupport.SampleExport(t)
	for i := 0; i < 3; i++ {
		storeSample(t, store, doc, testsupport.SampleExportJSON())
		time.Sleep(2 * time.Millisecond)
	}
	otherDoc, otherRaw := testsupport.SampleExportFor(t, "1990-01-01T00:00:00.000Z", nil)
	storeSample(t, store, otherDoc, otherRaw)

	deleted, err := store.PruneOriginals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	assert.Equal(t, int64(2), testsupport.CountRows(t, db, "original_files"))

	latest, err := store.LatestOriginal(ctx, doc.User.ProfileID())
	require.NoError(t, err)
	assert.NotEmpty(t, latest.Contents)
}

func TestStorePeerBaseline(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	main := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())

	_, err := store.PeerBaseline(ctx, main.Profile.ID, 1)
	assert.ErrorIs(t, err, profiles.ErrNotEnoughPeers)

	peerDoc, peerRaw := testsupport.SampleExportFor(t, "1990-01-01T00:00:00.000Z", func(doc *export.Export) {
		doc.Usage.SwipeLikes = map[string]int{"2021-02-26": 100}
		doc.Usage.Matches = map[string]int{"2021-02-26": 10}
	})
	storeSample(t, store, peerDoc, peerRaw)

	baseline, err := store.PeerBaseline(ctx, main.Profile.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, baseline.Profiles)
	assert.InDelta(t, 0.1, baseline.MatchRate, 1e-9)
	assert.InDelta(t, 5.0/3.0, baseline.AvgConversationLength, 1e-9)

	_, err = store.PeerBaseline(ctx, main.Profile.ID, 2)
	assert.ErrorIs(t, err, profiles.ErrNotEnoughPeers)
}
