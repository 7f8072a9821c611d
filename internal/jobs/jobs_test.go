package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"swipestats/internal/config"
	"swipestats/internal/export"
	"swipestats/internal/jobs"
	"swipestats/internal/profiles"
	"swipestats/internal/testsupport"
)

func storeSample(t *testing.T, store *profiles.Store, doc *export.Export, raw []byte) string {
	t.Helper()
	result, err := profiles.Build(context.Background(), testsupport.GetLogger(), doc)
	require.NoError(t, err)
	require.NoError(t, store.Replace(context.Background(), result, raw))
	return result.Profile.ID
}

func markStale(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	require.NoError(t, db.Model(&profiles.Profile{}).Where("id = ?", id).Update("compute_version", 0).Error)
}

func TestRecomputeJob(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	store := profiles.NewStore(db, logger)
	ctx := context.Background()

	first := storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())
	doc, raw := testsupport.SampleExportFor(t, "1990-01-01T00:00:00.000Z", nil)
	second := storeSample(t, store, doc, raw)

	changed := 0
	job := jobs.NewRecomputeJob(store, logger, 2, func() { changed++ })

	t.Run("nothing stale", func(t *testing.T) {
		require.NoError(t, job.Run(ctx))
		assert.Equal(t, 0, changed)
	})

	t.Run("rebuilds stale profiles", func(t *testing.T) {
		markStale(t, db, first)
		markStale(t, db, second)

		require.NoError(t, job.Run(ctx))
		assert.Equal(t, 1, changed)

		stale, err := store.StaleProfiles(ctx, profiles.ComputeVersion)
		require.NoError(t, err)
		assert.Empty(t, stale)

		days, err := store.UsageDays(ctx, first)
		require.NoError(t, err)
		assert.Len(t, days, 36)
	})

	t.Run("skips profiles without original file", func(t *testing.T) {
		require.NoError(t, db.Exec("DELETE FROM original_files WHERE profile_id = ?", second).Error)
		markStale(t, db, second)

		require.NoError(t, job.Run(ctx))
		assert.Equal(t, 1, changed)

		stale, err := store.StaleProfiles(ctx, profiles.ComputeVersion)
		require.NoError(t, err)
		assert.Equal(t, []string{second}, stale)
	})

	t.Run("reports broken originals", func(t *testing.T) {
		require.NoError(t, db.Exec("UPDATE original_files SET contents = ? WHERE profile_id = ?", `{"User":{}}`, first).Error)
		markStale(t, db, first)

		err := job.Run(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to recompute 1 of 2 profiles")
	})
}

func TestCleanupJob(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	logger := testsupport.GetLogger()
	store := profiles.NewStore(db, logger)

	for i := 0; i < 3; i++ {
		storeSample(t, store, testsupport.SampleExport(t), testsupport.SampleExportJSON())
		time.Sleep(2 * time.Millisecond)
	}

	job := jobs.NewCleanupJob(store, logger, 2)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(2), testsupport.CountRows(t, db, "original_files"))

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, int64(2), testsupport.CountRows(t, db, "original_files"))
}

func TestSchedulerStartStop(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	cfg := &config.Config{
		JobIntervalSeconds:    3600,
		RecomputeWorkers:      1,
		OriginalFilesRetained: 3,
	}

	scheduler := jobs.NewScheduler(dbManager, logger, cfg, nil)
	assert.False(t, scheduler.IsRunning())

	require.NoError(t, scheduler.Start())
	assert.True(t, scheduler.IsRunning())

	// Starting twice is a no-op
	require.NoError(t, scheduler.Start())

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())
	assert.NoError(t, scheduler.RecomputeNow())
}
