package jobs

import (
	"context"
	"log/slog"

	"swipestats/internal/profiles"
)

// CleanupJob prunes old uploads, keeping the newest few per profile.
type CleanupJob struct {
	store  *profiles.Store
	logger *slog.Logger
	keep   int
}

func NewCleanupJob(store *profiles.Store, logger *slog.Logger, keep int) *CleanupJob {
	return &CleanupJob{
		store:  store,
		logger: logger,
		keep:   keep,
	}
}

// Run removes original files beyond the retention count. The latest file of every
// profile is always kept since recovery and recomputes rebuild from it.
func (j *CleanupJob) Run(ctx context.Context) error {
	j.logger.Info("Starting cleanup of old original files", slog.Int("retained_per_profile", j.keep))

	deleted, err := j.store.PruneOriginals(ctx, j.keep)
	if err != nil {
		j.logger.Error("Failed to prune original files", slog.Any("error", err))
		return err
	}

	if deleted == 0 {
		j.logger.Debug("No original files to clean up")
		return nil
	}

	j.logger.Info("Cleaned up old original files", slog.Int64("deleted_count", deleted))
	return nil
}
