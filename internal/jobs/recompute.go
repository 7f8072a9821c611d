package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"swipestats/internal/pkg/async"
	"swipestats/internal/profiles"
)

// RecomputeJob rebuilds profiles computed by an older pipeline version from their
// latest original file. Profiles are spread over a worker pool; each profile is
// rebuilt sequentially by one worker.
type RecomputeJob struct {
	store     *profiles.Store
	logger    *slog.Logger
	pool      *async.Pool
	onChanged func()
}

func NewRecomputeJob(store *profiles.Store, logger *slog.Logger, workers int, onChanged func()) *RecomputeJob {
	return &RecomputeJob{
		store:     store,
		logger:    logger,
		pool:      async.NewPool(workers),
		onChanged: onChanged,
	}
}

func (j *RecomputeJob) Run(ctx context.Context) error {
	ids, err := j.store.StaleProfiles(ctx, profiles.ComputeVersion)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		j.logger.Debug("No stale profiles to recompute")
		return nil
	}

	j.logger.Info("Recomputing stale profiles",
		slog.Int("count", len(ids)),
		slog.Int("compute_version", profiles.ComputeVersion))

	tasks := make([]async.Task, len(ids))
	for i, id := range ids {
		tasks[i] = async.Task{
			Name: id,
			Execute: func() (interface{}, error) {
				return nil, j.store.Recompute(ctx, id)
			},
		}
	}

	results := j.pool.Execute(ctx, tasks)

	var recomputed, skipped, failed int
	for _, id := range ids {
		result, ok := results[id]
		switch {
		case !ok:
			skipped++
		case errors.Is(result.Err, profiles.ErrNoOriginalFile):
			j.logger.Warn("Stale profile has no original file", slog.String("profile_id", id))
			skipped++
		case result.Err != nil:
			j.logger.Error("Failed to recompute profile",
				slog.String("profile_id", id),
				slog.Any("error", result.Err))
			failed++
		default:
			recomputed++
		}
	}

	if recomputed > 0 && j.onChanged != nil {
		j.onChanged()
	}

	j.logger.Info("Recompute finished",
		slog.Int("recomputed", recomputed),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed))

	if failed > 0 {
		return fmt.Errorf("failed to recompute %d of %d profiles", failed, len(ids))
	}
	return nil
}
