package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"swipestats/internal/config"
	"swipestats/internal/profiles"
)

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	// Job instances
	recomputeJob *RecomputeJob
	cleanupJob   *CleanupJob

	// Tickers for each job type
	recomputeTicker *time.Ticker
	cleanupTicker   *time.Ticker
}

// NewScheduler creates the scheduler. onProfilesChanged, if set, is called after
// a recompute run changed at least one profile.
func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config, onProfilesChanged func()) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	store := profiles.NewStore(dbManager.GetConnection(), logger)

	return &Scheduler{
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		enabled:      true,
		isRunning:    false,
		cfg:          cfg,
		recomputeJob: NewRecomputeJob(store, logger, cfg.RecomputeWorkers, onProfilesChanged),
		cleanupJob:   NewCleanupJob(store, logger, cfg.OriginalFilesRetained),
	}
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func(ctx context.Context) error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")

	s.isRunning = true

	s.startJob("recompute", time.Duration(s.cfg.JobIntervalSeconds)*time.Second, s.recomputeJob.Run, &s.recomputeTicker)
	s.startJob("cleanup", 24*time.Hour, s.cleanupJob.Run, &s.cleanupTicker)

	s.logger.Info("Background jobs started",
		slog.Bool("enabled", s.enabled),
		slog.Bool("isRunning", s.isRunning))

	return nil
}

func (s *Scheduler) startJob(name string, interval time.Duration, run func(ctx context.Context) error, ticker **time.Ticker) {
	s.logger.Info("Starting job", slog.String("job", name), slog.Duration("interval", interval))
	t := time.NewTicker(interval)
	*ticker = t

	go func() {
		s.executeJobSafely(name, run)

		for {
			select {
			case <-t.C:
				s.executeJobSafely(name, run)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", name))
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.recomputeTicker != nil {
		s.recomputeTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}

	s.cancel()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RecomputeNow runs the recompute job outside the schedule.
func (s *Scheduler) RecomputeNow() error {
	if !s.enabled {
		return nil
	}
	return s.recomputeJob.Run(s.ctx)
}
