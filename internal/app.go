// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"swipestats/internal/config"
	"swipestats/internal/database"
	"swipestats/internal/jobs"
	"swipestats/internal/profiles"
)

// Application wraps cartridge.Application with swipestats-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager // swipestats-specific DB manager with migration methods
	Scheduler *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	// Create logger
	logger := cartridge.NewLogger(cfg, nil)

	// Initialize database manager (swipestats-specific with migration methods)
	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// The API and the recompute job share one comparer so recomputes drop stale baselines
	store := profiles.NewStore(dbManager.GetConnection(), logger)
	comparer := profiles.NewComparer(logger, store, cfg.PeerComparisonMinProfiles)

	scheduler := jobs.NewScheduler(dbManager, logger, cfg, comparer.Invalidate)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		RouteMountFunc:    RouteMounter(comparer),
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Scheduler:   scheduler,
	}, nil
}
