// main.go - Admin control tool for swipestats
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"swipestats/internal"
	"swipestats/internal/analytics"
	"swipestats/internal/export"
	"swipestats/internal/jobs"
	"swipestats/internal/profiles"
	"swipestats/internal/seeder"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// standaloneCommand is implemented by commands that never touch the database.
type standaloneCommand interface {
	Standalone()
}

// The set of available commands
var commands = []Command{
	&ComputeCommand{out: os.Stdout, pretty: term.IsTerminal(int(os.Stdout.Fd()))},
	&ImportCommand{},
	&RecomputeCommand{},
	&PruneCommand{},
	&MigrateCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

func main() {
	// Parse global flags
	flag.Parse()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	// Set up context with cancellation for cleanup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals in a separate goroutine
	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	// Parse command and arguments
	cmdName, args := parseArgs()

	// Find the requested command
	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	var app *internal.Application
	if _, ok := cmd.(standaloneCommand); !ok {
		var err error
		app, err = internal.NewApp()
		if err != nil {
			log.Printf("Warning: Failed to initialize app: %v", err)
			log.Println("Proceeding with limited functionality...")
		}
	}

	// Ensure app is cleaned up
	defer func() {
		if app != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			if err := app.Shutdown(shutdownCtx); err != nil {
				log.Printf("Warning: Cleanup error: %v", err)
			}
		}
	}()

	// Execute the command
	if err := cmd.Execute(ctx, app, args); err != nil {
		log.Fatalf("Command failed: %v", err)
	}

	log.Printf("Command %s completed successfully", cmd.Name())
}

// ComputeCommand runs the pipeline on an export file and prints the metas as JSON
// or YAML. JSON is indented when writing to a terminal.
type ComputeCommand struct {
	out    io.Writer
	pretty bool
}

func (c *ComputeCommand) Name() string        { return "compute" }
func (c *ComputeCommand) Description() string { return "Computes profile metas for an export file without storing them" }
func (c *ComputeCommand) Standalone()         {}

func (c *ComputeCommand) Execute(ctx context.Context, _ *internal.Application, args []string) error {
	fs := flag.NewFlagSet("compute", flag.ContinueOnError)
	period := fs.String("period", string(analytics.PeriodAll), "period to print: all, month or year")
	format := fs.String("format", "json", "output format: json or yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: %s [-period all|month|year] [-format json|yaml] <export.json>", c.Name())
	}
	if *format != "json" && *format != "yaml" {
		return fmt.Errorf("unknown format %q", *format)
	}
	kind, ok := analytics.ParsePeriodKind(*period)
	if !ok {
		return fmt.Errorf("unknown period %q", *period)
	}

	result, err := buildFromFile(ctx, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})), fs.Arg(0))
	if err != nil {
		return err
	}

	var payload any
	switch kind {
	case analytics.PeriodMonth:
		payload = result.Months
	case analytics.PeriodYear:
		payload = result.Years
	default:
		payload = result.AllTime
	}

	if *format == "yaml" {
		return writeYAML(c.out, payload)
	}

	encoder := json.NewEncoder(c.out)
	if c.pretty {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(payload)
}

// writeYAML goes through JSON first so the YAML keys match the API field names.
func writeYAML(w io.Writer, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return err
	}
	return encoder.Close()
}

// ImportCommand stores an export file as a profile.
type ImportCommand struct{}

func (c *ImportCommand) Name() string        { return "import" }
func (c *ImportCommand) Description() string { return "Builds and stores a profile from an export file" }

func (c *ImportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s <export.json>", c.Name())
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	doc, err := export.DecodeBytes(raw)
	if err != nil {
		return err
	}

	logger := slog.Default()
	result, err := profiles.Build(ctx, logger, doc)
	if err != nil {
		return err
	}

	store := profiles.NewStore(app.DBManager.GetConnection(), logger)
	if err := store.Replace(ctx, result, raw); err != nil {
		return err
	}

	log.Printf("Stored profile %s (%d days, %d matches)", result.Profile.ID, result.Profile.DaysInProfilePeriod, len(result.Matches))
	return nil
}

// RecomputeCommand rebuilds profiles computed by an older pipeline version.
type RecomputeCommand struct{}

func (c *RecomputeCommand) Name() string        { return "recompute" }
func (c *RecomputeCommand) Description() string { return "Recomputes stale profiles from their original files" }

func (c *RecomputeCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("recompute", flag.ContinueOnError)
	workers := fs.Int("workers", 2, "number of profiles recomputed in parallel")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	logger := slog.Default()
	store := profiles.NewStore(app.DBManager.GetConnection(), logger)
	return jobs.NewRecomputeJob(store, logger, *workers, nil).Run(ctx)
}

// PruneCommand deletes old original files.
type PruneCommand struct{}

func (c *PruneCommand) Name() string        { return "prune" }
func (c *PruneCommand) Description() string { return "Deletes original files beyond the newest N per profile" }

func (c *PruneCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	keep := fs.Int("keep", 3, "original files kept per profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot connect to database")
	}

	logger := slog.Default()
	store := profiles.NewStore(app.DBManager.GetConnection(), logger)
	return jobs.NewCleanupJob(store, logger, *keep).Run(ctx)
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// SeedCommand populates the DB with synthetic profiles
type SeedCommand struct{}

func (c *SeedCommand) Name() string        { return "seed" }
func (c *SeedCommand) Description() string { return "Seeds the database with synthetic profiles" }

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	count := fs.Int("profiles", 20, "number of profiles to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	return seeder.NewSeeder(app.DBManager, slog.Default(), *count).Run(ctx)
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

// Name returns the command name
func (c *StatusCommand) Name() string {
	return "status"
}

// Description returns the command description
func (c *StatusCommand) Description() string {
	return "Shows the current system status"
}

// Execute implements the status command
func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()

	var count int64
	if err := db.Model(&profiles.Profile{}).Count(&count).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	var stale int64
	if err := db.Model(&profiles.Profile{}).Where("compute_version < ?", profiles.ComputeVersion).Count(&stale).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	log.Println("System Status:")
	log.Println("- Database: Connected")
	log.Printf("- Profiles: %d", count)
	log.Printf("- Stale profiles: %d", stale)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}

	log.Printf("- Max Open Connections: %d", sqlDB.Stats().MaxOpenConnections)
	log.Printf("- Open Connections: %d", sqlDB.Stats().OpenConnections)
	log.Printf("- In Use: %d", sqlDB.Stats().InUse)
	log.Printf("- Idle: %d", sqlDB.Stats().Idle)

	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }
func (c *HelpCommand) Standalone()         {}

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage()
	return nil
}

// Helper functions

func buildFromFile(ctx context.Context, logger *slog.Logger, path string) (*profiles.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	doc, err := export.Decode(f)
	if err != nil {
		return nil, err
	}
	return profiles.Build(ctx, logger, doc)
}

// parseArgs parses the command name and arguments
func parseArgs() (string, []string) {
	args := os.Args[1:]
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: profilectl [command] [args...]")
	fmt.Println("Available commands:")

	for _, cmd := range commands {
		fmt.Printf("  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage()
	os.Exit(1)
}
