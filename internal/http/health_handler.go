package http

import (
	"errors"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"swipestats/internal/profiles"
)

var errDatabaseUnavailable = errors.New("database connection unavailable")

// HealthStatus is the /_health response. Profiles and StaleProfiles are only
// reported while the database answers.
type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	DBStatus       string    `json:"db_status"`
	ComputeVersion int       `json:"compute_version"`
	Profiles       *int64    `json:"profiles,omitempty"`
	StaleProfiles  *int64    `json:"stale_profiles,omitempty"`
}

// HealthIndexAction reports database reachability and how many stored profiles
// still wait for a recompute.
func HealthIndexAction(ctx *cartridge.Context) error {
	health := HealthStatus{
		Status:         "ok",
		Timestamp:      time.Now().UTC(),
		DBStatus:       "ok",
		ComputeVersion: profiles.ComputeVersion,
	}

	db := ctx.DBManager.GetConnection()
	if err := pingDatabase(db); err != nil {
		ctx.Logger.Error("Database health check failed", slog.Any("error", err))
		health.Status = "degraded"
		health.DBStatus = "error"
		return ctx.JSON(health)
	}

	conn := db.WithContext(ctx.UserContext())
	var total, stale int64
	if err := conn.Model(&profiles.Profile{}).Count(&total).Error; err != nil {
		ctx.Logger.Error("Failed to count profiles", slog.Any("error", err))
		health.Status = "degraded"
		return ctx.JSON(health)
	}
	if err := conn.Model(&profiles.Profile{}).Where("compute_version < ?", profiles.ComputeVersion).Count(&stale).Error; err != nil {
		ctx.Logger.Error("Failed to count stale profiles", slog.Any("error", err))
		health.Status = "degraded"
		return ctx.JSON(health)
	}
	health.Profiles = &total
	health.StaleProfiles = &stale

	return ctx.JSON(health)
}

func pingDatabase(db *gorm.DB) error {
	if db == nil {
		return errDatabaseUnavailable
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
