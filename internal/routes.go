package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"swipestats/internal/config"
	"swipestats/internal/http"
	"swipestats/internal/profiles"
)

// apiCORSConfig is shared by all profile API endpoints.
var apiCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,POST,DELETE,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization",
}

// MountAppRoutes mounts all application routes with a comparer bound to the
// server's database.
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	store := profiles.NewStore(srv.GetDBManager().GetConnection(), srv.GetLogger())
	comparer := profiles.NewComparer(srv.GetLogger(), store, cfg.PeerComparisonMinProfiles)
	mountRoutes(srv, cfg, store, comparer)
}

// RouteMounter returns a route mount function sharing comparer with the caller,
// so background recomputes can invalidate the baselines the API serves.
func RouteMounter(comparer *profiles.Comparer) func(*cartridge.Server) {
	return func(srv *cartridge.Server) {
		cfg := config.GetConfig()
		store := profiles.NewStore(srv.GetDBManager().GetConnection(), srv.GetLogger())
		mountRoutes(srv, cfg, store, comparer)
	}
}

func mountRoutes(srv *cartridge.Server, cfg *config.Config, store *profiles.Store, comparer *profiles.Comparer) {
	// Rate limiting would interfere with tests, only apply it in production
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Uploads run the whole pipeline, keep them scarce
	uploadRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	readRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(120),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// API clients are scripts and other services, not browsers
	uploadConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         apiCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{uploadRateLimiter},
	}

	readConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CORSConfig:         apiCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
		CustomMiddleware:   []fiber.Handler{readRateLimiter},
	}

	preflight := func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	profileHandler := http.NewProfileHandler(store, comparer, cfg)

	// === PROFILE API ROUTES ===
	srv.Post("/api/profiles", profileHandler.ProfileCreateAction, uploadConfig)
	srv.Options("/api/profiles", preflight, uploadConfig)
	srv.Get("/api/profiles/:id", profileHandler.ProfileShowAction, readConfig)
	srv.Delete("/api/profiles/:id", profileHandler.ProfileDeleteAction, readConfig)
	srv.Options("/api/profiles/:id", preflight, readConfig)
	srv.Get("/api/profiles/:id/meta", profileHandler.ProfileMetaAction, readConfig)
	srv.Get("/api/profiles/:id/usage", profileHandler.ProfileUsageAction, readConfig)
	srv.Get("/api/profiles/:id/comparison", profileHandler.ProfileComparisonAction, readConfig)
}
