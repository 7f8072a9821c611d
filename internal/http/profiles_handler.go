package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"swipestats/internal/analytics"
	"swipestats/internal/config"
	"swipestats/internal/export"
	"swipestats/internal/profiles"
	"swipestats/internal/timeframe"
)

// ProfileHandler serves the profile upload and read API.
type ProfileHandler struct {
	store    *profiles.Store
	comparer *profiles.Comparer
	cfg      *config.Config
}

// NewProfileHandler creates the handler. The comparer's cached baselines are
// invalidated whenever a profile is written or removed.
func NewProfileHandler(store *profiles.Store, comparer *profiles.Comparer, cfg *config.Config) *ProfileHandler {
	return &ProfileHandler{
		store:    store,
		comparer: comparer,
		cfg:      cfg,
	}
}

// ProfileCreateAction builds a profile from an uploaded export and stores it,
// replacing any earlier upload of the same account.
func (h *ProfileHandler) ProfileCreateAction(ctx *cartridge.Context) error {
	body := ctx.Body()
	if len(body) == 0 {
		return errorResponse(ctx, http.StatusBadRequest, "Request body is empty", "EMPTY_UPLOAD")
	}
	if len(body) > h.cfg.MaxUploadBytes() {
		return errorResponse(ctx, http.StatusRequestEntityTooLarge, "Export file is too large", "UPLOAD_TOO_LARGE")
	}

	doc, err := export.DecodeBytes(body)
	if err != nil {
		ctx.Logger.Debug("Rejected export upload", slog.Any("error", err))
		return respondProfileError(ctx, err)
	}

	result, err := profiles.Build(ctx.UserContext(), ctx.Logger, doc)
	if err != nil {
		ctx.Logger.Debug("Failed to build profile", slog.Any("error", err))
		return respondProfileError(ctx, err)
	}

	if err := h.store.Replace(ctx.UserContext(), result, body); err != nil {
		ctx.Logger.Error("Failed to store profile",
			slog.String("profile_id", result.Profile.ID),
			slog.Any("error", err))
		return respondProfileError(ctx, err)
	}
	h.comparer.Invalidate()

	ctx.Logger.Info("Stored profile",
		slog.String("profile_id", result.Profile.ID),
		slog.Int("days", result.Profile.DaysInProfilePeriod),
		slog.Int("matches", len(result.Matches)))

	return ctx.Status(http.StatusCreated).JSON(fiber.Map{
		"profile_id":             result.Profile.ID,
		"days_in_profile_period": result.Profile.DaysInProfilePeriod,
		"matches":                len(result.Matches),
		"months":                 len(result.Months),
		"years":                  len(result.Years),
	})
}

// ProfileShowAction returns the stored profile attributes.
func (h *ProfileHandler) ProfileShowAction(ctx *cartridge.Context) error {
	profile, err := h.store.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return respondProfileError(ctx, err)
	}
	return ctx.JSON(profile)
}

// ProfileMetaAction lists the stored ProfileMeta rows of one period kind.
func (h *ProfileHandler) ProfileMetaAction(ctx *cartridge.Context) error {
	id := ctx.Params("id")
	kind, ok := analytics.ParsePeriodKind(ctx.Query("period", string(analytics.PeriodAll)))
	if !ok {
		return errorResponse(ctx, http.StatusBadRequest, "Period must be one of all, month, year", "INVALID_PERIOD")
	}

	metas, err := h.store.Metas(ctx.UserContext(), id, kind)
	if err != nil {
		return respondProfileError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"profile_id": id,
		"period":     kind,
		"metas":      metas,
	})
}

// ProfileUsageAction returns one usage metric grouped by day, month or year.
func (h *ProfileHandler) ProfileUsageAction(ctx *cartridge.Context) error {
	bucket, err := timeframe.ParseBucketSize(ctx.Query("bucket", string(timeframe.TimeFrameBucketSizeDay)))
	if err != nil {
		return errorResponse(ctx, http.StatusBadRequest, err.Error(), "INVALID_BUCKET")
	}
	metric := ctx.Query("metric", "app_opens")

	series, err := h.store.UsageSeries(ctx.UserContext(), ctx.Params("id"), metric, bucket)
	if err != nil {
		return respondProfileError(ctx, err)
	}

	return ctx.JSON(fiber.Map{
		"metric": metric,
		"bucket": bucket,
		"points": series,
	})
}

// ProfileComparisonAction compares a profile's all-time meta with its peers.
func (h *ProfileHandler) ProfileComparisonAction(ctx *cartridge.Context) error {
	comparison, err := h.comparer.Compare(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return respondProfileError(ctx, err)
	}
	return ctx.JSON(comparison)
}

// ProfileDeleteAction removes a profile and everything it owns.
func (h *ProfileHandler) ProfileDeleteAction(ctx *cartridge.Context) error {
	id := ctx.Params("id")
	if err := h.store.Delete(ctx.UserContext(), id); err != nil {
		return respondProfileError(ctx, err)
	}
	h.comparer.Invalidate()

	ctx.Logger.Info("Deleted profile", slog.String("profile_id", id))
	return ctx.SendStatus(http.StatusNoContent)
}

func errorResponse(ctx *cartridge.Context, status int, message, code string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// respondProfileError maps pipeline and store errors to status codes.
func respondProfileError(ctx *cartridge.Context, err error) error {
	status, code := classifyError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		ctx.Logger.Error("Profile request failed", slog.String("path", ctx.Path()), slog.Any("error", err))
		message = "Internal server error"
	}
	return errorResponse(ctx, status, message, code)
}

func classifyError(err error) (int, string) {
	var dateErr *export.DateError
	switch {
	case errors.Is(err, export.ErrNoAppOpens):
		return http.StatusBadRequest, "NO_APP_OPENS"
	case errors.As(err, &dateErr):
		return http.StatusBadRequest, "MALFORMED_DATE"
	case errors.Is(err, export.ErrInvalidExport):
		return http.StatusBadRequest, "INVALID_EXPORT"
	case errors.Is(err, profiles.ErrUnknownMetric):
		return http.StatusBadRequest, "INVALID_METRIC"
	case errors.Is(err, profiles.ErrProfileNotFound):
		return http.StatusNotFound, "PROFILE_NOT_FOUND"
	case errors.Is(err, profiles.ErrNotEnoughPeers):
		return http.StatusUnprocessableEntity, "NOT_ENOUGH_PEERS"
	case errors.Is(err, profiles.ErrRestoredFromOriginal):
		return http.StatusConflict, "UPDATE_REJECTED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
