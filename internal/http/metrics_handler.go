package http

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"folio/internal/analytics"
	"folio/internal/http/middleware"
	"folio/internal/resources"
	"folio/internal/timeframe"
)

const errLoadAnalytics = "Failed to load analytics"

// parseWindow reads ?days=N and ?tz=<IANA zone>. Missing or invalid days use
// the default and anything above the maximum is capped. ok is false when the
// 400 response has already been written.
func parseWindow(ctx *cartridge.Context) (*timeframe.TimeFrame, bool, error) {
	tf, err := analytics.ParseWindow(ctx.Query("days"), ctx.Query("tz"))
	if err != nil {
		return nil, false, ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid timezone",
			"code":  "INVALID_REQUEST",
		})
	}
	return tf, true, nil
}

func ownerID(ctx *cartridge.Context) uint {
	id, _ := ctx.Locals(middleware.OwnerIDKey).(uint)
	return id
}

// OwnerMetricsAction returns the owner dashboard: every resume and portfolio
// event of the window aggregated together.
func OwnerMetricsAction(ctx *cartridge.Context) error {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	tf, ok, err := parseWindow(ctx)
	if !ok {
		return err
	}
	metrics, err := analytics.GetAggregatedMetricsInWindow(reqCtx, ctx.DB(), ownerID(ctx), tf)
	if err != nil {
		ctx.Logger.Error("Failed to aggregate owner metrics",
			slog.Uint64("owner_id", uint64(ownerID(ctx))),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errLoadAnalytics})
	}

	return ctx.JSON(fiber.Map{
		"owner_id":    ownerID(ctx),
		"window_days": tf.Days,
		"timezone":    tf.Tz.String(),
		"metrics":     metrics,
	})
}

// ResourceMetricsAction returns the panel for a single resume or portfolio.
func ResourceMetricsAction(ctx *cartridge.Context) error {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	resourceID := ctx.Params("resourceId")
	tf, ok, err := parseWindow(ctx)
	if !ok {
		return err
	}

	metrics, err := analytics.GetResourceMetricsInWindow(reqCtx, ctx.DB(), ownerID(ctx), resourceID, tf)
	if err != nil {
		var notFound *resources.ResourceNotFoundError
		if errors.As(err, &notFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Resource not found",
				"code":  "NOT_FOUND",
			})
		}
		ctx.Logger.Error("Failed to aggregate resource metrics",
			slog.String("resource_id", resourceID),
			slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": errLoadAnalytics})
	}

	return ctx.JSON(fiber.Map{
		"owner_id":    ownerID(ctx),
		"resource_id": resourceID,
		"window_days": tf.Days,
		"timezone":    tf.Tz.String(),
		"metrics":     metrics,
	})
}
