package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"folio/internal/config"
	"folio/internal/events"
)

const (
	msgEventRecorded  = "Event recorded"
	errInvalidRequest = "Invalid request"
)

// StatusStorageBusy tells the client the write can be retried.
const StatusStorageBusy = 599

type GeoParams struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

type CreateEventParams struct {
	EventKind   string     `json:"eventKind"`
	ResourceID  string     `json:"resourceId"`
	OwnerID     uint       `json:"ownerId"`
	SessionID   string     `json:"sessionId"`
	Geo         *GeoParams `json:"geo"`
	Device      string     `json:"device"`
	OS          string     `json:"os"`
	Browser     string     `json:"browser"`
	Referrer    string     `json:"referrer"`
	Section     string     `json:"section"`
	Target      string     `json:"target"`
	TimeSpent   float64    `json:"timeSpent"`
	ScrollDepth float64    `json:"scrollDepth"`
}

func (p *CreateEventParams) toInput(c *fiber.Ctx) *events.RecordEventInput {
	input := &events.RecordEventInput{
		Kind:        events.EventKind(strings.TrimSpace(p.EventKind)),
		ResourceID:  strings.TrimSpace(p.ResourceID),
		OwnerID:     p.OwnerID,
		SessionID:   p.SessionID,
		Device:      p.Device,
		OS:          p.OS,
		Browser:     p.Browser,
		Referrer:    p.Referrer,
		Section:     p.Section,
		Target:      p.Target,
		TimeSpent:   p.TimeSpent,
		ScrollDepth: p.ScrollDepth,
		IPAddress:   getClientIP(c),
		UserAgent:   requestUserAgent(c),
	}
	if p.Geo != nil {
		input.Geo = &events.Geo{
			City:        p.Geo.City,
			Region:      p.Geo.Region,
			Country:     p.Geo.Country,
			CountryCode: p.Geo.CountryCode,
		}
	}
	return input
}

func requestUserAgent(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-User-Agent"); forwarded != "" {
		return forwarded
	}
	return c.Get("User-Agent")
}

// requestContext bounds the storage work of one request.
func requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), config.GetConfig().GetRequestTimeout())
}

func CreateEventPublicAPIHandler(ctx *cartridge.Context) error {
	ctx.Logger.Debug("Received event request", slog.String("method", ctx.Method()), slog.String("path", ctx.Path()))

	var params CreateEventParams
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse event request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}

	reqCtx, cancel := requestContext(ctx.Ctx)
	defer cancel()

	event, err := events.RecordEvent(reqCtx, ctx.DBManager, ctx.Logger, params.toInput(ctx.Ctx))
	if err != nil {
		return respondRecordError(ctx, err)
	}

	if event != nil {
		ctx.Logger.Debug("Recorded event",
			slog.Uint64("event_id", uint64(event.ID)),
			slog.String("kind", string(event.Kind)))
	}
	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"message": msgEventRecorded,
		"status":  http.StatusAccepted,
	})
}

func respondRecordError(ctx *cartridge.Context, err error) error {
	var validationErr *events.ValidationError
	switch {
	case errors.As(err, &validationErr):
		ctx.Logger.Debug("Rejected invalid event", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": validationErr.Error(),
			"field": validationErr.Field,
			"code":  "VALIDATION_ERROR",
		})
	case events.IsNotFound(err):
		ctx.Logger.Debug("Rejected event for unknown resource", slog.Any("error", err))
		return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
			"error": "Resource not found",
			"code":  "NOT_FOUND",
		})
	case isStorageBusy(err):
		ctx.Logger.Warn("Storage busy while recording event", slog.Any("error", err))
		return ctx.Status(StatusStorageBusy).JSON(fiber.Map{})
	default:
		ctx.Logger.Error("Failed to record event", slog.Any("error", err))
		return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record event",
			"code":  "COLLECTION_ERROR",
		})
	}
}

func isStorageBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// CreateEventBeaconHandler handles events sent with navigator.sendBeacon. The
// browser ignores the response, so every outcome is a 202.
func CreateEventBeaconHandler(ctx *cartridge.Context) error {
	var params CreateEventParams
	if err := json.Unmarshal(ctx.Body(), &params); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}

	reqCtx, cancel := requestContext(ctx.Ctx)
	defer cancel()

	if _, err := events.RecordEvent(reqCtx, ctx.DBManager, ctx.Logger, params.toInput(ctx.Ctx)); err != nil {
		ctx.Logger.Debug("Failed to record beacon event",
			slog.Any("error", err),
			slog.String("kind", params.EventKind))
	}

	return ctx.SendStatus(http.StatusAccepted)
}
