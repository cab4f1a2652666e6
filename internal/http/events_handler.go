package http

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"folio/internal/events"
	"folio/internal/resources"
	"folio/internal/visitors"
)

const eventsPerPage = 50

type PaginationData struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	PerPage     int   `json:"per_page"`
}

type Event struct {
	Timestamp    time.Time              `json:"timestamp"`
	Kind         events.EventKind       `json:"event_kind"`
	Message      string                 `json:"message"`
	ResourceID   *string                `json:"resource_id"`
	ResourceType resources.ResourceType `json:"resource_type"`
	Visitor      string                 `json:"visitor"`
	Device       string                 `json:"device"`
	Browser      string                 `json:"browser"`
	Country      string                 `json:"country,omitempty"`
	Referrer     string                 `json:"referrer"`
}

type EventsResponse struct {
	Events     []Event        `json:"events"`
	Pagination PaginationData `json:"pagination"`
}

// EventsIndexAction lists the owner's raw events, newest first, for the
// activity log. Supports ?page, ?days, ?tz, ?kind, ?resource_id and ?session_id.
func EventsIndexAction(ctx *cartridge.Context) error {
	reqCtx, cancel := requestContext(ctx)
	defer cancel()

	page, err := strconv.Atoi(ctx.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	tf, ok, err := parseWindow(ctx)
	if !ok {
		return err
	}
	filters := events.EventFilters{
		OwnerID:    ownerID(ctx),
		ResourceID: ctx.Query("resource_id"),
		Kind:       events.EventKind(ctx.Query("kind")),
		SessionID:  ctx.Query("session_id"),
		FromDate:   tf.From,
		ToDate:     tf.To,
		Limit:      eventsPerPage,
		Offset:     (page - 1) * eventsPerPage,
	}

	result, err := events.GetFilteredEvents(ctx.DB().WithContext(reqCtx), filters)
	if err != nil {
		ctx.Logger.Error("Failed to list events", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load events"})
	}

	list := make([]Event, 0, len(result.Events))
	for i := range result.Events {
		e := &result.Events[i]
		list = append(list, Event{
			Timestamp:    e.CreatedAt,
			Kind:         e.Kind,
			Message:      e.Vocabulary().Describe(e),
			ResourceID:   e.ResourceID,
			ResourceType: e.ResourceType,
			Visitor:      visitors.Alias(e.SessionID),
			Device:       e.Device,
			Browser:      e.Browser,
			Country:      e.Geo.Country,
			Referrer:     events.ReferrerHost(e.Referrer),
		})
	}

	totalPages := int((result.Total + eventsPerPage - 1) / eventsPerPage)

	return ctx.JSON(EventsResponse{
		Events: list,
		Pagination: PaginationData{
			CurrentPage: page,
			TotalPages:  totalPages,
			TotalItems:  result.Total,
			PerPage:     eventsPerPage,
		},
	})
}
