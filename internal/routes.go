package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "folio/api/v1"
	"folio/internal/config"
	"folio/internal/http"
	"folio/internal/http/middleware"
	"folio/internal/pkg/geoip"
)

// publicCORSConfig is shared by every endpoint the capture client talks to.
var publicCORSConfig = &cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,GET,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
}

func noContent(ctx *cartridge.Context) error {
	return ctx.SendStatus(fiber.StatusNoContent)
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	cfg := config.GetConfig()
	logger := srv.GetLogger()
	db := srv.GetDBManager().GetConnection()

	geoip.InitLogger(logger)

	// Rate limiting would interfere with development and tests.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// 70 requests per minute per IP for ingestion and SDK delivery
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// The capture client runs in browsers and in server-side renderers, so
	// Sec-Fetch-Site is not required on ingestion.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		WriteConcurrency:   false,
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	sdkConfig := &cartridge.RouteConfig{
		EnableCORS:         true,
		CustomMiddleware:   []fiber.Handler{publicRateLimiter},
		CORSConfig:         publicCORSConfig,
		EnableSecFetchSite: cartridge.Bool(false),
	}

	ownerAPIConfig := &cartridge.RouteConfig{
		CustomMiddleware:   []fiber.Handler{middleware.OwnerAPIKeyAuth(db, logger)},
		EnableSecFetchSite: cartridge.Bool(false),
	}

	// Health check endpoint
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === INGESTION ===
	srv.Post("/x/api/v1/events", v1.CreateEventPublicAPIHandler, publicAPIConfig)
	srv.Options("/x/api/v1/events", noContent, publicAPIConfig)
	srv.Post("/x/api/v1/events/beacon", v1.CreateEventBeaconHandler, publicAPIConfig)
	srv.Options("/x/api/v1/events/beacon", noContent, publicAPIConfig)

	// === CAPTURE SDK ===
	srv.Get("/y/api/v1/capture.js", v1.GetSDKAction, sdkConfig)

	// === OWNER DASHBOARD API ===
	srv.Get("/api/v1/owners/:ownerId/metrics", http.OwnerMetricsAction, ownerAPIConfig)
	srv.Get("/api/v1/owners/:ownerId/resources/:resourceId/metrics", http.ResourceMetricsAction, ownerAPIConfig)
	srv.Get("/api/v1/owners/:ownerId/events", http.EventsIndexAction, ownerAPIConfig)
	srv.Delete("/api/v1/owners/:ownerId", http.AccountDeleteAction, ownerAPIConfig)
}
