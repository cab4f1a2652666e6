// Package app is the public API of folio for hosting platforms that embed the
// analytics service or render resumes on the server and report views from Go.
package app

import (
	"context"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"folio/internal"
	"folio/internal/analytics"
	"folio/internal/capture"
	"folio/internal/config"
	"folio/internal/database"
)

// Re-export core types
type (
	Application = internal.Application
	Config      = config.Config
	DBManager   = database.DBManager
	Metrics     = analytics.AggregatedMetrics
)

// Re-export the capture client
type (
	CaptureClient = capture.Client
	CaptureConfig = capture.Config
	CaptureResult = capture.Result
	TrackOption   = capture.TrackOption
	Location      = capture.Location
)

const (
	CaptureSuppressed = capture.ResultSuppressed
	CaptureSent       = capture.ResultSent
	CaptureFailed     = capture.ResultFailed
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	return config.GetConfig()
}

// NewApp creates a new application with default routes
func NewApp() (*Application, error) {
	return internal.NewApp()
}

// NewAppWithRoutes creates a new application with custom route mounting.
// Call MountAppRoutes from routeMount to keep the ingestion and dashboard API.
func NewAppWithRoutes(cfg *Config, routeMount func(*cartridge.Server)) (*Application, error) {
	return internal.NewAppWithRoutes(cfg, routeMount)
}

// MountAppRoutes mounts the ingestion, SDK and owner API routes.
func MountAppRoutes(srv *cartridge.Server) {
	internal.MountAppRoutes(srv)
}

// NewCaptureClient builds a client that reports events to a folio server.
func NewCaptureClient(cfg CaptureConfig) *CaptureClient {
	return capture.NewClient(cfg)
}

// WithOwner attributes a portfolio event without a resource to ownerID.
func WithOwner(ownerID uint) TrackOption { return capture.WithOwner(ownerID) }

// WithSection names the portfolio section that was viewed.
func WithSection(section string) TrackOption { return capture.WithSection(section) }

// WithTarget names the link or button that was clicked.
func WithTarget(target string) TrackOption { return capture.WithTarget(target) }

// WithTimeOnPage attaches dwell time in seconds and scroll depth in percent.
func WithTimeOnPage(seconds, scrollDepth float64) TrackOption {
	return capture.WithTimeOnPage(seconds, scrollDepth)
}

// OwnerMetrics aggregates every event of ownerID over the last windowDays.
func OwnerMetrics(ctx context.Context, db *gorm.DB, ownerID uint, windowDays int) (*Metrics, error) {
	return analytics.GetAggregatedMetrics(ctx, db, ownerID, windowDays)
}

// ResourceMetrics aggregates the events of one resume or portfolio.
func ResourceMetrics(ctx context.Context, db *gorm.DB, ownerID uint, resourceID string, windowDays int) (*Metrics, error) {
	return analytics.GetResourceMetrics(ctx, db, ownerID, resourceID, windowDays)
}
