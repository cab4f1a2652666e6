// Package capture is the reporting side of the analytics pipeline: it decides
// whether a view should be reported for the current session, gathers device and
// location details and posts a single event to the ingestion endpoint.
// Failures are logged and never returned; capture must not break the page.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// EventsPath is the ingestion route relative to the endpoint base URL.
const EventsPath = "/x/api/v1/events"

// Result tells what Track did.
type Result int

const (
	// ResultSuppressed means the session already reported this resource for this kind.
	ResultSuppressed Result = iota
	ResultSent
	// ResultFailed means the request was attempted and did not succeed.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSuppressed:
		return "suppressed"
	case ResultSent:
		return "sent"
	default:
		return "failed"
	}
}

// Payload is the JSON body accepted by the ingestion endpoint.
type Payload struct {
	EventKind   string    `json:"eventKind"`
	ResourceID  string    `json:"resourceId,omitempty"`
	OwnerID     uint      `json:"ownerId,omitempty"`
	SessionID   string    `json:"sessionId"`
	Geo         *Location `json:"geo,omitempty"`
	Device      string    `json:"device,omitempty"`
	OS          string    `json:"os,omitempty"`
	Browser     string    `json:"browser,omitempty"`
	Referrer    string    `json:"referrer,omitempty"`
	Section     string    `json:"section,omitempty"`
	Target      string    `json:"target,omitempty"`
	TimeSpent   float64   `json:"timeSpent,omitempty"`
	ScrollDepth float64   `json:"scrollDepth,omitempty"`
}

// Config configures a Client. Endpoint is required; everything else has a default.
type Config struct {
	Endpoint      string
	HTTPClient    *http.Client
	Logger        *slog.Logger
	Markers       MarkerStore
	SessionTTL    time.Duration
	Locator       GeoLocator
	LocationCache LocationCache
	UserAgent     string
	UserAgentData *UserAgentData
	Referrer      string
}

// Client reports events for one browser session. It is safe for concurrent use,
// but two concurrent Track calls for the same resource may both be sent.
type Client struct {
	endpoint  string
	http      *http.Client
	logger    *slog.Logger
	markers   MarkerStore
	locator   GeoLocator
	locations LocationCache
	device    DeviceInfo
	userAgent string
	referrer  string

	sessionOnce sync.Once
	sessionID   string
}

func NewClient(cfg Config) *Client {
	c := &Client{
		endpoint:  cfg.Endpoint,
		http:      cfg.HTTPClient,
		logger:    cfg.Logger,
		markers:   cfg.Markers,
		locator:   cfg.Locator,
		locations: cfg.LocationCache,
		device:    ResolveDevice(cfg.UserAgentData, cfg.UserAgent),
		userAgent: cfg.UserAgent,
		referrer:  cfg.Referrer,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.markers == nil {
		ttl := cfg.SessionTTL
		if ttl <= 0 {
			ttl = 30 * time.Minute
		}
		c.markers = NewSessionMarkers(ttl)
	}
	if c.locations == nil {
		c.locations = &MemoryLocationCache{}
	}
	return c
}

// SessionID returns the id sent with every event of this client.
func (c *Client) SessionID() string {
	c.sessionOnce.Do(func() {
		c.sessionID = uuid.NewString()
	})
	return c.sessionID
}

// TrackOption adds detail to a tracked event.
type TrackOption func(*Payload)

// WithOwner attributes a portfolio event that has no resource id.
func WithOwner(ownerID uint) TrackOption {
	return func(p *Payload) { p.OwnerID = ownerID }
}

func WithSection(section string) TrackOption {
	return func(p *Payload) { p.Section = section }
}

func WithTarget(target string) TrackOption {
	return func(p *Payload) { p.Target = target }
}

// WithTimeOnPage reports seconds spent and the deepest scroll percentage.
func WithTimeOnPage(seconds, scrollDepth float64) TrackOption {
	return func(p *Payload) {
		p.TimeSpent = seconds
		p.ScrollDepth = scrollDepth
	}
}

// markerKey identifies the dedup slot. Owner-only events use the owner id.
func markerKey(p *Payload) string {
	if p.ResourceID != "" {
		return p.ResourceID
	}
	return fmt.Sprintf("owner:%d", p.OwnerID)
}

// Track reports kind for resourceID unless this session already reported the
// same resource for the same kind. The marker is only updated after the
// endpoint accepted the event, so a failed attempt is retried on the next call.
func (c *Client) Track(ctx context.Context, kind, resourceID string, opts ...TrackOption) Result {
	payload := &Payload{
		EventKind:  kind,
		ResourceID: resourceID,
		SessionID:  c.SessionID(),
		Device:     c.device.Device,
		OS:         c.device.OS,
		Browser:    c.device.Browser,
		Referrer:   c.referrer,
	}
	for _, opt := range opts {
		opt(payload)
	}

	key := markerKey(payload)
	if last, ok := c.markers.Get(kind); ok && last == key {
		c.logger.Debug("Skipping already reported event",
			slog.String("kind", kind),
			slog.String("resource_id", resourceID))
		return ResultSuppressed
	}

	payload.Geo = c.ResolveLocation(ctx)

	if err := c.send(ctx, payload); err != nil {
		c.logger.Warn("Failed to report analytics event",
			slog.String("kind", kind),
			slog.String("resource_id", resourceID),
			slog.Any("error", err))
		return ResultFailed
	}

	c.markers.Set(kind, key)
	return ResultSent
}

// ResolveLocation returns the cached location or asks the locator once. A
// failed lookup returns nil and is not cached.
func (c *Client) ResolveLocation(ctx context.Context) *Location {
	if loc, ok := c.locations.Get(); ok {
		return loc
	}
	if c.locator == nil {
		return nil
	}

	loc, err := c.locator.Locate(ctx)
	if err != nil {
		c.logger.Debug("Location lookup failed", slog.Any("error", err))
		return nil
	}
	c.locations.Set(loc)
	return loc
}

func (c *Client) send(ctx context.Context, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+EventsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingestion returned status %d", resp.StatusCode)
	}
	return nil
}
