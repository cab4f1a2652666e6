package capture

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// Location is the viewer's approximate position. Empty fields are unknown.
type Location struct {
	City        string `json:"city,omitempty"`
	Region      string `json:"region,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
}

// GeoLocator resolves the caller's own public address to a location.
type GeoLocator interface {
	Locate(ctx context.Context) (*Location, error)
}

// LocationCache keeps a resolved location for the lifetime of the browser
// profile. It has no expiry.
type LocationCache interface {
	Get() (*Location, bool)
	Set(loc *Location)
}

// MemoryLocationCache is an in-process LocationCache.
type MemoryLocationCache struct {
	mu  sync.RWMutex
	loc *Location
}

func (c *MemoryLocationCache) Get() (*Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loc == nil {
		return nil, false
	}
	loc := *c.loc
	return &loc, true
}

func (c *MemoryLocationCache) Set(loc *Location) {
	if loc == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := *loc
	c.loc = &stored
}

// HTTPGeoLocator queries a JSON IP geolocation service such as ipapi.co/json.
type HTTPGeoLocator struct {
	client *http.Client
	url    string
}

type geoResponse struct {
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
	CountryCode string `json:"country_code"`
	Error       bool   `json:"error"`
	Reason      string `json:"reason"`
}

// NewHTTPGeoLocator creates a locator for url. A nil client gets a 5 second timeout.
func NewHTTPGeoLocator(url string, client *http.Client) *HTTPGeoLocator {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPGeoLocator{client: client, url: url}
}

func (g *HTTPGeoLocator) Locate(ctx context.Context) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query geolocation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geolocation returned status %d", resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode geolocation response: %w", err)
	}
	if body.Error {
		return nil, fmt.Errorf("geolocation error: %s", body.Reason)
	}

	return &Location{
		City:        body.City,
		Region:      body.Region,
		Country:     body.CountryName,
		CountryCode: strings.ToUpper(body.CountryCode),
	}, nil
}
