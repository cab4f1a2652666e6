package analytics

import (
	"strings"
	"time"

	"folio/internal/events"
	"folio/internal/resources"
	"folio/internal/timeframe"
)

// MetricCountResult is one row of a ranked breakdown.
type MetricCountResult struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// DeviceClass is the dashboard bucket a device string falls into.
type DeviceClass int

const (
	DeviceDesktop DeviceClass = iota
	DeviceMobile
	DeviceTablet
)

func (d DeviceClass) String() string {
	switch d {
	case DeviceMobile:
		return "mobile"
	case DeviceTablet:
		return "tablet"
	default:
		return "desktop"
	}
}

// ClassifyDevice buckets a free-form device string. Anything that does not mention
// mobile or tablet, including the empty string, is a desktop.
func ClassifyDevice(device string) DeviceClass {
	lower := strings.ToLower(device)
	switch {
	case strings.Contains(lower, "mobile"):
		return DeviceMobile
	case strings.Contains(lower, "tablet"):
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

type DeviceBreakdown struct {
	Desktop int64 `json:"desktop"`
	Mobile  int64 `json:"mobile"`
	Tablet  int64 `json:"tablet"`
}

func (b *DeviceBreakdown) add(class DeviceClass) {
	switch class {
	case DeviceMobile:
		b.Mobile++
	case DeviceTablet:
		b.Tablet++
	default:
		b.Desktop++
	}
}

// ActivityItem is one line of the recent activity feed.
type ActivityItem struct {
	Type         events.EventKind `json:"type"`
	Message      string           `json:"message"`
	RelativeTime string           `json:"relative_time"`
	Location     string           `json:"location,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// SessionSummary groups the events of one visitor session.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Alias     string    `json:"alias"`
	Events    int       `json:"events"`
	Location  string    `json:"location,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// ResourceStats are the per-item numbers shown next to each resume or portfolio.
type ResourceStats struct {
	ResourceID     string                 `json:"resource_id"`
	Title          string                 `json:"title"`
	Type           resources.ResourceType `json:"type"`
	Views          int64                  `json:"views"`
	UniqueVisitors int64                  `json:"unique_visitors"`
	Downloads      int64                  `json:"downloads"`
	Shares         int64                  `json:"shares"`
	Interactions   int64                  `json:"interactions"`
	EngagementRate float64                `json:"engagement_rate"`
}

// AggregatedMetrics is recomputed from the raw events on every request.
// Lists are never nil so that an empty dashboard serializes as [].
type AggregatedMetrics struct {
	TotalViews      int64                `json:"total_views"`
	UniqueVisitors  int64                `json:"unique_visitors"`
	TotalDownloads  int64                `json:"total_downloads"`
	TotalShares     int64                `json:"total_shares"`
	TotalContacts   int64                `json:"total_contacts"`
	AvgTimeSpent    float64              `json:"avg_time_spent"`
	AvgScrollDepth  float64              `json:"avg_scroll_depth"`
	TopCountries    []MetricCountResult  `json:"top_countries"`
	TopSections     []MetricCountResult  `json:"top_sections"`
	TopReferrers    []MetricCountResult  `json:"top_referrers"`
	TopBrowsers     []MetricCountResult  `json:"top_browsers"`
	DeviceBreakdown DeviceBreakdown      `json:"device_breakdown"`
	EngagementRate  float64              `json:"engagement_rate"`
	RecentActivity  []ActivityItem       `json:"recent_activity"`
	Sessions        []SessionSummary     `json:"sessions"`
	Views           []timeframe.DateStat `json:"views"`
	// ViewsTrend compares the second half of Views with the first, in percent.
	ViewsTrend float64         `json:"views_trend"`
	Resources  []ResourceStats `json:"resources"`
}

// Empty returns metrics with zero counts and empty lists.
func Empty() AggregatedMetrics {
	return AggregatedMetrics{
		TopCountries:   []MetricCountResult{},
		TopSections:    []MetricCountResult{},
		TopReferrers:   []MetricCountResult{},
		TopBrowsers:    []MetricCountResult{},
		RecentActivity: []ActivityItem{},
		Sessions:       []SessionSummary{},
		Views:          []timeframe.DateStat{},
		Resources:      []ResourceStats{},
	}
}
