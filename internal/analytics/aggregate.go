package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"folio/internal/events"
	"folio/internal/pkg/referrers"
	ua "folio/internal/pkg/user_agent"
	"folio/internal/resources"
	"folio/internal/timeframe"
	"folio/internal/visitors"
)

const (
	DefaultTopN = 5
	// OwnerRecentLimit is the activity feed length on the owner dashboard.
	OwnerRecentLimit = 8
	// ResourceRecentLimit is the activity feed length of a single resume panel.
	ResourceRecentLimit = 3
	DefaultSessionLimit = 10
)

// Options tunes Aggregate. Zero values fall back to the defaults above; Now
// defaults to the current time.
type Options struct {
	Now          time.Time
	RecentLimit  int
	TopN         int
	SessionLimit int
	// TimeFrame enables the daily Views series.
	TimeFrame *timeframe.TimeFrame
	// Resources adds one ResourceStats row per entry, in the given order.
	Resources []resources.Resource
}

func (o Options) withDefaults() Options {
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = OwnerRecentLimit
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	if o.SessionLimit <= 0 {
		o.SessionLimit = DefaultSessionLimit
	}
	return o
}

// Aggregate computes dashboard metrics from an owner's events. The input is
// not modified. Each event is interpreted through the vocabulary of its own
// resource type, so resume and portfolio events can be mixed.
func Aggregate(list []events.AnalyticsEvent, opts Options) AggregatedMetrics {
	opts = opts.withDefaults()
	m := Empty()

	sorted := make([]events.AnalyticsEvent, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var (
		sessions     = map[string]struct{}{}
		interactions int64
		timeSum      float64
		timeCount    int
		scrollSum    float64
		scrollCount  int
		viewTimes    []time.Time

		countries = newCounter()
		sections  = newCounter()
		sources   = newCounter()
		browsers  = newCounter()
	)

	caser := cases.Title(language.AmericanEnglish)

	for i := range sorted {
		e := &sorted[i]
		spec, _ := e.Vocabulary().Lookup(e.Kind)

		sessions[e.SessionID] = struct{}{}

		switch spec.Role {
		case events.RoleView:
			m.TotalViews++
			viewTimes = append(viewTimes, e.CreatedAt)
			sources.add(referrers.Source(events.ReferrerHost(e.Referrer)))
		case events.RoleDownload:
			m.TotalDownloads++
		case events.RoleShare:
			m.TotalShares++
		case events.RoleContact:
			m.TotalContacts++
		case events.RoleTimeTracking:
			if e.TimeSpent > 0 {
				timeSum += e.TimeSpent
				timeCount++
			}
		}
		if spec.Interaction {
			interactions++
		}

		if e.ScrollDepth > 0 {
			scrollSum += e.ScrollDepth
			scrollCount++
		}

		countries.add(countryName(e.Geo))
		if spec.Role == events.RoleSectionView {
			sections.add(e.Section)
		}
		browser := e.Browser
		if browser == "" {
			browser = ua.Unknown
		}
		browsers.add(caser.String(strings.ToLower(browser)))

		m.DeviceBreakdown.add(ClassifyDevice(e.Device))
	}

	m.UniqueVisitors = int64(len(sessions))
	m.AvgTimeSpent = mean(timeSum, timeCount)
	m.AvgScrollDepth = mean(scrollSum, scrollCount)
	m.EngagementRate = engagementRate(interactions, m.TotalViews)

	m.TopCountries = countries.top(opts.TopN)
	m.TopSections = sections.top(opts.TopN)
	m.TopReferrers = sources.top(opts.TopN)
	m.TopBrowsers = browsers.top(opts.TopN)

	m.RecentActivity = recentActivity(sorted, opts.RecentLimit, opts.Now)
	m.Sessions = sessionRollup(sorted, opts.SessionLimit)

	if opts.TimeFrame != nil {
		m.Views = opts.TimeFrame.BuildTimeSeriesPoints(viewTimes)
		m.ViewsTrend = timeframe.CalculateTrend(m.Views)
	}
	if len(opts.Resources) > 0 {
		m.Resources = resourceStats(sorted, opts.Resources)
	}

	return m
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// engagementRate is interactions per view as a percentage. No views means 0.
func engagementRate(interactions, views int64) float64 {
	if views == 0 {
		return 0
	}
	return float64(interactions) / float64(views) * 100
}

func recentActivity(sorted []events.AnalyticsEvent, limit int, now time.Time) []ActivityItem {
	if len(sorted) < limit {
		limit = len(sorted)
	}
	items := make([]ActivityItem, 0, limit)
	for i := 0; i < limit; i++ {
		e := &sorted[i]
		items = append(items, ActivityItem{
			Type:         e.Kind,
			Message:      e.Vocabulary().Describe(e),
			RelativeTime: RelativeTime(now, e.CreatedAt),
			Location:     locationLabel(e.Geo),
			CreatedAt:    e.CreatedAt,
		})
	}
	return items
}

// sessionRollup expects events newest first, so the first event seen for a
// session is its latest one.
func sessionRollup(sorted []events.AnalyticsEvent, limit int) []SessionSummary {
	index := map[string]int{}
	summaries := []SessionSummary{}

	for i := range sorted {
		e := &sorted[i]
		pos, ok := index[e.SessionID]
		if !ok {
			pos = len(summaries)
			index[e.SessionID] = pos
			summaries = append(summaries, SessionSummary{
				SessionID: e.SessionID,
				Alias:     visitors.Alias(e.SessionID),
				LastSeen:  e.CreatedAt,
			})
		}
		s := &summaries[pos]
		s.Events++
		s.FirstSeen = e.CreatedAt
		if s.Location == "" {
			s.Location = locationLabel(e.Geo)
		}
	}

	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

func resourceStats(sorted []events.AnalyticsEvent, list []resources.Resource) []ResourceStats {
	stats := make([]ResourceStats, len(list))
	index := make(map[string]int, len(list))
	sessions := make([]map[string]struct{}, len(list))
	for i, r := range list {
		stats[i] = ResourceStats{ResourceID: r.ID, Title: r.Title, Type: r.Type}
		index[r.ID] = i
		sessions[i] = map[string]struct{}{}
	}

	for i := range sorted {
		e := &sorted[i]
		if e.ResourceID == nil {
			continue
		}
		pos, ok := index[*e.ResourceID]
		if !ok {
			continue
		}
		spec, _ := e.Vocabulary().Lookup(e.Kind)
		s := &stats[pos]
		sessions[pos][e.SessionID] = struct{}{}
		switch spec.Role {
		case events.RoleView:
			s.Views++
		case events.RoleDownload:
			s.Downloads++
		case events.RoleShare:
			s.Shares++
		}
		if spec.Interaction {
			s.Interactions++
		}
	}

	for i := range stats {
		stats[i].UniqueVisitors = int64(len(sessions[i]))
		stats[i].EngagementRate = engagementRate(stats[i].Interactions, stats[i].Views)
	}
	return stats
}

// RelativeTime renders how long ago t was: seconds under a minute, minutes
// under an hour, hours under a day, then days.
func RelativeTime(now, t time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)
	switch {
	case seconds <= 0:
		return "just now"
	case seconds < 60:
		return fmt.Sprintf("%ds ago", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm ago", seconds/60)
	case seconds < 86400:
		return fmt.Sprintf("%dh ago", seconds/3600)
	default:
		return fmt.Sprintf("%dd ago", seconds/86400)
	}
}

func countryName(g events.Geo) string {
	if g.Country != "" {
		return g.Country
	}
	return g.CountryCode
}

func locationLabel(g events.Geo) string {
	country := countryName(g)
	switch {
	case g.City != "" && country != "":
		return g.City + ", " + country
	case country != "":
		return country
	default:
		return g.City
	}
}

// counter counts names and remembers first-seen order for tie breaking.
type counter struct {
	order  []string
	counts map[string]int64
}

func newCounter() *counter {
	return &counter{counts: map[string]int64{}}
}

func (c *counter) add(name string) {
	if name == "" {
		return
	}
	if _, ok := c.counts[name]; !ok {
		c.order = append(c.order, name)
	}
	c.counts[name]++
}

func (c *counter) top(n int) []MetricCountResult {
	results := make([]MetricCountResult, 0, len(c.order))
	for _, name := range c.order {
		results = append(results, MetricCountResult{Name: name, Count: c.counts[name]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Count > results[j].Count
	})
	if len(results) > n {
		results = results[:n]
	}
	return results
}
