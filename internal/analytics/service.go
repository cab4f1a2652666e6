package analytics

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"folio/internal/config"
	"folio/internal/events"
	"folio/internal/pkg/async"
	"folio/internal/resources"
	"folio/internal/timeframe"
)

// OwnerScopedQueryParams selects the events a dashboard aggregates.
// An empty ResourceID means every event of the owner.
type OwnerScopedQueryParams struct {
	OwnerID     uint
	ResourceID  string
	TimeFrame   *timeframe.TimeFrame
	RecentLimit int
}

var (
	loaderPool   = async.NewPool(2)
	windowParser = timeframe.NewTimeFrameParser()
)

// ParseWindow turns request input into an aggregation window. Missing or
// invalid days use the configured default and are capped at the maximum; tz is
// an IANA zone name used for the daily buckets and defaults to UTC. Only an
// unknown tz is an error.
func ParseWindow(days, tz string) (*timeframe.TimeFrame, error) {
	cfg := config.GetConfig()
	n, err := strconv.Atoi(days)
	if err != nil {
		n = 0
	}
	return windowParser.ParseTimeFrame(timeframe.TimeFrameParserParams{
		Days:        strconv.Itoa(cfg.ClampWindowDays(n)),
		Tz:          tz,
		DefaultDays: cfg.DefaultWindowDays,
		MaxDays:     config.MaxWindowDays,
	})
}

// GetAggregatedMetrics aggregates the owner's events of the last windowDays days.
// No data is not an error: the result then carries zeros and empty lists.
func GetAggregatedMetrics(ctx context.Context, db *gorm.DB, ownerID uint, windowDays int) (*AggregatedMetrics, error) {
	tf, err := windowFor(windowDays)
	if err != nil {
		return nil, err
	}
	return GetAggregatedMetricsInWindow(ctx, db, ownerID, tf)
}

// GetAggregatedMetricsInWindow is GetAggregatedMetrics over a parsed window.
func GetAggregatedMetricsInWindow(ctx context.Context, db *gorm.DB, ownerID uint, tf *timeframe.TimeFrame) (*AggregatedMetrics, error) {
	return LoadMetrics(ctx, db, OwnerScopedQueryParams{
		OwnerID:     ownerID,
		TimeFrame:   tf,
		RecentLimit: OwnerRecentLimit,
	})
}

// GetResourceMetrics aggregates a single resume or portfolio for the panel next
// to it. The resource must belong to ownerID.
func GetResourceMetrics(ctx context.Context, db *gorm.DB, ownerID uint, resourceID string, windowDays int) (*AggregatedMetrics, error) {
	tf, err := windowFor(windowDays)
	if err != nil {
		return nil, err
	}
	return GetResourceMetricsInWindow(ctx, db, ownerID, resourceID, tf)
}

// GetResourceMetricsInWindow is GetResourceMetrics over a parsed window.
func GetResourceMetricsInWindow(ctx context.Context, db *gorm.DB, ownerID uint, resourceID string, tf *timeframe.TimeFrame) (*AggregatedMetrics, error) {
	resource, err := resources.GetResourceOrNotFound(db.WithContext(ctx), resourceID)
	if err != nil {
		return nil, err
	}
	if resource.OwnerID != ownerID {
		return nil, resources.NewResourceNotFoundError(resourceID)
	}

	return LoadMetrics(ctx, db, OwnerScopedQueryParams{
		OwnerID:     ownerID,
		ResourceID:  resourceID,
		TimeFrame:   tf,
		RecentLimit: ResourceRecentLimit,
	})
}

// LoadMetrics reads the event window and the owner's resources in parallel and
// aggregates them. Any load failure fails the whole call; partial metrics are
// never returned.
func LoadMetrics(ctx context.Context, db *gorm.DB, params OwnerScopedQueryParams) (*AggregatedMetrics, error) {
	conn := db.WithContext(ctx)

	tasks := []async.Task{
		{Name: "events", Execute: func() (interface{}, error) {
			return events.ListEvents(conn, events.EventFilters{
				OwnerID:    params.OwnerID,
				ResourceID: params.ResourceID,
				FromDate:   params.TimeFrame.From,
				ToDate:     params.TimeFrame.To,
			})
		}},
		{Name: "resources", Execute: func() (interface{}, error) {
			list, err := resources.ListForOwner(conn, params.OwnerID)
			if err != nil || params.ResourceID == "" {
				return list, err
			}
			for _, r := range list {
				if r.ID == params.ResourceID {
					return []resources.Resource{r}, nil
				}
			}
			return []resources.Resource{}, nil
		}},
	}

	results := loaderPool.Execute(ctx, tasks)
	for _, task := range tasks {
		if err := results[task.Name].Err; err != nil {
			return nil, fmt.Errorf("error loading %s for owner %d: %w", task.Name, params.OwnerID, err)
		}
	}

	list, _ := results["events"].Data.([]events.AnalyticsEvent)
	owned, _ := results["resources"].Data.([]resources.Resource)

	metrics := Aggregate(list, Options{
		RecentLimit: params.RecentLimit,
		TimeFrame:   params.TimeFrame,
		Resources:   owned,
	})
	return &metrics, nil
}

func windowFor(windowDays int) (*timeframe.TimeFrame, error) {
	return ParseWindow(strconv.Itoa(windowDays), "")
}
