package timeframe

import (
	"fmt"
	"time"
)

// DateStat is one point of a time series.
type DateStat struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type TimeFrameBucketSize string

const (
	TimeFrameBucketSizeDay  TimeFrameBucketSize = "day"
	TimeFrameBucketSizeHour TimeFrameBucketSize = "hour"
)

type TimeProvider interface {
	Now(loc *time.Location) time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// TimeFrame is the aggregation window: the last Days days up to To, bucketed in Tz.
type TimeFrame struct {
	From       time.Time
	To         time.Time
	Days       int
	BucketSize TimeFrameBucketSize
	Tz         *time.Location
}

// LastNDays builds a window that starts at local midnight days-1 days before now
// and ends at now plus TimeWindowBuffer. A one day window uses hourly buckets.
func LastNDays(now time.Time, days int, tz *time.Location) (*TimeFrame, error) {
	if days < 1 {
		return nil, fmt.Errorf("window must cover at least one day, got %d", days)
	}
	if tz == nil {
		tz = time.UTC
	}

	local := now.In(tz)
	startOfToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)

	bucket := TimeFrameBucketSizeDay
	if days == 1 {
		bucket = TimeFrameBucketSizeHour
	}

	return &TimeFrame{
		From:       startOfToday.AddDate(0, 0, -(days - 1)).UTC(),
		To:         now.Add(TimeWindowBuffer).UTC(),
		Days:       days,
		BucketSize: bucket,
		Tz:         tz,
	}, nil
}

// Contains reports whether t falls inside the window.
func (tf *TimeFrame) Contains(t time.Time) bool {
	return !t.Before(tf.From) && !t.After(tf.To)
}

// BucketKey returns the series label t belongs to.
func (tf *TimeFrame) BucketKey(t time.Time) string {
	return tf.format(TruncateToBucketInTimezone(t, tf.BucketSize, tf.Tz))
}

func (tf *TimeFrame) format(t time.Time) string {
	if tf.BucketSize == TimeFrameBucketSizeHour {
		return t.Format("2006-01-02 15:00")
	}
	return t.Format("2006-01-02")
}

// BuildTimeSeriesPoints returns one point per bucket across the window, counting
// each time in ts. Buckets without data are present with a zero count.
func (tf *TimeFrame) BuildTimeSeriesPoints(ts []time.Time) []DateStat {
	counts := make(map[string]int, len(ts))
	for _, t := range ts {
		if tf.Contains(t) {
			counts[tf.BucketKey(t)]++
		}
	}

	points := []DateStat{}
	end := TruncateToBucketInTimezone(tf.To, tf.BucketSize, tf.Tz)
	for cur := TruncateToBucketInTimezone(tf.From, tf.BucketSize, tf.Tz); !cur.After(end); cur = next(cur, tf.BucketSize) {
		key := tf.format(cur)
		points = append(points, DateStat{Date: key, Count: counts[key]})
	}
	return points
}

// CalculateTrend compares the second half of a series with the first half and
// returns the change as a percentage. An empty first half with data in the
// second counts as +100.
func CalculateTrend(points []DateStat) float64 {
	if len(points) < 2 {
		return 0
	}
	mid := len(points) / 2
	var before, after int
	for i, p := range points {
		if i < mid {
			before += p.Count
		} else {
			after += p.Count
		}
	}
	if before == 0 {
		if after == 0 {
			return 0
		}
		return 100
	}
	return float64(after-before) / float64(before) * 100
}

// TruncateToBucketInTimezone truncates t to the start of its bucket in loc.
func TruncateToBucketInTimezone(t time.Time, bucketSize TimeFrameBucketSize, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if bucketSize == TimeFrameBucketSizeHour {
		return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func next(t time.Time, bucketSize TimeFrameBucketSize) time.Time {
	if bucketSize == TimeFrameBucketSizeHour {
		return t.Add(time.Hour)
	}
	return t.AddDate(0, 0, 1)
}
