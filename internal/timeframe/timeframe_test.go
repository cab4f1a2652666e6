package timeframe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTimeProvider struct {
	now time.Time
}

func (p *fixedTimeProvider) Now(loc *time.Location) time.Time {
	return p.now.In(loc)
}

func TestLastNDays(t *testing.T) {
	now := time.Date(2026, 4, 10, 15, 30, 0, 0, time.UTC)

	tf, err := LastNDays(now, 7, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 4, 4, 0, 0, 0, 0, time.UTC), tf.From)
	assert.Equal(t, now.Add(TimeWindowBuffer), tf.To)
	assert.Equal(t, TimeFrameBucketSizeDay, tf.BucketSize)

	_, err = LastNDays(now, 0, time.UTC)
	assert.Error(t, err)
}

func TestLastNDays_Timezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC is already the next day in Tokyo.
	now := time.Date(2026, 4, 10, 20, 0, 0, 0, time.UTC)
	tf, err := LastNDays(now, 1, tokyo)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 4, 10, 15, 0, 0, 0, time.UTC), tf.From)
	assert.Equal(t, TimeFrameBucketSizeHour, tf.BucketSize)
}

func TestBuildTimeSeriesPoints(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	tf, err := LastNDays(now, 3, time.UTC)
	require.NoError(t, err)

	points := tf.BuildTimeSeriesPoints([]time.Time{
		now,
		now.Add(-time.Hour),
		now.AddDate(0, 0, -2),
		now.AddDate(0, 0, -10),
	})

	assert.Equal(t, []DateStat{
		{Date: "2026-04-08", Count: 1},
		{Date: "2026-04-09", Count: 0},
		{Date: "2026-04-10", Count: 2},
	}, points)
}

func TestBuildTimeSeriesPoints_Empty(t *testing.T) {
	tf, err := LastNDays(time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC), 2, time.UTC)
	require.NoError(t, err)

	points := tf.BuildTimeSeriesPoints(nil)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Zero(t, p.Count)
	}
}

func TestCalculateTrend(t *testing.T) {
	assert.Equal(t, 0.0, CalculateTrend(nil))
	assert.Equal(t, 100.0, CalculateTrend([]DateStat{{Count: 0}, {Count: 3}}))
	assert.Equal(t, 50.0, CalculateTrend([]DateStat{{Count: 2}, {Count: 3}}))
	assert.Equal(t, -50.0, CalculateTrend([]DateStat{{Count: 4}, {Count: 2}}))
}

func TestParseTimeFrame(t *testing.T) {
	now := time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)
	parser := NewTimeFrameParser(&fixedTimeProvider{now: now})

	tf, err := parser.ParseTimeFrame(TimeFrameParserParams{DefaultDays: 30, MaxDays: 365})
	require.NoError(t, err)
	assert.Equal(t, 30, tf.Days)
	assert.Equal(t, time.UTC, tf.Tz)

	tf, err = parser.ParseTimeFrame(TimeFrameParserParams{Days: "1000", DefaultDays: 30, MaxDays: 365})
	require.NoError(t, err)
	assert.Equal(t, 365, tf.Days)

	tf, err = parser.ParseTimeFrame(TimeFrameParserParams{Days: "7", Tz: "Europe/Madrid", DefaultDays: 30})
	require.NoError(t, err)
	assert.Equal(t, 7, tf.Days)
	assert.Equal(t, "Europe/Madrid", tf.Tz.String())

	_, err = parser.ParseTimeFrame(TimeFrameParserParams{Days: "abc", DefaultDays: 30})
	assert.Error(t, err)

	_, err = parser.ParseTimeFrame(TimeFrameParserParams{Days: "7", Tz: "Mars/Olympus"})
	assert.Error(t, err)
}
