package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/accounts"
	"folio/internal/events"
	"folio/internal/resources"
	"folio/internal/settings"
	"folio/internal/testsupport"
)

const chromeWindowsUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func defaultOptions() events.RecordOptions {
	return events.RecordOptions{Salt: "test-salt", Clock: events.NewClock(nil)}
}

func TestRecordEvent(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()

	owner, _ := testsupport.CreateTestAccount(t, db, "owner@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-1")
	testsupport.CreateTestResource(t, db, owner.ID, resources.TypePortfolio, "portfolio-1")

	t.Run("stores a resume view attributed to the resource owner", func(t *testing.T) {
		testsupport.CleanTable(db, "events")

		event, err := events.RecordEventWithOptions(ctx, dbManager, logger, &events.RecordEventInput{
			Kind:       events.KindView,
			ResourceID: resume.ID,
			SessionID:  "session-a",
			Geo:        &events.Geo{City: "Lisbon", CountryCode: "pt"},
			Device:     "Desktop",
			Browser:    "Firefox",
			OS:         "Linux",
			Referrer:   "https://www.linkedin.com/in/someone",
			IPAddress:  "203.0.113.9",
			UserAgent:  chromeWindowsUA,
		}, defaultOptions())
		require.NoError(t, err)
		require.NotNil(t, event)

		var stored events.AnalyticsEvent
		require.NoError(t, db.First(&stored, event.ID).Error)
		assert.Equal(t, owner.ID, stored.OwnerID)
		assert.Equal(t, resources.TypeResume, stored.ResourceType)
		require.NotNil(t, stored.ResourceID)
		assert.Equal(t, resume.ID, *stored.ResourceID)
		assert.Equal(t, "Firefox", stored.Browser)
		assert.Equal(t, "PT", stored.Geo.CountryCode)
		assert.Equal(t, "Portugal", stored.Geo.Country)
		assert.Equal(t, "Lisbon", stored.Geo.City)
		require.NotNil(t, stored.Referrer)
		assert.Nil(t, stored.IdempotencyKey)
		assert.False(t, stored.CreatedAt.IsZero())
	})

	t.Run("falls back to the request user agent for device data", func(t *testing.T) {
		testsupport.CleanTable(db, "events")

		event, err := events.RecordEventWithOptions(ctx, dbManager, logger, &events.RecordEventInput{
			Kind:       events.KindDownload,
			ResourceID: resume.ID,
			SessionID:  "session-b",
			IPAddress:  "203.0.113.10",
			UserAgent:  chromeWindowsUA,
		}, defaultOptions())
		require.NoError(t, err)
		require.NotNil(t, event)

		assert.Equal(t, "Desktop", event.Device)
		assert.Equal(t, "Chrome", event.Browser)
		assert.Equal(t, "Windows", event.OS)
		assert.True(t, event.Geo.IsZero(), "geo stays absent when nothing resolves")
	})

	t.Run("derives a session id when none is sent", func(t *testing.T) {
		event, err := events.RecordEventWithOptions(ctx, dbManager, logger, &events.RecordEventInput{
			Kind:       events.KindShare,
			ResourceID: resume.ID,
			IPAddress:  "203.0.113.11",
			UserAgent:  chromeWindowsUA,
		}, defaultOptions())
		require.NoError(t, err)
		require.NotNil(t, event)
		assert.NotEmpty(t, event.SessionID)
	})

	t.Run("portfolio-only events are attributed by owner", func(t *testing.T) {
		event, err := events.RecordEventWithOptions(ctx, dbManager, logger, &events.RecordEventInput{
			Kind:      events.KindSectionView,
			OwnerID:   owner.ID,
			SessionID: "session-c",
			Section:   "Projects",
			UserAgent: chromeWindowsUA,
		}, defaultOptions())
		require.NoError(t, err)
		require.NotNil(t, event)

		assert.Nil(t, event.ResourceID)
		assert.Equal(t, resources.TypePortfolio, event.ResourceType)
		assert.Equal(t, "Projects", event.Section)
	})

	t.Run("skips bot traffic", func(t *testing.T) {
		event, err := events.RecordEventWithOptions(ctx, dbManager, logger, &events.RecordEventInput{
			Kind:       events.KindView,
			ResourceID: resume.ID,
			UserAgent:  "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
		}, defaultOptions())
		require.NoError(t, err)
		assert.Nil(t, event)
	})
}

func TestRecordEvent_Rejections(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()

	owner, _ := testsupport.CreateTestAccount(t, db, "reject@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-r")
	other, _ := testsupport.CreateTestAccount(t, db, "other@example.com")

	testCases := []struct {
		name     string
		input    *events.RecordEventInput
		field    string
		notFound bool
	}{
		{name: "missing kind", input: &events.RecordEventInput{ResourceID: resume.ID}, field: "event_kind"},
		{name: "missing resource and owner", input: &events.RecordEventInput{Kind: events.KindView}, field: "resource_id"},
		{name: "kind outside resume vocabulary", input: &events.RecordEventInput{Kind: events.KindPageView, ResourceID: resume.ID}, field: "event_kind"},
		{name: "negative time spent", input: &events.RecordEventInput{Kind: events.KindView, ResourceID: resume.ID, TimeSpent: -1}, field: "time_spent"},
		{name: "scroll depth above 100", input: &events.RecordEventInput{Kind: events.KindView, ResourceID: resume.ID, ScrollDepth: 140}, field: "scroll_depth"},
		{name: "unknown resource", input: &events.RecordEventInput{Kind: events.KindView, ResourceID: "missing"}, notFound: true},
		{name: "unknown owner", input: &events.RecordEventInput{Kind: events.KindPageView, OwnerID: 9999}, notFound: true},
		{name: "owner does not own resource", input: &events.RecordEventInput{Kind: events.KindView, ResourceID: resume.ID, OwnerID: other.ID}, notFound: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := events.RecordEventWithOptions(ctx, dbManager, logger, tc.input, defaultOptions())
			require.Error(t, err)
			assert.Nil(t, event)

			if tc.notFound {
				assert.True(t, events.IsNotFound(err), "expected not found, got %v", err)
			} else {
				var verr *events.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, tc.field, verr.Field)
			}
		})
	}

	count, err := events.CountForOwner(db, owner.ID)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected events must not be written")
}

func TestRecordEvent_DeletedOwner(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner, _ := testsupport.CreateTestAccount(t, db, "leaving@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-gone")
	require.NoError(t, accounts.MarkForDeletion(db, logger, owner.ID))

	_, err := events.RecordEventWithOptions(context.Background(), dbManager, logger, &events.RecordEventInput{
		Kind:       events.KindView,
		ResourceID: resume.ID,
		SessionID:  "s",
	}, defaultOptions())
	require.Error(t, err)
	assert.True(t, events.IsNotFound(err))
}

func TestRecordEvent_ServerDedup(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	ctx := context.Background()

	owner, _ := testsupport.CreateTestAccount(t, db, "dedup@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-d")

	input := func() *events.RecordEventInput {
		return &events.RecordEventInput{Kind: events.KindView, ResourceID: resume.ID, SessionID: "tab-race", UserAgent: chromeWindowsUA}
	}

	t.Run("duplicates are kept when server dedup is off", func(t *testing.T) {
		testsupport.CleanTable(db, "events")

		for i := 0; i < 2; i++ {
			_, err := events.RecordEventWithOptions(ctx, dbManager, logger, input(), defaultOptions())
			require.NoError(t, err)
		}

		count, err := events.CountForOwner(db, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
	})

	t.Run("duplicates are dropped when server dedup is on", func(t *testing.T) {
		testsupport.CleanTable(db, "events")
		opts := defaultOptions()
		opts.ServerDedup = true

		first, err := events.RecordEventWithOptions(ctx, dbManager, logger, input(), opts)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := events.RecordEventWithOptions(ctx, dbManager, logger, input(), opts)
		require.NoError(t, err)
		assert.Nil(t, second)

		count, err := events.CountForOwner(db, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}

func TestRecordEvent_ExcludedIP(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner, _ := testsupport.CreateTestAccount(t, db, "excluded@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-x")

	require.NoError(t, settings.SetupDefaultSettings(db))
	require.NoError(t, settings.UpdateSetting(db, settings.KeyExcludedIPs, "198.51.100.7"))
	t.Cleanup(func() { _ = settings.UpdateSetting(db, settings.KeyExcludedIPs, "") })

	t.Run("valid event is acknowledged but not stored", func(t *testing.T) {
		event, err := events.RecordEventWithOptions(context.Background(), dbManager, logger, &events.RecordEventInput{
			Kind:       events.KindView,
			ResourceID: resume.ID,
			SessionID:  "s",
			IPAddress:  "198.51.100.7",
		}, defaultOptions())
		require.NoError(t, err)
		assert.Nil(t, event)

		count, err := events.CountForOwner(db, owner.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("unknown resource is still not found", func(t *testing.T) {
		event, err := events.RecordEventWithOptions(context.Background(), dbManager, logger, &events.RecordEventInput{
			Kind:       events.KindView,
			ResourceID: "does-not-exist",
			SessionID:  "s",
			IPAddress:  "198.51.100.7",
		}, defaultOptions())
		require.Error(t, err)
		assert.Nil(t, event)
		assert.True(t, events.IsNotFound(err), "expected not found, got %v", err)
	})

	t.Run("kind outside the vocabulary is still rejected", func(t *testing.T) {
		_, err := events.RecordEventWithOptions(context.Background(), dbManager, logger, &events.RecordEventInput{
			Kind:       events.KindPageView,
			ResourceID: resume.ID,
			SessionID:  "s",
			IPAddress:  "198.51.100.7",
		}, defaultOptions())
		var verr *events.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "event_kind", verr.Field)
	})
}

func TestRecordEvent_RejectionListsAllowedKinds(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner, _ := testsupport.CreateTestAccount(t, db, "kinds@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-k")

	_, err := events.RecordEventWithOptions(context.Background(), dbManager, logger, &events.RecordEventInput{
		Kind:       events.KindSectionView,
		ResourceID: resume.ID,
		SessionID:  "s",
	}, defaultOptions())

	var verr *events.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "contact, download, share, view")
}

func TestListForOwner_NewestFirst(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner, _ := testsupport.CreateTestAccount(t, db, "order@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-o")

	frozen := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	opts := defaultOptions()
	opts.Clock = events.NewClock(func() time.Time { return frozen })

	var ids []uint
	for _, kind := range []events.EventKind{events.KindView, events.KindDownload, events.KindShare} {
		event, err := events.RecordEventWithOptions(context.Background(), dbManager, logger, &events.RecordEventInput{
			Kind: kind, ResourceID: resume.ID, SessionID: "s1",
		}, opts)
		require.NoError(t, err)
		ids = append(ids, event.ID)
	}

	list, err := events.ListForOwner(db, owner.ID, frozen.Add(-time.Hour), frozen.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 3)

	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[1], list[1].ID)
	assert.Equal(t, ids[0], list[2].ID)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.True(t, list[1].CreatedAt.After(list[2].CreatedAt))
}

func TestGetFilteredEvents(t *testing.T) {
	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner, _ := testsupport.CreateTestAccount(t, db, "filter@example.com")
	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		testsupport.CreateTestEvent(t, db, events.AnalyticsEvent{
			OwnerID:      owner.ID,
			ResourceType: resources.TypePortfolio,
			Kind:         events.KindPageView,
			CreatedAt:    now.Add(-time.Duration(i) * time.Minute),
		})
	}
	testsupport.CreateTestEvent(t, db, events.AnalyticsEvent{
		OwnerID:      owner.ID,
		ResourceType: resources.TypePortfolio,
		Kind:         events.KindClick,
		Target:       "GitHub",
		CreatedAt:    now,
	})

	result, err := events.GetFilteredEvents(db, events.EventFilters{OwnerID: owner.ID, Kind: events.KindPageView, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Total)
	assert.Len(t, result.Events, 2)

	result, err = events.GetFilteredEvents(db, events.EventFilters{OwnerID: owner.ID, Kind: events.KindClick})
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, "GitHub", result.Events[0].Target)
}

func TestDeleteBatchForOwner(t *testing.T) {
	dbManager, logger := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()

	owner, _ := testsupport.CreateTestAccount(t, db, "bulk@example.com")
	keep, _ := testsupport.CreateTestAccount(t, db, "keep@example.com")
	for i := 0; i < 5; i++ {
		testsupport.CreateTestEvent(t, db, events.AnalyticsEvent{OwnerID: owner.ID, ResourceType: resources.TypeResume, Kind: events.KindView})
	}
	testsupport.CreateTestEvent(t, db, events.AnalyticsEvent{OwnerID: keep.ID, ResourceType: resources.TypeResume, Kind: events.KindView})

	deleted, err := events.DeleteBatchForOwner(db, logger, owner.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	deleted, err = events.DeleteBatchForOwner(db, logger, owner.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = events.DeleteBatchForOwner(db, logger, owner.ID, 3)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	remaining, err := events.CountForOwner(db, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}
