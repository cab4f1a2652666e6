package http_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"folio/internal/accounts"
	"folio/internal/config"
	"folio/internal/events"
	handlers "folio/internal/http"
	"folio/internal/resources"
	"folio/internal/testsupport"
)

type fixture struct {
	db     *gorm.DB
	app    *fiber.App
	owner  *accounts.Account
	key    string
	resume *resources.Resource
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dbManager, _ := testsupport.SetupTestDBManager(t)
	db := dbManager.GetConnection()
	testsupport.CleanAllTables(db)

	owner, key := testsupport.CreateTestAccount(t, db, "dashboard@example.com")
	resume := testsupport.CreateTestResource(t, db, owner.ID, resources.TypeResume, "resume-dash")

	return &fixture{
		db:     db,
		app:    testsupport.CreateMinimalTestApp(t, db),
		owner:  owner,
		key:    key,
		resume: resume,
	}
}

func (f *fixture) get(t *testing.T, path, key string, out any) *http.Response {
	t.Helper()
	return f.request(t, http.MethodGet, path, key, out)
}

func (f *fixture) request(t *testing.T, method, path, key string, out any) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := f.app.Test(req, 30000)
	require.NoError(t, err)

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, out), "body: %s", body)
	}
	return resp
}

func (f *fixture) event(t *testing.T, kind events.EventKind, session string, age time.Duration) {
	t.Helper()
	resourceID := f.resume.ID
	testsupport.CreateTestEvent(t, f.db, events.AnalyticsEvent{
		OwnerID:      f.owner.ID,
		ResourceID:   &resourceID,
		ResourceType: resources.TypeResume,
		Kind:         kind,
		SessionID:    session,
		Device:       "Mobile",
		Browser:      "Safari",
		Geo:          events.Geo{Country: "Spain", CountryCode: "ES"},
		CreatedAt:    time.Now().UTC().Add(-age),
	})
}

type metricsResponse struct {
	OwnerID    uint   `json:"owner_id"`
	ResourceID string `json:"resource_id"`
	WindowDays int    `json:"window_days"`
	Timezone   string `json:"timezone"`
	Metrics    struct {
		TotalViews      int64 `json:"total_views"`
		UniqueVisitors  int64 `json:"unique_visitors"`
		TotalDownloads  int64 `json:"total_downloads"`
		DeviceBreakdown struct {
			Desktop int64 `json:"desktop"`
			Mobile  int64 `json:"mobile"`
			Tablet  int64 `json:"tablet"`
		} `json:"device_breakdown"`
		TopCountries []struct {
			Name  string `json:"name"`
			Count int64  `json:"count"`
		} `json:"top_countries"`
		RecentActivity []map[string]any `json:"recent_activity"`
		Views          []map[string]any `json:"views"`
		ViewsTrend     float64          `json:"views_trend"`
	} `json:"metrics"`
}

func TestOwnerAPIKeyAuth(t *testing.T) {
	f := setup(t)
	path := fmt.Sprintf("/api/v1/owners/%d/metrics", f.owner.ID)

	t.Run("missing header", func(t *testing.T) {
		resp := f.get(t, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("wrong key", func(t *testing.T) {
		resp := f.get(t, path, "fk_wrong", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("key of another owner", func(t *testing.T) {
		_, otherKey := testsupport.CreateTestAccount(t, f.db, "other-dash@example.com")
		resp := f.get(t, path, otherKey, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("unknown owner", func(t *testing.T) {
		resp := f.get(t, "/api/v1/owners/99999/metrics", f.key, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed owner id", func(t *testing.T) {
		resp := f.get(t, "/api/v1/owners/abc/metrics", f.key, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestOwnerMetricsAction(t *testing.T) {
	f := setup(t)
	path := fmt.Sprintf("/api/v1/owners/%d/metrics", f.owner.ID)

	t.Run("empty owner returns zeroed metrics", func(t *testing.T) {
		var out metricsResponse
		resp := f.get(t, path, f.key, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, f.owner.ID, out.OwnerID)
		assert.Equal(t, config.GetConfig().DefaultWindowDays, out.WindowDays)
		assert.Zero(t, out.Metrics.TotalViews)
		assert.NotNil(t, out.Metrics.TopCountries)
		assert.NotNil(t, out.Metrics.RecentActivity)
	})

	t.Run("aggregates stored events", func(t *testing.T) {
		f.event(t, events.KindView, "s1", 3*time.Hour)
		f.event(t, events.KindView, "s2", 2*time.Hour)
		f.event(t, events.KindDownload, "s2", time.Hour)

		var out metricsResponse
		resp := f.get(t, path, f.key, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Equal(t, int64(2), out.Metrics.TotalViews)
		assert.Equal(t, int64(2), out.Metrics.UniqueVisitors)
		assert.Equal(t, int64(1), out.Metrics.TotalDownloads)
		assert.Equal(t, int64(3), out.Metrics.DeviceBreakdown.Mobile)
		require.NotEmpty(t, out.Metrics.TopCountries)
		assert.Equal(t, "Spain", out.Metrics.TopCountries[0].Name)
		assert.Len(t, out.Metrics.RecentActivity, 3)
		assert.Equal(t, "Resume downloaded", out.Metrics.RecentActivity[0]["message"])
	})

	t.Run("days parameter narrows and caps the window", func(t *testing.T) {
		f.event(t, events.KindView, "old", 20*24*time.Hour)

		var week metricsResponse
		f.get(t, path+"?days=7", f.key, &week)
		assert.Equal(t, 7, week.WindowDays)
		assert.Equal(t, int64(2), week.Metrics.TotalViews)
		assert.GreaterOrEqual(t, len(week.Metrics.Views), 7)

		var month metricsResponse
		f.get(t, path+"?days=30", f.key, &month)
		assert.Equal(t, int64(3), month.Metrics.TotalViews)

		var capped metricsResponse
		f.get(t, path+"?days=100000", f.key, &capped)
		assert.Equal(t, config.MaxWindowDays, capped.WindowDays)
	})

	t.Run("tz parameter buckets the series in that zone", func(t *testing.T) {
		var out metricsResponse
		resp := f.get(t, path+"?days=7&tz=America/New_York", f.key, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "America/New_York", out.Timezone)
		assert.Equal(t, 7, out.WindowDays)
		assert.Equal(t, int64(2), out.Metrics.TotalViews)
	})

	t.Run("unknown tz is rejected", func(t *testing.T) {
		var out map[string]any
		resp := f.get(t, path+"?tz=Nowhere/Atlantis", f.key, &out)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_REQUEST", out["code"])
	})
}

func TestResourceMetricsAction(t *testing.T) {
	f := setup(t)
	f.event(t, events.KindView, "s1", time.Hour)
	f.event(t, events.KindContact, "s1", 30*time.Minute)

	t.Run("returns the resource panel", func(t *testing.T) {
		var out metricsResponse
		resp := f.get(t, fmt.Sprintf("/api/v1/owners/%d/resources/%s/metrics", f.owner.ID, f.resume.ID), f.key, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, f.resume.ID, out.ResourceID)
		assert.Equal(t, int64(1), out.Metrics.TotalViews)
		assert.Len(t, out.Metrics.RecentActivity, 2)
	})

	t.Run("unknown resource is 404", func(t *testing.T) {
		resp := f.get(t, fmt.Sprintf("/api/v1/owners/%d/resources/nope/metrics", f.owner.ID), f.key, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("resource of another owner is 404", func(t *testing.T) {
		other, _ := testsupport.CreateTestAccount(t, f.db, "other-resource@example.com")
		foreign := testsupport.CreateTestResource(t, f.db, other.ID, resources.TypePortfolio, "foreign-portfolio")

		resp := f.get(t, fmt.Sprintf("/api/v1/owners/%d/resources/%s/metrics", f.owner.ID, foreign.ID), f.key, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestEventsIndexAction(t *testing.T) {
	f := setup(t)
	for i := 0; i < 55; i++ {
		f.event(t, events.KindView, fmt.Sprintf("s%d", i), time.Duration(i+1)*time.Minute)
	}
	f.event(t, events.KindShare, "sharer", 30*time.Second)

	path := fmt.Sprintf("/api/v1/owners/%d/events", f.owner.ID)

	t.Run("first page is newest first", func(t *testing.T) {
		var out handlers.EventsResponse
		resp := f.get(t, path, f.key, &out)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		assert.Len(t, out.Events, 50)
		assert.Equal(t, int64(56), out.Pagination.TotalItems)
		assert.Equal(t, 2, out.Pagination.TotalPages)
		assert.Equal(t, events.KindShare, out.Events[0].Kind)
		assert.Equal(t, "Resume shared", out.Events[0].Message)
		assert.NotEmpty(t, out.Events[0].Visitor)
	})

	t.Run("second page", func(t *testing.T) {
		var out handlers.EventsResponse
		f.get(t, path+"?page=2", f.key, &out)
		assert.Len(t, out.Events, 6)
		assert.Equal(t, 2, out.Pagination.CurrentPage)
	})

	t.Run("kind filter", func(t *testing.T) {
		var out handlers.EventsResponse
		f.get(t, path+"?kind=share", f.key, &out)
		require.Len(t, out.Events, 1)
		assert.Equal(t, events.KindShare, out.Events[0].Kind)
		assert.Equal(t, int64(1), out.Pagination.TotalItems)
	})

	t.Run("session filter", func(t *testing.T) {
		var out handlers.EventsResponse
		f.get(t, path+"?session_id=s3", f.key, &out)
		assert.Len(t, out.Events, 1)
	})

	t.Run("unknown tz is rejected", func(t *testing.T) {
		resp := f.get(t, path+"?tz=Nowhere/Atlantis", f.key, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAccountDeleteAction(t *testing.T) {
	f := setup(t)
	f.event(t, events.KindView, "s1", time.Minute)

	path := fmt.Sprintf("/api/v1/owners/%d", f.owner.ID)

	var out map[string]any
	resp := f.request(t, http.MethodDelete, path, f.key, &out)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "Account scheduled for deletion", out["message"])

	account, err := accounts.FindByID(f.db, f.owner.ID)
	require.NoError(t, err)
	assert.NotNil(t, account.DeletionRequestedAt)

	// the account is gone as far as the API is concerned
	resp = f.get(t, path+"/metrics", f.key, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthIndexAction(t *testing.T) {
	f := setup(t)

	var out handlers.HealthStatus
	resp := f.get(t, "/_health", "", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", out.Status)
	assert.Equal(t, "ok", out.DBStatus)
}
