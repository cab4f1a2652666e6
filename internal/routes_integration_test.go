package internal

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findRoute(routes []fiber.Route, method, path string) *fiber.Route {
	for idx := range routes {
		if routes[idx].Method == method && routes[idx].Path == path {
			return &routes[idx]
		}
	}
	return nil
}

func TestPublicEventsRouteRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	for _, path := range []string{"/x/api/v1/events", "/x/api/v1/events/beacon"} {
		eventRoute := findRoute(routes, fiber.MethodPost, path)
		require.NotNil(t, eventRoute, "expected %s to be registered", path)

		// In test environment the conditional wrapper passes through, but it is
		// still part of the handler chain.
		hasRateLimiter := false
		var handlerNames []string
		for _, handler := range eventRoute.Handlers {
			name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
			handlerNames = append(handlerNames, name)
			if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "MountAppRoutes.func") {
				hasRateLimiter = true
				break
			}
		}

		assert.Truef(t, hasRateLimiter, "expected rate limiter middleware for %s, handlers: %v", path, handlerNames)
	}
}

func TestOwnerRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	expected := []struct{ method, path string }{
		{fiber.MethodGet, "/api/v1/owners/:ownerId/metrics"},
		{fiber.MethodGet, "/api/v1/owners/:ownerId/resources/:resourceId/metrics"},
		{fiber.MethodGet, "/api/v1/owners/:ownerId/events"},
		{fiber.MethodDelete, "/api/v1/owners/:ownerId"},
		{fiber.MethodGet, "/y/api/v1/capture.js"},
		{fiber.MethodGet, "/_health"},
	}
	for _, r := range expected {
		assert.NotNilf(t, findRoute(routes, r.method, r.path), "expected %s %s to be registered", r.method, r.path)
	}
}
