package internal

import (
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge/testsupport"
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

func TestProfileUploadRouteRateLimited(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	uploadRoute := findRoute(routes, fiber.MethodPost, "/api/profiles")
	require.NotNil(t, uploadRoute, "expected upload route to be registered")

	// The limiter is wrapped in a conditional function that only applies in
	// production. In tests the wrapper passes through but still exists.
	hasRateLimiter := false
	var handlerNames []string
	for _, handler := range uploadRoute.Handlers {
		name := runtime.FuncForPC(reflect.ValueOf(handler).Pointer()).Name()
		handlerNames = append(handlerNames, name)
		if strings.Contains(name, "middleware/limiter") || strings.Contains(name, "mountRoutes.func") {
			hasRateLimiter = true
			break
		}
	}

	require.Truef(t, hasRateLimiter, "expected rate limiter middleware for upload route, handlers: %v", handlerNames)
}

func TestProfileRoutesRegistered(t *testing.T) {
	srv := testsupport.NewTestServer(t, testsupport.TestServerOptions{
		RouteMountFunc: MountAppRoutes,
	})
	routes := srv.App.GetRoutes(true)

	expected := []struct {
		method string
		path   string
	}{
		{fiber.MethodGet, "/_health"},
		{fiber.MethodHead, "/_health"},
		{fiber.MethodPost, "/api/profiles"},
		{fiber.MethodGet, "/api/profiles/:id"},
		{fiber.MethodDelete, "/api/profiles/:id"},
		{fiber.MethodGet, "/api/profiles/:id/meta"},
		{fiber.MethodGet, "/api/profiles/:id/usage"},
		{fiber.MethodGet, "/api/profiles/:id/comparison"},
	}

	for _, route := range expected {
		require.NotNilf(t, findRoute(routes, route.method, route.path), "expected %s %s to be registered", route.method, route.path)
	}
}
