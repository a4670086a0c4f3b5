// Package router defines how HTTP routes are registered for the API.
// The storefront contract is a single discriminated POST /api endpoint;
// everything else is a health check and static serving of stored
// images.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/novabrands/storefront-api/internal/config"
	"github.com/novabrands/storefront-api/internal/handler"
	"github.com/novabrands/storefront-api/internal/middleware"
)

// RegisterRoutes wires the API endpoint with its middleware chain:
// request logging, per-request session resolution from the cookie, and
// the redis token bucket. uploadsDir is served statically so product
// image references of the form uploads/<file> resolve.
func RegisterRoutes(e *echo.Echo, api *handler.API, sessions middleware.SessionResolver, rdb *redis.Client, rlCfg config.RateLimitConfig, uploadsDir string) {
	e.Use(middleware.RequestLogger())

	e.GET("/healthz", handler.Health)
	e.Static("/uploads", uploadsDir)

	e.POST("/api",
		api.Handle,
		middleware.ResolveSession(sessions),
		middleware.NewTokenBucket(rlCfg, rdb),
	)
}
