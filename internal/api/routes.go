package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	infrajwt "github.com/jonesrussell/marketplace/infrastructure/jwt"
)

// SetupRoutes configures all API routes. Health and metrics endpoints are
// registered by the server builder. Without a JWT secret every caller is
// anonymous. A nil searchLimiter leaves search unlimited.
func SetupRoutes(router *gin.Engine, handler *Handler, jwtSecret string, searchLimiter *rate.Limiter) {
	v1 := router.Group("/api/v1")
	if jwtSecret != "" {
		v1.Use(infrajwt.OptionalMiddleware(jwtSecret))
	}
	v1.Use(CapabilitiesMiddleware())

	apps := v1.Group("/apps/search", RateLimitMiddleware(searchLimiter), RegionMiddleware())
	{
		apps.GET("/", handler.Search)
		apps.GET("/featured/", handler.Featured)
	}

	stats := v1.Group("/stats", RequireAdmin())
	{
		stats.POST("/index", handler.SubmitIndexTask)
		stats.POST("/totals", handler.SubmitTotals)
	}
}
