package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	infrajwt "github.com/jonesrussell/marketplace/infrastructure/jwt"
	"github.com/jonesrussell/marketplace/internal/domain"
	"github.com/jonesrussell/marketplace/internal/search"
)

const (
	capabilitiesKey = "capabilities"
	regionKey       = "region"

	RoleAdmin    = "admin"
	RoleReviewer = "reviewer"
)

// CapabilitiesMiddleware derives the caller's capabilities from the token
// claims. It runs after the optional JWT middleware; anonymous callers get
// no capabilities.
func CapabilitiesMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var caps domain.Capabilities
		if claims, ok := infrajwt.GetClaims(c); ok {
			caps.IsAdmin = claims.HasRole(RoleAdmin)
			caps.IsReviewer = claims.HasRole(RoleReviewer)
		}
		c.Set(capabilitiesKey, caps)
		c.Next()
	}
}

// RegionMiddleware resolves the region query parameter. Requests without
// one are served as worldwide; unknown slugs are rejected.
func RegionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		region, err := search.ResolveRegion(c.Query("region"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.Set(regionKey, region)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin capability.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !capabilities(c).IsAdmin {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

func capabilities(c *gin.Context) domain.Capabilities {
	caps, _ := c.Get(capabilitiesKey)
	v, _ := caps.(domain.Capabilities)
	return v
}

func region(c *gin.Context) domain.Region {
	r, ok := c.Get(regionKey)
	if !ok {
		return domain.Worldwide
	}
	v, ok := r.(domain.Region)
	if !ok {
		return domain.Worldwide
	}
	return v
}

// RateLimitMiddleware rejects requests once limiter runs out of tokens. A
// nil limiter lets every request through.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error:     "Too many requests",
				Code:      "RATE_LIMITED",
				Timestamp: time.Now(),
			})
			return
		}
		c.Next()
	}
}

// NewRateLimiter returns a limiter allowing rps requests per second with
// the given burst, or nil when rps is not positive.
func NewRateLimiter(rps, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rps
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
