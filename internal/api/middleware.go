package api

import (
	"net/http"
	"strconv"
	"time"

	"checkout-service/internal/ratelimit"
	"checkout-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// userIdentity extracts the authenticated user id set by the upstream auth
// proxy. Requests without one are rejected before any pipeline work.
func userIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// rateLimitMiddleware gates a route with a fixed-window limiter keyed by
// user-and-route. When the counter store is down the limiter degrades to
// advisory and the request proceeds.
func rateLimitMiddleware(limiter *ratelimit.Limiter, route string) gin.HandlerFunc {
	logger := util.GetLogger()

	return func(c *gin.Context) {
		identity := c.GetString(userIDKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		res, err := limiter.Check(c.Request.Context(), ratelimit.Key(identity, route))
		if err != nil {
			logger.Warn("Rate limit store unavailable, allowing request",
				zap.String("route", route),
				zap.Error(err))
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			util.RateLimitRejectedTotal.WithLabelValues(route).Inc()

			retryAfter := int(time.Until(res.ResetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
