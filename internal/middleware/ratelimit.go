package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"relayer-backend/internal/relay"
)

// RateLimitMiddleware gates requests before they reach the pipeline,
// keyed by client IP.
type RateLimitMiddleware struct {
	gate   *relay.RateGate
	logger *logrus.Logger
}

// NewRateLimitMiddleware creates the middleware around a gate.
func NewRateLimitMiddleware(gate *relay.RateGate, logger *logrus.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{gate: gate, logger: logger}
}

// Limit rejects gated requests with 429.
func (m *RateLimitMiddleware) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.gate.Allow(c.ClientIP()) {
			m.logger.WithFields(logrus.Fields{
				"path":        c.Request.URL.Path,
				"remote_addr": c.ClientIP(),
			}).Warn("Request rate limited")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
