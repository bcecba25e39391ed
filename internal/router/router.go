package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"relayer-backend/internal/config"
	"relayer-backend/internal/handlers"
	"relayer-backend/internal/middleware"
	"relayer-backend/internal/ws"
)

// SetupRouter wires the public API, the metrics endpoint, the WebSocket
// status feed and the JWT-guarded admin routes.
func SetupRouter(relayHandler *handlers.RelayHandler, adminHandler *handlers.AdminHandler, hub *ws.Hub, rateLimit *middleware.RateLimitMiddleware, logger *logrus.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	// Public surface
	r.GET("/health", relayHandler.HealthHandler)
	r.GET("/status", relayHandler.StatusHandler)
	r.GET("/quote", relayHandler.QuoteHandler)
	r.GET("/assets", relayHandler.AssetsHandler)

	if rateLimit != nil {
		r.POST("/withdraw", rateLimit.Limit(), relayHandler.WithdrawHandler)
	} else {
		r.POST("/withdraw", relayHandler.WithdrawHandler)
	}

	// Status push feed
	if hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			hub.Serve(c.Writer, c.Request)
		})
	}

	// Observability
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Admin surface
	if adminHandler != nil {
		r.POST("/admin/login", adminHandler.LoginHandler)

		adminAuth := middleware.NewAdminAuthMiddleware([]byte(config.AppConfig.Admin.JWTSecret), logger)
		admin := r.Group("/admin", adminAuth.RequireAdminAuth())
		{
			admin.GET("/withdrawals", adminHandler.WithdrawalsHandler)
			admin.GET("/rejections", adminHandler.RejectionsHandler)
			admin.GET("/roots", adminHandler.RootsHandler)
		}
	}

	return r
}

// requestLogger logs each request once it completes.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/health" {
			return
		}
		logger.WithFields(logrus.Fields{
			"path":        c.Request.URL.Path,
			"method":      c.Request.Method,
			"status":      c.Writer.Status(),
			"remote_addr": c.ClientIP(),
		}).Info("Request handled")
	}
}
