package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"relayer-backend/internal/app"
	"relayer-backend/internal/config"
	"relayer-backend/internal/handlers"
	"relayer-backend/internal/middleware"
	"relayer-backend/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := config.AppConfig

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	container := app.NewServiceContainer(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container.Sync.Start(ctx)
	if cfg.NATS.Enabled {
		err := container.Sync.Connect(ctx,
			cfg.NATS.URL,
			cfg.NATS.DepositSubject,
			time.Duration(cfg.NATS.Timeout)*time.Second,
			time.Duration(cfg.NATS.ReconnectWait)*time.Second,
			cfg.NATS.MaxReconnects,
		)
		if err != nil {
			log.Fatalf("Failed to connect deposit stream: %v", err)
		}
		defer container.Sync.Close()
	} else {
		log.Printf("⚠️ Deposit stream disabled; accumulator will not advance")
	}

	var adminHandler *handlers.AdminHandler
	if cfg.Admin.JWTSecret != "" {
		adminHandler = handlers.NewAdminHandler(&cfg.Admin, container.WithdrawalRepo, container.RootRepo, logger)
	} else {
		log.Printf("⚠️ No admin JWT secret configured; admin API disabled")
	}

	var rateLimit *middleware.RateLimitMiddleware
	if container.RateGate != nil {
		rateLimit = middleware.NewRateLimitMiddleware(container.RateGate, logger)
	}

	relayHandler := handlers.NewRelayHandler(container.Pipeline, container.Sync, container.Engine)
	r := router.SetupRouter(relayHandler, adminHandler, container.Hub, rateLimit, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Relayer listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Server shutdown error: %v", err)
	}
	cancel()
	container.SaveTreeSnapshot()
	log.Printf("✅ Shutdown complete")
}
