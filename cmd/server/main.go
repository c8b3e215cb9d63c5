package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tila/internal/app"
	"tila/internal/core"
	httpProtocol "tila/internal/protocols/http"
	wsProtocol "tila/internal/protocols/websocket"
	"tila/internal/scheduler"
	"tila/pkg/config"
	"tila/pkg/logger"
	"tila/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "", "config file (default configs/$APP_ENV.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)
	logger.Info("Starting TILA gamification server...")

	authSvc, err := core.NewAuthService(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		logger.Fatalf("Invalid JWT configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The hub exists before the engine so awards can be pushed from the first request
	m := metrics.New()
	hub := wsProtocol.NewHub(m)

	engine, err := app.Open(ctx, cfg, app.Options{Notifier: hub, Metrics: m})
	if err != nil {
		logger.Fatalf("Failed to start engine: %v", err)
	}
	defer engine.Close()

	sched := scheduler.New(engine.Rescanner, cfg.Gamification.RescanInterval, engine.Clock.Location)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to schedule rescan: %v", err)
	}

	wsHandler := wsProtocol.NewHandler(hub, authSvc, cfg.Server.AllowedOrigins)
	httpServer := httpProtocol.NewServer(cfg, authSvc, engine.Service, sched, engine.Repo, engine.Metrics, wsHandler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(cfg.Addr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Errorf("HTTP server error: %v", err)
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP shutdown error: %v", err)
	}
	sched.Stop()
	hub.Stop()

	logger.Info("Shutdown complete")
}
