package main

import (
	"context"
	"orderpulse/internal/app/hub"
	"orderpulse/internal/app/registry"
	"orderpulse/internal/app/router"
	"orderpulse/internal/app/server"
	"orderpulse/internal/app/server/handlers"
	"orderpulse/internal/app/worker"
	"orderpulse/internal/config"
	"orderpulse/internal/core/contracts"
	"orderpulse/internal/core/services"
	"orderpulse/internal/platform/logger"
	"orderpulse/internal/platform/telemetry"
	redisPlugin "orderpulse/internal/plugins/redis"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	log.Info("redis connected")

	// Adapters
	presStore := redisPlugin.NewRedisPresenceStore(rdb)
	msgQueue := redisPlugin.NewRedisMessageQueue(log, rdb, cfg.Worker.BlockTimeout)

	// Core Services
	sessHub := hub.NewHub(log)
	reg := registry.NewRegistry()
	tokenSvc := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Service.Name, cfg.Auth.TokenTTL)
	sessSvc := services.NewSessionService(log, reg, sessHub, presStore, tokenSvc, cfg.Hub.HeartbeatInterval, cfg.Hub.PresenceTTL)
	if !tokenSvc.Enabled() {
		log.Warn("JWT_SECRET not set, authenticate trusts client supplied identity")
	}

	// Router: emits are dropped until the relay is subscribed.
	eventRouter := router.NewRouter(log)
	relay := redisPlugin.NewRelay(log, rdb, sessHub, cfg.Hub.RelayPrefix)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
			stop()
		}
	}()
	go func() {
		select {
		case <-relay.Ready():
			eventRouter.Attach(relay)
			log.Info("router attached to relay")
		case <-ctx.Done():
		}
	}()

	// Intake
	var sink contracts.EventSink = services.NewDirectSink(eventRouter)
	if cfg.Worker.IntakeMode == "stream" {
		sink = services.NewStreamPublisher(log, msgQueue, cfg.Worker.Stream)
	}
	eventWorker := worker.NewEventWorker(log, msgQueue, eventRouter, cfg.Worker.Stream, cfg.Worker.ConsumerGroup)
	if err := eventWorker.Run(ctx); err != nil {
		log.Error("event worker failed to start", "err", err)
		return
	}

	// Handlers
	wsHandler := handlers.NewWSHandler(sessSvc, *cfg.Hub)
	eventsHandler := handlers.NewEventsHandler(sink)
	diagHandler := handlers.NewDiagnosticsHandler(reg, sessHub, presStore, cfg.Hub.PresenceTTL)
	tokenHandler := handlers.NewTokenHandler(tokenSvc)

	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Add, cfg.Auth.ServiceToken, wsHandler, eventsHandler, diagHandler, tokenHandler)

	go func() {
		if err := srv.Start(); err != nil {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	eventRouter.Detach()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "err", err)
	}
	sessHub.Close()
	if err := rdb.Close(); err != nil {
		log.Error("redis close failed", "err", err)
	}
	log.Info("application stopped")
}
