package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"victim-support/backend/pkg/config"
	"victim-support/backend/pkg/di"
	"victim-support/backend/pkg/health"
	"victim-support/backend/pkg/logger"
	"victim-support/backend/pkg/router"
	"victim-support/backend/shared/observability"
)

func main() {
	// Load configuration, including an optional .env file
	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application",
		"version", os.Getenv("APP_VERSION"),
		"env", cfg.Server.Env,
		"store", cfg.Store.Driver,
		"relay", cfg.Relay.Driver,
	)

	shutdownTracing, err := observability.SetupTracing(cfg.Observability.ServiceName, cfg.Observability.Traces, log)
	if err != nil {
		log.LogError(err, "Failed to set up tracing")
		os.Exit(1)
	}

	meterProvider, err := observability.SetupPrometheusMetrics(cfg.Observability.ServiceName)
	if err != nil {
		log.LogError(err, "Failed to set up metrics")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependency injection container
	container, err := di.New(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}
	defer container.Close()

	if err := observability.RegisterLiveGauges(meterProvider, container.Hub); err != nil {
		log.LogError(err, "Failed to register live gauges")
	}

	go func() {
		if err := container.Hub.Run(ctx); err != nil {
			log.LogError(err, "Live relay stopped, events stay on this node")
		}
	}()
	container.Health.Start(ctx)

	grpcHealth := health.NewGRPCServer(container.Health)
	go func() {
		log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
		if err := grpcHealth.Serve(ctx, ":"+cfg.Server.GRPCPort); err != nil {
			log.LogError(err, "gRPC health server failed")
		}
	}()

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()
	defer r.Close()

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	// Start the server in a goroutine
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	// Block until we receive a signal
	<-ctx.Done()
	log.Info("Shutting down server...")

	// Create a deadline to wait for
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown the server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.LogError(err, "Failed to flush traces")
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Failed to stop meter provider")
	}

	log.Info("Server exited gracefully")
}
