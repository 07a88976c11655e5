package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"service-desk/backend/internal/grpcserver"
	"service-desk/backend/pkg/config"
	"service-desk/backend/pkg/di"
	"service-desk/backend/pkg/logger"
	"service-desk/backend/pkg/router"
	"service-desk/backend/shared/observability"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting service desk", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	var traceOut io.Writer
	if cfg.Observability.TraceStdout {
		traceOut = os.Stdout
	}
	shutdownTracing, err := observability.SetupTracing(cfg.Observability.ServiceName, traceOut)
	if err != nil {
		log.LogError(err, "Failed to initialize tracing")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.New(ctx, cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	r := router.New(container)
	r.SetupRoutes()

	go container.Hub.Run(ctx)
	go r.RateLimiter.Cleanup(ctx)
	container.Health.Start(ctx)
	if container.Poller != nil {
		go container.Poller.Run(ctx)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			os.Exit(1)
		}
	}()

	grpcServer := grpcserver.New(log)
	lis, err := grpcserver.Listen(cfg.Server.GRPCPort)
	if err != nil {
		log.LogError(err, "Failed to start gRPC health server")
		os.Exit(1)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			log.LogError(err, "gRPC server stopped")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	grpcServer.Shutdown()

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.LogError(err, "Failed to flush traces")
	}
	if err := container.Close(); err != nil {
		log.LogError(err, "Failed to release resources")
	}

	log.Info("Server exited gracefully")
}
