package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"contexthub-backend/infrastructure/config"
	"contexthub-backend/infrastructure/di"
	"contexthub-backend/interfaces/http/rest"
	pkgerrors "contexthub-backend/pkg/errors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	if err := container.MCPServer.Start(ctx); err != nil {
		container.Logger.Fatal("MCP server startup failed", zap.Error(err))
	}

	errHandler := pkgerrors.NewErrorHandler(container.Logger, !cfg.IsProduction())
	router := rest.NewRouter(
		container.Store,
		container.MCPServer,
		errHandler,
		container.Logger,
		cfg.EnableCORS,
	)

	// WriteTimeout stays unset so long-lived SSE and WebSocket
	// streams are not cut off.
	srv := &http.Server{
		Addr:        cfg.ServerAddress,
		Handler:     router.Setup(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("persistence", string(cfg.PersistenceMode)),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := container.MCPServer.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("MCP server shutdown error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}
	if closer, ok := container.RateLimiter.(interface{ Close() }); ok {
		closer.Close()
	}

	if err := container.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
