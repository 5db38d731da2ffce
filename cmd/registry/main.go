// Command registry runs the shared agent registry service.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a2alab/agentbridge/config"
	"github.com/a2alab/agentbridge/directory"
	"github.com/a2alab/agentbridge/logging"
	"github.com/a2alab/agentbridge/registry"
)

func main() {
	cfg := config.LoadRegistry()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	logger.Info("starting registry",
		"port", cfg.HTTPPort,
		"database", cfg.DatabaseURL,
		"staleness_window", cfg.StalenessWindow.String())

	store, err := directory.NewSQLiteStore(cfg.DatabaseURL, cfg.StalenessWindow)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer store.Close()

	h := registry.NewHandler(store, logger)
	e := registry.NewEcho(h)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Info("registry started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down registry")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	logger.Info("registry stopped")
}
