package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	"github.com/mikey/outreach-tracker/internal/detector"
	"github.com/mikey/outreach-tracker/internal/di"
	httpserver "github.com/mikey/outreach-tracker/internal/http"
	"github.com/mikey/outreach-tracker/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	intakes []ports.ReplyIntake,
	server *httpserver.Server,
	store core.TrackingStore,
) error {
	defer logger.Sync()

	if cfg.GetServer().Enabled {
		if err := server.Start(); err != nil {
			logger.Error("Failed to start HTTP server", zap.Error(err))
			closeStore(logger, store)
			return err
		}
	}

	var started []ports.ReplyIntake
	for _, in := range intakes {
		if err := in.Start(); err != nil {
			if _, ok := in.(*detector.Detector); ok {
				// A mailbox that cannot be reached must not take tracking down
				logger.Warn("Continuing without automatic reply detection", zap.Error(err))
				continue
			}
			logger.Error("Failed to start intake", zap.Error(err))
			shutdown(logger, started, server, store)
			return err
		}
		started = append(started, in)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	shutdown(logger, started, server, store)
	logger.Info("Shutdown complete")
	return nil
}

func shutdown(logger *zap.Logger, intakes []ports.ReplyIntake, server *httpserver.Server, store core.TrackingStore) {
	for _, in := range intakes {
		if err := in.Stop(); err != nil {
			logger.Error("Failed to stop intake", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	closeStore(logger, store)
}

func closeStore(logger *zap.Logger, store core.TrackingStore) {
	if err := store.Close(); err != nil {
		logger.Error("Failed to close contact store", zap.Error(err))
	}
}
