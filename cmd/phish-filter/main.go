package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-filter/internal/adapters/report"
	"github.com/mikey/llm-phish-filter/internal/api"
	"github.com/mikey/llm-phish-filter/internal/config"
	"github.com/mikey/llm-phish-filter/internal/core"
	"github.com/mikey/llm-phish-filter/internal/di"
	"github.com/mikey/llm-phish-filter/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Build the dependency injection container
	container, err := di.BuildContainer(*configPath)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		logging.Fatal("Application error", err)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	level zap.AtomicLevel,
	emailFilter core.EmailFilter,
	server *api.Server,
	reporter *report.Reporter,
	llmClient core.LLMClient,
	store core.Store,
) error {
	defer logger.Sync()

	// Follow log level changes in the config file
	if cfg.ConfigFileUsed() != "" {
		cfg.Watch(func(e fsnotify.Event) {
			newLevel := logging.ParseLevel(cfg.GetLogging().Level)
			if newLevel != level.Level() {
				level.SetLevel(newLevel)
				logger.Info("Log level reloaded", zap.String("file", e.Name), zap.String("level", newLevel.String()))
			}
		})
	}

	if err := emailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	if cfg.GetAPI().Enabled {
		if err := server.Start(); err != nil {
			logger.Error("Failed to start HTTP API", zap.Error(err))
			_ = emailFilter.Stop()
			return err
		}
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if cfg.GetAPI().Enabled {
		if err := server.Stop(ctx); err != nil {
			logger.Error("Failed to stop HTTP API", zap.Error(err))
		}
	}

	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	// Let queued reports finish sending
	reporter.Wait()

	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	store.Stop()

	logger.Info("Shutdown complete")
	return nil
}
