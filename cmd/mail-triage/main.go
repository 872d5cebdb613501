package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/mail-triage/internal/adapters/smtpsource"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/di"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/poller"
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
	logger *zap.Logger,
	cfg *config.Config,
	service *core.TriageService,
	smtpSource *smtpsource.SMTPSource,
	pollLoop *poller.Poller,
	sources *factory.SourceFactory,
	cache core.ResultCache,
	store core.MessageStore,
) error {
	defer logger.Sync()

	ctx := context.Background()

	// Start the inbound SMTP source
	if cfg.GetBool("smtp.enabled") {
		if err := smtpSource.Start(); err != nil {
			logger.Error("Failed to start SMTP source", zap.Error(err))
			return err
		}
	}

	// Start the poll loop when a mail source is configured
	if cfg.GetString("imap.host") != "" {
		backfilled, err := pollLoop.Start(ctx, sources.Credentials())
		if err != nil {
			logger.Error("Failed to start poll loop", zap.Error(err))
			return err
		}
		logger.Info("Poll loop running", zap.Int("backfilled", backfilled))
	} else {
		logger.Info("No mail source configured, poll loop disabled")
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop pulling new work first
	pollLoop.Stop()
	if cfg.GetBool("smtp.enabled") {
		if err := smtpSource.Stop(); err != nil {
			logger.Error("Failed to stop SMTP source", zap.Error(err))
		}
	}

	// Drain outstanding classification jobs
	timeout, err := cfg.GetDuration("pipeline.shutdown_timeout")
	if err != nil {
		timeout = 30 * time.Second
	}
	if !service.WaitForBackground(timeout) {
		logger.Warn("Shutdown proceeded with unfinished background jobs")
	}

	// Release resources
	cache.Stop()
	if stopper, ok := store.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
