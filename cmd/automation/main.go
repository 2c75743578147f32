// Command automation runs the order automation passes once and prints the
// summary as JSON. It is meant to be triggered by an external cron.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/app"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Automation.Interval)
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	summary, runErr := application.Services.Automation.Run(ctx)

	// Wait for dispatched deliveries before the publisher is closed
	application.Services.Notifier.Wait()

	// An interrupted run still prints what it committed
	if summary != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			logger.Error("Failed to write summary", zap.Error(err))
		}
	}

	if runErr != nil {
		logger.Error("Order automation failed", zap.Error(runErr))
		application.Close()
		os.Exit(1)
	}
}
