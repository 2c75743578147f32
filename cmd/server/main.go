package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Liwei1020T/appointmentSystem-sub002/internal/app"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/config"
	grpcServer "github.com/Liwei1020T/appointmentSystem-sub002/internal/infrastructure/grpc"
	httpServer "github.com/Liwei1020T/appointmentSystem-sub002/internal/infrastructure/http"
	"github.com/Liwei1020T/appointmentSystem-sub002/internal/infrastructure/scheduler"
)

func main() {
	// .env is optional
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	httpSrv := httpServer.NewServer(cfg, logger, application.Services, application.Ping)
	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	var grpcSrv *grpcServer.Server
	if cfg.Server.GRPC.Enabled {
		grpcSrv = grpcServer.NewServer(cfg, logger)
		go func() {
			if err := grpcSrv.Start(); err != nil {
				logger.Fatal("Failed to start gRPC server", zap.Error(err))
			}
		}()
		go grpcSrv.MonitorHealth(ctx, application.Ping, 10*time.Second)
	}

	if cfg.Automation.Enabled {
		runner := scheduler.NewRunner(application.Services.Automation, cfg.Automation.Interval, logger)
		go runner.Start(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down servers...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if grpcSrv != nil {
		if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shutdown gRPC server", zap.Error(err))
		}
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	application.Services.Notifier.Wait()
	logger.Info("Servers shut down successfully")
}
