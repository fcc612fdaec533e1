package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	logpkg "sensorica-ingest/common/logger"
	"sensorica-ingest/internal/config"
	"sensorica-ingest/internal/service"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "sensorica-ingest")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	code := 0
	if err := run(cfg, log); err != nil {
		log.Error("sensorica-ingest exited with error", zap.Error(err))
		code = 1
	}
	log.Sync()
	os.Exit(code)
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting sensorica-ingest",
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("outbox_primary", cfg.Outbox.Primary),
		zap.String("outbox_secondary", cfg.Outbox.Secondary),
		zap.String("http_addr", cfg.HTTP.Addr),
	)

	svc, err := service.NewIngestService(cfg, log)
	if err != nil {
		return fmt.Errorf("create ingest service: %w", err)
	}

	runErr := svc.Start(ctx)
	if ctx.Err() != nil {
		log.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Warn("stop did not complete cleanly", zap.Error(err))
	}
	return runErr
}
