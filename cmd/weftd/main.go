package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"weft/internal/config"
	"weft/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sessionID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, sessionID)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	d, err := buildDaemon(cfg, logger, sessionID)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check for another running worker and journal access"),
		)
		return
	}

	<-ctx.Done()
	logger.Info("weftd shutting down")
}
