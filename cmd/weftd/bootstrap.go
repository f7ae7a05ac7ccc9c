package main

import (
	"fmt"
	"log/slog"

	"weft/internal/config"
	"weft/internal/daemon"
	"weft/internal/daemonrun"
	"weft/internal/journal"
)

func buildDaemon(cfg *config.Config, logger *slog.Logger, sessionID string) (*daemon.Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	store, err := journal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job journal: %w", err)
	}
	coordinator, err := daemonrun.NewCoordinator(cfg, store, logger, sessionID)
	if err != nil {
		store.Close()
		return nil, err
	}
	d, err := daemon.New(cfg, store, logger, coordinator)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}
