package worker

import (
	"fmt"
	"time"

	"weft/internal/account"
	"weft/internal/config"
	"weft/internal/version"
)

// Settings holds the tunables the coordinator reads from configuration.
type Settings struct {
	Token             string
	Region            string
	Version           version.Vector
	Operation         account.Operation
	EndpointKind      account.EndpointKind
	ResolveTimeout    time.Duration
	PollInterval      time.Duration
	HandshakeInterval time.Duration
	PingInterval      time.Duration
	ProgressInterval  time.Duration
}

// SettingsFromConfig converts the [account] and [worker] sections.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	v, err := version.Parse(cfg.Worker.Version)
	if err != nil {
		return Settings{}, fmt.Errorf("worker.version: %w", err)
	}
	op, err := account.ParseOperation(cfg.Worker.Operation)
	if err != nil {
		return Settings{}, fmt.Errorf("worker.operation: %w", err)
	}
	kind, err := account.ParseEndpointKind(cfg.Worker.EndpointKind)
	if err != nil {
		return Settings{}, fmt.Errorf("worker.endpoint_kind: %w", err)
	}
	return Settings{
		Token:             cfg.Account.Token,
		Region:            cfg.Worker.Region,
		Version:           v,
		Operation:         op,
		EndpointKind:      kind,
		ResolveTimeout:    cfg.ResolveTimeout(),
		PollInterval:      cfg.PollInterval(),
		HandshakeInterval: cfg.HandshakeInterval(),
		PingInterval:      cfg.PingInterval(),
		ProgressInterval:  cfg.ProgressInterval(),
	}, nil
}

func (s Settings) withDefaults() Settings {
	if s.Operation == "" {
		s.Operation = account.OperationAll
	}
	if s.EndpointKind == "" {
		s.EndpointKind = account.EndpointInternal
	}
	if s.PollInterval <= 0 {
		s.PollInterval = 5 * time.Second
	}
	if s.PingInterval <= 0 {
		s.PingInterval = 30 * time.Second
	}
	if s.ProgressInterval <= 0 {
		s.ProgressInterval = 5 * time.Second
	}
	return s
}
